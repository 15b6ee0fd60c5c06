package handlers

import (
	"net/http"

	"github.com/yourorg/scan-gateway/internal/model"
	"github.com/yourorg/scan-gateway/internal/server/middleware"
	"github.com/yourorg/scan-gateway/internal/server/response"
	"github.com/yourorg/scan-gateway/internal/users"
)

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionFields renders a login or registration result.
func sessionFields(s *users.Session) response.Fields {
	return response.Fields{"token": s.Token, "user": s.User}
}

// HandleRegister handles POST /api/auth/register.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	session, err := h.users.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		response.Error(w, r, err, "Error registering user")
		return
	}
	response.Success(w, http.StatusCreated, "", sessionFields(session))
}

// HandleLogin handles POST /api/auth/login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	session, err := h.users.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		response.Error(w, r, err, "Error during login")
		return
	}
	response.OK(w, sessionFields(session))
}

// HandleMe handles GET /api/auth/me.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), actor(r))
	if err != nil {
		response.Error(w, r, err, "Error fetching user profile")
		return
	}
	response.OK(w, response.Fields{"user": u})
}

// HandleUpdateProfile handles PUT /api/auth/profile.
func (h *Handlers) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), actor(r), body.Email)
	if err != nil {
		response.Error(w, r, err, "Error updating profile")
		return
	}
	response.Success(w, http.StatusOK, "Profile updated successfully", response.Fields{"user": u})
}

// HandleChangePassword handles PUT /api/auth/password.
func (h *Handlers) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	if err := h.users.ChangePassword(r.Context(), actor(r), body.CurrentPassword, body.NewPassword); err != nil {
		response.Error(w, r, err, "Error changing password")
		return
	}
	response.Message(w, "Password changed successfully")
}

// actor is the authenticated caller; routes using it sit behind Authenticate.
func actor(r *http.Request) *model.User {
	return middleware.UserFromContext(r.Context())
}
