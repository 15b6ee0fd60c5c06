package handlers

import (
	"net/http"

	"github.com/yourorg/scan-gateway/internal/model"
	"github.com/yourorg/scan-gateway/internal/server/response"
)

// HandleListUsers handles GET /api/users.
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.List(r.Context(), r.URL.Query().Get("search"), pageParam(r))
	if err != nil {
		response.Error(w, r, err, "Error fetching users")
		return
	}
	response.OK(w, response.Fields{"users": page.Users, "pagination": page.Pagination})
}

// HandleUserStats handles GET /api/users/stats.
func (h *Handlers) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Stats(r.Context())
	if err != nil {
		response.Error(w, r, err, "Error fetching user statistics")
		return
	}
	response.OK(w, response.Fields{"stats": stats})
}

// HandleCreateUser handles POST /api/users.
func (h *Handlers) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		credentials
		Role model.Role `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	u, err := h.users.Create(r.Context(), body.Username, body.Email, body.Password, body.Role)
	if err != nil {
		response.Error(w, r, err, "Error creating user")
		return
	}
	response.Created(w, "User created successfully", response.Fields{"user": u})
}

// HandleGetUser handles GET /api/users/{userId}.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	detail, err := h.users.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		response.Error(w, r, err, "Error fetching user")
		return
	}
	response.OK(w, response.Fields{"user": detail.User, "recentScans": detail.RecentScans})
}

// HandleUpdateUser handles PUT /api/users/{userId}. Absent fields are left unchanged.
func (h *Handlers) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email  *string            `json:"email"`
		Role   *model.Role       `json:"role"`
		Status *model.UserStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	upd := model.UserUpdate{Email: body.Email, Role: body.Role, Status: body.Status}
	u, err := h.users.Update(r.Context(), actor(r), r.PathValue("userId"), upd)
	if err != nil {
		response.Error(w, r, err, "Error updating user")
		return
	}
	response.Success(w, http.StatusOK, "User updated successfully", response.Fields{"user": u})
}

// HandleDeleteUser handles DELETE /api/users/{userId}.
func (h *Handlers) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), actor(r), r.PathValue("userId")); err != nil {
		response.Error(w, r, err, "Error deleting user")
		return
	}
	response.Message(w, "User deleted successfully")
}

// HandleResetPassword handles PUT /api/users/{userId}/reset-password.
func (h *Handlers) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	if err := h.users.ResetPassword(r.Context(), r.PathValue("userId"), body.NewPassword); err != nil {
		response.Error(w, r, err, "Error resetting password")
		return
	}
	response.Message(w, "Password reset successfully")
}
