package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/model"
	"github.com/yourorg/scan-gateway/internal/server/response"
)

type userKey struct{}

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey{}).(*model.User)
	return u
}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				response.Fail(w, http.StatusUnauthorized, "Not authorized to access this route", nil)
				return
			}
			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, errors.ErrUnauthorized) {
					logging.FromContext(r.Context()).Warn().
						Str("remote_addr", r.RemoteAddr).
						Err(err).
						Msg("Authentication failed")
				}
				response.Error(w, r, err, "Not authorized to access this route")
				return
			}
			ctx := logging.WithField(WithUser(r.Context(), user), "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated users whose role is not in roles.
// It must run after Authenticate.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				response.Fail(w, http.StatusUnauthorized, "Not authorized to access this route", nil)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, r, errors.NewForbiddenError(
				fmt.Sprintf("User role %s is not authorized to access this route", user.Role)), "")
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
