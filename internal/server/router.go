package server

import (
	"net/http"

	"github.com/yourorg/scan-gateway/internal/model"
	"github.com/yourorg/scan-gateway/internal/server/handlers"
	"github.com/yourorg/scan-gateway/internal/server/middleware"
	"github.com/yourorg/scan-gateway/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()
	h := handlers.New(s.scans, s.users, s.db)

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	authed := middleware.Authenticate(s.users)
	admin := middleware.Chain(authed, middleware.RequireRole(model.RoleAdministrator))

	handle := func(pattern string, mw func(http.Handler) http.Handler, fn http.HandlerFunc) {
		if mw == nil {
			mux.Handle(pattern, fn)
			return
		}
		mux.Handle(pattern, mw(fn))
	}

	// Public endpoints
	handle("GET /health", nil, h.HandleHealth)
	handle("POST /api/auth/register", nil, h.HandleRegister)
	handle("POST /api/auth/login", nil, h.HandleLogin)

	// Own account
	handle("GET /api/auth/me", authed, h.HandleMe)
	handle("PUT /api/auth/profile", authed, h.HandleUpdateProfile)
	handle("PUT /api/auth/password", authed, h.HandleChangePassword)

	// Scans, scoped to the caller unless administrator
	handle("POST /api/scans", authed, h.HandleCreateScan)
	handle("GET /api/scans", authed, h.HandleListScans)
	handle("GET /api/scans/stats", authed, h.HandleScanStats)
	handle("GET /api/scans/{scanId}", authed, h.HandleGetScan)
	handle("GET /api/scans/{scanId}/vulnerabilities", authed, h.HandleScanVulnerabilities)
	handle("GET /api/scans/{scanId}/results", authed, h.HandleScanResults)
	handle("DELETE /api/scans/{scanId}", authed, h.HandleDeleteScan)
	handle("POST /api/scans/{scanId}/report", authed, h.HandleGenerateReport)
	handle("GET /api/scans/reports/{reportId}/status", authed, h.HandleReportStatus)
	handle("GET /api/scans/reports/{reportId}/download", authed, h.HandleDownloadReport)

	// Administration
	handle("GET /api/users", admin, h.HandleListUsers)
	handle("GET /api/users/stats", admin, h.HandleUserStats)
	handle("POST /api/users", admin, h.HandleCreateUser)
	handle("GET /api/users/{userId}", admin, h.HandleGetUser)
	handle("PUT /api/users/{userId}", admin, h.HandleUpdateUser)
	handle("DELETE /api/users/{userId}", admin, h.HandleDeleteUser)
	handle("PUT /api/users/{userId}/reset-password", admin, h.HandleResetPassword)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		response.Fail(w, http.StatusNotFound, "Route not found", nil)
	})
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cors := middleware.DefaultCORSConfig()
	if len(s.config.CORSOrigins) > 0 {
		cors.AllowedOrigins = s.config.CORSOrigins
	}
	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logger(s.logger),
		middleware.CORS(cors),
	)(handler)
}
