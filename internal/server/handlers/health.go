package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/server/response"
)

const healthTimeout = 2 * time.Second

// HandleHealth handles GET /health. It pings the database and answers 503
// when it cannot be reached.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("Health check failed")
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "reason": "db unreachable"})
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
