// Package health contains the liveness endpoint for the query service.
package health

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dhaneshkk/prolog-service/pkg/logger"
)

// TargetService defines an interface that services can implement for server health checks.
type TargetService interface {
	IsReady(ctx context.Context) (bool, error)
}

// AlwaysReady reports readiness unconditionally. It backs the health endpoint
// when the target service carries no state that could become unready.
type AlwaysReady struct{}

func (AlwaysReady) IsReady(ctx context.Context) (bool, error) {
	return true, nil
}

// Handler answers health probes. It never competes with query traffic for
// evaluation permits.
type Handler struct {
	target TargetService
	logger logger.Logger
}

func NewHandler(target TargetService, l logger.Logger) *Handler {
	return &Handler{target: target, logger: l}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ready, err := h.target.IsReady(r.Context())
	if err != nil || !ready {
		if err != nil {
			h.logger.WarnWithContext(r.Context(), "health check failed", zap.Error(err))
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
