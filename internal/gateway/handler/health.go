package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks that the worker is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	worker  Pinger
	timeout time.Duration
}

func NewHealthHandler(worker Pinger) *HealthHandler {
	return &HealthHandler{worker: worker, timeout: 5 * time.Second}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.worker.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"worker": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"worker": "reachable",
	})
}
