package handler

import (
	"net/http"

	artifactcache "promptbridge/internal/cache/artifact"
)

type CacheStats interface {
	Metrics() artifactcache.MetricsSnapshot
}

type DebugHandler struct {
	cache CacheStats
}

func NewDebugHandler(cache CacheStats) *DebugHandler {
	return &DebugHandler{cache: cache}
}

func (h *DebugHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifact_cache": h.cache.Metrics(),
	})
}
