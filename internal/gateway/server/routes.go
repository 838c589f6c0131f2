package server

import (
	"net/http"

	"promptbridge/internal/gateway/handler"
	"promptbridge/internal/gateway/middleware"
)

func NewMux(
	promptHandler *handler.PromptHandler,
	imageHandler *handler.ImageHandler,
	healthHandler *handler.HealthHandler,
	debugHandler *handler.DebugHandler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /prompt", promptHandler.HandlePrompt)
	mux.HandleFunc("GET /images/{name}", imageHandler.HandleImage)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)

	// Debug Handlers
	mux.HandleFunc("GET /debug/cache-stats", debugHandler.HandleCacheStats)

	// Middleware
	return middleware.CORS(mux)
}
