package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	artifactrepo "promptbridge/internal/gateway/repository/artifact"
)

// ImageReader is the read side of the artifact store.
type ImageReader interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

type ImageHandler struct {
	store ImageReader
}

func NewImageHandler(store ImageReader) *ImageHandler {
	return &ImageHandler{store: store}
}

func (h *ImageHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.PathValue("name")
	raw, err := h.store.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, artifactrepo.ErrNotFound) || errors.Is(err, artifactrepo.ErrInvalidName) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", artifactrepo.ContentType(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(raw)
}
