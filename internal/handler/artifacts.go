package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/file-analysis/internal/artifact"
	"github.com/capitalize-ai/file-analysis/internal/middleware"
)

// ArtifactHandler serves saved image artifacts.
type ArtifactHandler struct {
	store *artifact.Store
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(store *artifact.Store) *ArtifactHandler {
	return &ArtifactHandler{store: store}
}

// Get handles GET /api/v1/artifacts/:name
// Only artifacts saved for the caller's tenant resolve.
func (h *ArtifactHandler) Get(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Resolve(middleware.GetTenantID(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}
