// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/middleware"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/internal/service"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// ThreadHandler handles thread and message endpoints.
type ThreadHandler struct {
	client   agentapi.Client
	composer *service.MessageComposer
	logger   *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(client agentapi.Client, composer *service.MessageComposer, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		client:   client,
		composer: composer,
		logger:   log,
	}
}

// Create handles POST /api/v1/threads
func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	threadID, err := h.client.CreateThread(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "failed to create thread", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.CreateThreadResponse{ThreadID: threadID})
}

// Delete handles DELETE /api/v1/threads/:id
func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID("thread", threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.client.DeleteThread(r.Context(), threadID); err != nil {
		writeServiceError(w, h.logger, "failed to delete thread", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddMessage handles POST /api/v1/threads/:id/messages
func (h *ThreadHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID("thread", threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateQuestion(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FileID != "" {
		if err := middleware.ValidateResourceID("file", req.FileID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	messageID, err := h.composer.Compose(r.Context(), threadID, req.Content, req.FileID)
	if err != nil {
		writeServiceError(w, h.logger, "failed to add message", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.CreateMessageResponse{
		MessageID: messageID,
		ThreadID:  threadID,
	})
}
