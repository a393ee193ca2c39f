package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/middleware"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/internal/service"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
	"github.com/capitalize-ai/file-analysis/pkg/metrics"
)

// RunEventLister reads recorded run outcomes of a thread.
type RunEventLister interface {
	ListRunEvents(ctx context.Context, threadID string, afterSequence uint64, limit int) ([]model.RunEvent, uint64, bool, error)
}

// RunHandler handles run endpoints.
type RunHandler struct {
	orchestrator *service.Orchestrator
	agentID      string
	events       RunEventLister
	logger       *logger.Logger
}

// NewRunHandler creates a new run handler for the agent agentID. events may
// be nil when the run event log is disabled.
func NewRunHandler(orchestrator *service.Orchestrator, agentID string, events RunEventLister, log *logger.Logger) *RunHandler {
	return &RunHandler{
		orchestrator: orchestrator,
		agentID:      agentID,
		events:       events,
		logger:       log,
	}
}

// Run handles POST /api/v1/threads/:id/runs
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID("thread", threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := service.WithTenant(r.Context(), middleware.GetTenantID(r.Context()))
	result, err := h.orchestrator.Run(ctx, threadID, h.agentID)
	if err != nil {
		writeServiceError(w, h.logger, "run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Stream handles POST /api/v1/threads/:id/runs/stream
// Emits a state event per observed run state, then one result or error event.
func (h *RunHandler) Stream(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID("thread", threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	ctx := service.WithTenant(r.Context(), middleware.GetTenantID(r.Context()))
	result, err := h.orchestrator.RunWithProgress(ctx, threadID, h.agentID, func(ev model.StateEvent) {
		if err := sendSSEEvent(w, flusher, "state", ev); err != nil {
			h.logger.Warn("failed to send state event", zap.String("thread_id", threadID), zap.Error(err))
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Info("SSE client disconnected", zap.String("thread_id", threadID))
			return
		}
		h.logger.Error("streamed run failed", zap.String("thread_id", threadID), zap.Error(err))
		sendSSEEvent(w, flusher, "error", streamError(err))
		return
	}

	sendSSEEvent(w, flusher, "result", result)
}

// List handles GET /api/v1/threads/:id/runs
// Supports ?after_sequence=N and ?limit=N for paging through the event log.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID("thread", threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := &model.ListRunEventsResponse{Events: []model.RunEvent{}}
	if h.events == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var afterSequence uint64
	if s := r.URL.Query().Get("after_sequence"); s != "" {
		if parsed, err := strconv.ParseUint(s, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	events, lastSequence, hasMore, err := h.events.ListRunEvents(r.Context(), threadID, afterSequence, limit)
	if err != nil {
		h.logger.Error("failed to list run events", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list run events")
		return
	}

	resp.Events = append(resp.Events, events...)
	resp.LastSequence = lastSequence
	resp.HasMore = hasMore
	writeJSON(w, http.StatusOK, resp)
}

func streamError(err error) *model.ErrorEvent {
	ev := &model.ErrorEvent{Code: "run_error", Message: "run could not be completed"}
	if te, ok := agentapi.AsTransportError(err); ok {
		ev.Code = "transport_error"
		ev.Message = te.Error()
		if te.RateLimited() {
			ev.Code = "rate_limited"
			ev.RetryAfter = retryAfterSeconds
		}
	}
	return ev
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
