package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/service"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorStatus maps a service error to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	var attErr *service.AttachmentError
	if errors.As(err, &attErr) {
		if errors.Is(err, service.ErrFileTooLarge) {
			return http.StatusRequestEntityTooLarge, attErr.Error()
		}
		return http.StatusBadRequest, attErr.Error()
	}

	if te, ok := agentapi.AsTransportError(err); ok {
		switch {
		case te.RateLimited():
			return http.StatusTooManyRequests, "agent service rate limit exceeded"
		case te.NotFound():
			return http.StatusNotFound, "resource not found"
		default:
			return http.StatusBadGateway, "agent service request failed"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "request timed out"
	}

	return http.StatusInternalServerError, "internal error"
}

// writeServiceError logs err and writes the mapped error response.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, msg string, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn(msg, zap.Int("status", status), zap.Error(err))
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeError(w, status, message)
}

const retryAfterSeconds = 30
