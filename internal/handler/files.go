package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/file-analysis/internal/middleware"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/internal/service"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to disk.
const multipartMemory = 32 << 20

// FileHandler handles remote file endpoints.
type FileHandler struct {
	attachments *service.AttachmentResolver
	maxBytes    int64
	logger      *logger.Logger
}

// NewFileHandler creates a new file handler.
func NewFileHandler(attachments *service.AttachmentResolver, maxBytes int64, log *logger.Logger) *FileHandler {
	return &FileHandler{
		attachments: attachments,
		maxBytes:    maxBytes,
		logger:      log,
	}
}

// Upload handles POST /api/v1/files
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r, h.maxBytes)

	file, name, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	fileID, err := h.attachments.Upload(r.Context(), name, data)
	if err != nil {
		writeServiceError(w, h.logger, "failed to upload file", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.UploadFileResponse{
		FileID: fileID,
		Name:   name,
		Bytes:  int64(len(data)),
	})
}

// Delete handles DELETE /api/v1/files/:id
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID("file", fileID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.attachments.Release(r.Context(), fileID); err != nil {
		writeServiceError(w, h.logger, "failed to delete file", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// limitBody caps the request body at maxBytes plus room for multipart framing.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)
	}
}

// formFile parses the multipart form and opens its "file" part. On failure it
// writes the response and returns false.
func formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return nil, "", false
	}

	if err := middleware.ValidateFileName(header.Filename); err != nil {
		file.Close()
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}

	return file, header.Filename, true
}
