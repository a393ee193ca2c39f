package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/middleware"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/internal/service"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// AnalysisHandler handles whole-file analysis requests.
type AnalysisHandler struct {
	analysis  *service.AnalysisService
	uploadDir string
	maxBytes  int64
	logger    *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler. Uploads are staged in
// uploadDir for the duration of the request.
func NewAnalysisHandler(analysis *service.AnalysisService, uploadDir string, maxBytes int64, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysis:  analysis,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		logger:    log,
	}
}

// Create handles POST /api/v1/analyses
// Multipart form with one "file" part and one or more "questions" values.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r, h.maxBytes)

	file, name, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	questions := r.MultipartForm.Value["questions"]
	if err := middleware.ValidateQuestions(questions); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.stage(file, name)
	if err != nil {
		h.logger.Error("failed to stage upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(path)

	resp, err := h.analysis.Process(r.Context(), &model.AnalysisRequest{
		FilePath:  path,
		FileName:  name,
		Questions: questions,
		TenantID:  middleware.GetTenantID(r.Context()),
	})
	if err != nil {
		writeServiceError(w, h.logger, "analysis failed", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AnalysisHandler) stage(src io.Reader, name string) (string, error) {
	dst, err := os.CreateTemp(h.uploadDir, "upload-*"+filepath.Ext(name))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return dst.Name(), nil
}
