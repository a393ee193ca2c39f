package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
	"github.com/capitalize-ai/file-analysis/pkg/metrics"
)

// AttachmentResolver uploads local files and produces attachment bindings.
type AttachmentResolver struct {
	client   agentapi.Client
	maxBytes int64
	logger   *logger.Logger
}

// NewAttachmentResolver creates a new attachment resolver. A non-positive
// maxBytes disables the local size check.
func NewAttachmentResolver(client agentapi.Client, maxBytes int64, log *logger.Logger) *AttachmentResolver {
	return &AttachmentResolver{
		client:   client,
		maxBytes: maxBytes,
		logger:   log,
	}
}

// CodeInterpreterBinding declares fileID usable by the code execution tool.
func CodeInterpreterBinding(fileID string) model.Attachment {
	return model.Attachment{
		FileID: fileID,
		Tools:  []model.ToolCapability{model.ToolCodeInterpreter},
	}
}

// Resolve uploads the file at path once and returns its binding. Nothing is
// cached: every call consumes remote storage that the caller must release.
func (r *AttachmentResolver) Resolve(ctx context.Context, path string) (model.Attachment, error) {
	return r.ResolveAs(ctx, path, filepath.Base(path))
}

// ResolveAs is Resolve with the remote file named name.
func (r *AttachmentResolver) ResolveAs(ctx context.Context, path, name string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Attachment{}, &AttachmentError{Path: path, Err: ErrFileNotFound}
		}
		return model.Attachment{}, &AttachmentError{Path: path, Err: err}
	}
	if info.IsDir() {
		return model.Attachment{}, &AttachmentError{Path: path, Err: fmt.Errorf("%w: is a directory", ErrFileNotFound)}
	}
	if err := r.checkSize(info.Size()); err != nil {
		return model.Attachment{}, &AttachmentError{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, &AttachmentError{Path: path, Err: err}
	}

	fileID, err := r.Upload(ctx, name, data)
	if err != nil {
		var attErr *AttachmentError
		if errors.As(err, &attErr) {
			attErr.Path = path
		}
		return model.Attachment{}, err
	}

	return CodeInterpreterBinding(fileID), nil
}

// Upload sends in-memory bytes. A refusal by the service is an
// AttachmentError; throttling and network failures stay TransportErrors.
func (r *AttachmentResolver) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := r.checkSize(int64(len(data))); err != nil {
		return "", &AttachmentError{Path: name, Err: err}
	}

	fileID, err := r.client.UploadFile(ctx, name, data)
	if err != nil {
		if te, ok := agentapi.AsTransportError(err); ok && te.Rejected() {
			return "", &AttachmentError{Path: name, Err: fmt.Errorf("%w: %v", ErrUploadRejected, te)}
		}
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	metrics.FilesUploadedTotal.Inc()
	r.logger.Info("file uploaded",
		zap.String("file_id", fileID),
		zap.String("name", name),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
	)

	return fileID, nil
}

// Release deletes an uploaded file. Missing ids are not an error.
func (r *AttachmentResolver) Release(ctx context.Context, fileID string) error {
	if err := r.client.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (r *AttachmentResolver) checkSize(size int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if r.maxBytes > 0 && size > r.maxBytes {
		return fmt.Errorf("%w: %s exceeds limit of %s", ErrFileTooLarge,
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(r.maxBytes)))
	}
	return nil
}
