package service

import (
	"errors"
	"fmt"

	"github.com/capitalize-ai/file-analysis/internal/model"
)

var (
	// ErrFileNotFound is returned when a local attachment path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileTooLarge is returned when an attachment exceeds the upload limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-byte attachments.
	ErrEmptyFile = errors.New("file is empty")

	// ErrUploadRejected is returned when the service refuses an upload.
	ErrUploadRejected = errors.New("upload rejected")
)

// AttachmentError reports a file that could not be turned into a remote attachment.
type AttachmentError struct {
	Path string
	Err  error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment %q: %v", e.Path, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// UnsupportedBlockError is returned when a response contains a content block
// kind the extractor does not handle.
type UnsupportedBlockError struct {
	MessageID string
	Kind      model.BlockKind
}

func (e *UnsupportedBlockError) Error() string {
	return fmt.Sprintf("message %s: unsupported content block %q", e.MessageID, e.Kind)
}
