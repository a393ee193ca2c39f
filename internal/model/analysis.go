package model

import (
	"time"
)

// AnalysisRequest asks a series of questions about one local data file.
// FileName, when set, names the remote upload instead of the base of FilePath.
type AnalysisRequest struct {
	FilePath  string
	FileName  string
	Questions []string
	TenantID  string
}

// QuestionResult pairs a question with the outcome of its run.
type QuestionResult struct {
	Question string            `json:"question"`
	Result   *NormalizedResult `json:"result"`
}

// AnalysisResponse is the outcome of a file analysis session.
type AnalysisResponse struct {
	ThreadID string           `json:"thread_id"`
	FileID   string           `json:"file_id"`
	Results  []QuestionResult `json:"results"`
	Elapsed  time.Duration    `json:"-"`
	Seconds  float64          `json:"time_taken"`
}

// CreateMessageRequest is the request to add a user turn to a thread.
type CreateMessageRequest struct {
	Content string `json:"content"`
	FileID  string `json:"file_id,omitempty"`
}

// CreateMessageResponse is the response after adding a user turn.
type CreateMessageResponse struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

// CreateThreadResponse is the response after creating a thread.
type CreateThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// UploadFileResponse is the response after uploading a file.
type UploadFileResponse struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
	Bytes  int64  `json:"bytes"`
}
