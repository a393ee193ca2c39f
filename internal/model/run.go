// Package model defines data structures for the file analysis service.
package model

// RunState is the lifecycle state reported by the remote service for a run.
type RunState string

const (
	RunStateQueued         RunState = "queued"
	RunStateInProgress     RunState = "in_progress"
	RunStateCancelling     RunState = "cancelling"
	RunStateRequiresAction RunState = "requires_action"
	RunStateCompleted      RunState = "completed"
	RunStateFailed         RunState = "failed"
	RunStateCancelled      RunState = "cancelled"
	RunStateExpired        RunState = "expired"
	RunStateIncomplete     RunState = "incomplete"
)

// Terminal reports whether polling stops at s. States the service does not
// document are terminal so an unexpected value can never spin the poll loop.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateQueued, RunStateInProgress, RunStateCancelling:
		return false
	default:
		return true
	}
}

// Known reports whether s is one of the documented run states.
func (s RunState) Known() bool {
	switch s {
	case RunStateQueued, RunStateInProgress, RunStateCancelling, RunStateRequiresAction,
		RunStateCompleted, RunStateFailed, RunStateCancelled, RunStateExpired, RunStateIncomplete:
		return true
	}
	return false
}

// Status is the normalized outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// Error codes assigned locally when the remote service does not supply one.
const (
	ErrorCodeRequiresAction     = "requires_action_unsupported"
	ErrorCodeUnknownState       = "unknown_state"
	ErrorCodeUnsupportedContent = "unsupported_content"
	ErrorCodeTimeout            = "timeout"
	ErrorCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorCodeRateLimit          = "rate_limit"
)

// Usage holds token accounting for a run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RemoteError is the structured error the service attaches to a run.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunSnapshot is one observation of a remote run.
type RunSnapshot struct {
	ID        string       `json:"id"`
	ThreadID  string       `json:"thread_id"`
	AgentID   string       `json:"agent_id"`
	State     RunState     `json:"state"`
	Usage     *Usage       `json:"usage,omitempty"`
	LastError *RemoteError `json:"last_error,omitempty"`
}

// RunError describes why a run did not succeed.
type RunError struct {
	State   RunState `json:"state"`
	Code    string   `json:"code"`
	Message string   `json:"message,omitempty"`
}

// NormalizedResult is the only run artifact exposed to callers.
type NormalizedResult struct {
	RunID      string    `json:"run_id"`
	Status     Status    `json:"status"`
	AnswerText *string   `json:"answer_text,omitempty"`
	ImagePaths []string  `json:"image_paths"`
	Error      *RunError `json:"error,omitempty"`
	Usage      Usage     `json:"usage"`
}

// NewSuccessResult builds a result for a completed run.
func NewSuccessResult(runID, answer string, imagePaths []string, usage Usage) *NormalizedResult {
	if imagePaths == nil {
		imagePaths = []string{}
	}
	return &NormalizedResult{
		RunID:      runID,
		Status:     StatusSuccess,
		AnswerText: &answer,
		ImagePaths: imagePaths,
		Usage:      usage.normalize(),
	}
}

// NewFailureResult builds a result for a run that ended in a non-success state.
func NewFailureResult(runID string, runErr RunError, usage Usage) *NormalizedResult {
	return &NormalizedResult{
		RunID:      runID,
		Status:     StatusFailure,
		ImagePaths: []string{},
		Error:      &runErr,
		Usage:      usage.normalize(),
	}
}

// NewTimeoutResult builds a result for a run whose remote outcome is unknown
// because the wait ceiling was reached first.
func NewTimeoutResult(runID string, lastState RunState, message string, usage Usage) *NormalizedResult {
	return &NormalizedResult{
		RunID:      runID,
		Status:     StatusTimeout,
		ImagePaths: []string{},
		Error: &RunError{
			State:   lastState,
			Code:    ErrorCodeTimeout,
			Message: message,
		},
		Usage: usage.normalize(),
	}
}

// Answer returns the answer text or "" when absent.
func (r *NormalizedResult) Answer() string {
	if r == nil || r.AnswerText == nil {
		return ""
	}
	return *r.AnswerText
}

// RateLimited reports whether the run failed because the service throttled it.
func (r *NormalizedResult) RateLimited() bool {
	if r == nil || r.Status != StatusFailure || r.Error == nil {
		return false
	}
	return r.Error.Code == ErrorCodeRateLimitExceeded || r.Error.Code == ErrorCodeRateLimit
}

// UsageOf returns the snapshot's usage with absent counters as zero.
func UsageOf(s *RunSnapshot) Usage {
	if s == nil || s.Usage == nil {
		return Usage{}
	}
	return s.Usage.normalize()
}

func (u Usage) normalize() Usage {
	if u.PromptTokens < 0 {
		u.PromptTokens = 0
	}
	if u.CompletionTokens < 0 {
		u.CompletionTokens = 0
	}
	if u.TotalTokens < 0 {
		u.TotalTokens = 0
	}
	return u
}
