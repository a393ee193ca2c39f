package model

import (
	"time"
)

// RunEvent records the terminal outcome of a run in the event log.
type RunEvent struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	RunID      string    `json:"run_id"`
	AgentID    string    `json:"agent_id"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Status     Status    `json:"status"`
	State      RunState  `json:"state"`
	Error      *RunError `json:"error,omitempty"`
	Usage      Usage     `json:"usage"`
	ImageCount int       `json:"image_count"`
	Polls      int       `json:"polls"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
	Sequence   uint64    `json:"sequence,omitempty"`
}

// ListRunEventsResponse is the response for listing run events of a thread.
type ListRunEventsResponse struct {
	Events       []RunEvent `json:"events"`
	HasMore      bool       `json:"has_more"`
	LastSequence uint64     `json:"last_sequence"`
}

// StateEvent is streamed for every newly observed run state.
type StateEvent struct {
	RunID string   `json:"run_id,omitempty"`
	State RunState `json:"state"`
	Poll  int      `json:"poll"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
