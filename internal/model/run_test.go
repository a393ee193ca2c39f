package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunState_Terminal(t *testing.T) {
	nonTerminal := []RunState{RunStateQueued, RunStateInProgress, RunStateCancelling}
	for _, s := range nonTerminal {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.Known(), s)
	}

	terminal := []RunState{
		RunStateRequiresAction, RunStateCompleted, RunStateFailed,
		RunStateCancelled, RunStateExpired, RunStateIncomplete,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), s)
		assert.True(t, s.Known(), s)
	}

	assert.True(t, RunState("paused").Terminal())
	assert.False(t, RunState("paused").Known())
}

func TestResults(t *testing.T) {
	ok := NewSuccessResult("run_1", "", nil, Usage{PromptTokens: -1, TotalTokens: 3})
	require.NotNil(t, ok.AnswerText, "an empty answer is still present")
	assert.Equal(t, "", *ok.AnswerText)
	assert.NotNil(t, ok.ImagePaths)
	assert.Equal(t, Usage{TotalTokens: 3}, ok.Usage)
	assert.Nil(t, ok.Error)

	failed := NewFailureResult("run_2", RunError{State: RunStateFailed, Code: ErrorCodeRateLimit}, Usage{})
	assert.Equal(t, StatusFailure, failed.Status)
	assert.Nil(t, failed.AnswerText)
	assert.NotNil(t, failed.ImagePaths)
	assert.True(t, failed.RateLimited())

	timedOut := NewTimeoutResult("run_3", RunStateInProgress, "still running", Usage{})
	assert.Equal(t, StatusTimeout, timedOut.Status)
	assert.Equal(t, ErrorCodeTimeout, timedOut.Error.Code)
	assert.False(t, timedOut.RateLimited())
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(NewFailureResult("run_1", RunError{State: RunStateExpired, Code: "expired"}, Usage{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"run_id": "run_1",
		"status": "failure",
		"image_paths": [],
		"error": {"state": "expired", "code": "expired"},
		"usage": {"prompt_tokens": 0, "completion_tokens": 0, "total_tokens": 0}
	}`, string(data))
}

func TestUsageOf(t *testing.T) {
	assert.Equal(t, Usage{}, UsageOf(nil))
	assert.Equal(t, Usage{}, UsageOf(&RunSnapshot{}))
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		UsageOf(&RunSnapshot{Usage: &Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}}))
}
