package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/file-analysis/internal/model"
)

func TestRunSubject(t *testing.T) {
	assert.Equal(t, "runs.thread_abc.success", RunSubject("thread_abc", model.StatusSuccess))
	assert.Equal(t, "runs.thread_abc.timeout", RunSubject("thread_abc", model.StatusTimeout))
}

func TestThreadFilter(t *testing.T) {
	assert.Equal(t, "runs.thread_abc.>", ThreadFilter("thread_abc"))
}

func TestSubjectToken_EscapesSubjectSyntax(t *testing.T) {
	assert.Equal(t, "runs.a_b_c_d.failure", RunSubject("a.b*c>d", model.StatusFailure))
	assert.Equal(t, "runs.with_space.>", ThreadFilter("with space"))
}
