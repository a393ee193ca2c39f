package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/file-analysis/internal/agentapi/agentapitest"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

func TestBuildMessage(t *testing.T) {
	plain := BuildMessage("What is the mean?", "")
	assert.Equal(t, model.RoleUser, plain.Role)
	assert.Equal(t, "What is the mean?", plain.Content)
	assert.Empty(t, plain.Attachments)

	withFile := BuildMessage("Plot it", "file-123")
	require.Len(t, withFile.Attachments, 1)
	assert.Equal(t, "file-123", withFile.Attachments[0].FileID)
	assert.Equal(t, []model.ToolCapability{model.ToolCodeInterpreter}, withFile.Attachments[0].Tools)
}

func TestCompose_AppendsUserMessage(t *testing.T) {
	client := agentapitest.New()
	threadID, err := client.CreateThread(context.Background())
	require.NoError(t, err)

	c := NewMessageComposer(client, logger.NewNop())
	id, err := c.Compose(context.Background(), threadID, "Describe the columns", "file-9")
	require.NoError(t, err)

	msgs := client.Messages(threadID)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Describe the columns", msgs[0].Blocks[0].Text.Value)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "file-9", msgs[0].Attachments[0].FileID)
}

func TestCompose_Errors(t *testing.T) {
	client := agentapitest.New()
	c := NewMessageComposer(client, logger.NewNop())

	_, err := c.Compose(context.Background(), "", "q", "")
	assert.Error(t, err)
	assert.Zero(t, client.Calls(agentapitest.OpCreateMessage))

	threadID, err := client.CreateThread(context.Background())
	require.NoError(t, err)
	client.Fail(agentapitest.OpCreateMessage, agentapitest.Status(agentapitest.OpCreateMessage, http.StatusInternalServerError))

	_, err = c.Compose(context.Background(), threadID, "q", "")
	require.Error(t, err)
	assert.Empty(t, client.Messages(threadID))
}
