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

var testAgentSpec = model.AgentSpec{
	Name:         "Data Analyst",
	Model:        "gpt-4o",
	Instructions: "Analyze the attached data file.",
	Tools:        []model.ToolCapability{model.ToolCodeInterpreter},
}

func TestEnsureAgent_CreatesOnce(t *testing.T) {
	client := agentapitest.New()
	svc := NewAgentService(client, logger.NewNop())

	first, err := svc.EnsureAgent(context.Background(), testAgentSpec)
	require.NoError(t, err)
	second, err := svc.EnsureAgent(context.Background(), testAgentSpec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.Calls(agentapitest.OpCreateAgent))
	assert.Equal(t, 2, client.Calls(agentapitest.OpListAgents))
}

func TestEnsureAgent_ReusesExistingByName(t *testing.T) {
	client := agentapitest.New()
	client.Agents = []model.Agent{
		{ID: "asst_other", Name: "Other"},
		{ID: "asst_existing", Name: "Data Analyst"},
	}
	svc := NewAgentService(client, logger.NewNop())

	id, err := svc.EnsureAgent(context.Background(), testAgentSpec)
	require.NoError(t, err)

	assert.Equal(t, "asst_existing", id)
	assert.Zero(t, client.Calls(agentapitest.OpCreateAgent))
}

func TestEnsureAgent_SeparateServicesConverge(t *testing.T) {
	client := agentapitest.New()

	a, err := NewAgentService(client, logger.NewNop()).EnsureAgent(context.Background(), testAgentSpec)
	require.NoError(t, err)
	b, err := NewAgentService(client, logger.NewNop()).EnsureAgent(context.Background(), testAgentSpec)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, client.Agents, 1)
}

func TestEnsureAgent_Validation(t *testing.T) {
	svc := NewAgentService(agentapitest.New(), logger.NewNop())

	_, err := svc.EnsureAgent(context.Background(), model.AgentSpec{Model: "gpt-4o"})
	assert.Error(t, err)

	_, err = svc.EnsureAgent(context.Background(), model.AgentSpec{Name: "no model"})
	assert.Error(t, err)
}

func TestEnsureAgent_ListError(t *testing.T) {
	client := agentapitest.New()
	client.Fail(agentapitest.OpListAgents, agentapitest.Status(agentapitest.OpListAgents, http.StatusUnauthorized))
	svc := NewAgentService(client, logger.NewNop())

	_, err := svc.EnsureAgent(context.Background(), testAgentSpec)
	require.Error(t, err)
	assert.Zero(t, client.Calls(agentapitest.OpCreateAgent))
}
