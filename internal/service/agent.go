package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// AgentService manages agents on the remote service.
type AgentService struct {
	client agentapi.Client
	logger *logger.Logger
}

// NewAgentService creates a new agent service.
func NewAgentService(client agentapi.Client, log *logger.Logger) *AgentService {
	return &AgentService{
		client: client,
		logger: log,
	}
}

// EnsureAgent returns the id of the agent named spec.Name, creating it only
// when the remote listing has none. The lookup is against the service, not a
// process cache, so independent processes converge on the same agent.
func (s *AgentService) EnsureAgent(ctx context.Context, spec model.AgentSpec) (string, error) {
	if spec.Name == "" {
		return "", errors.New("agent name is required")
	}

	agents, err := s.client.ListAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list agents: %w", err)
	}

	for _, a := range agents {
		if a.Name == spec.Name {
			s.logger.Debug("agent exists", zap.String("agent_id", a.ID), zap.String("name", a.Name))
			return a.ID, nil
		}
	}

	if spec.Model == "" {
		return "", errors.New("agent model is required")
	}

	created, err := s.client.CreateAgent(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}

	s.logger.Info("agent created",
		zap.String("agent_id", created.ID),
		zap.String("name", spec.Name),
		zap.String("model", spec.Model),
	)

	return created.ID, nil
}

// DeleteAgent deletes an agent. Missing ids are not an error.
func (s *AgentService) DeleteAgent(ctx context.Context, agentID string) error {
	if err := s.client.DeleteAgent(ctx, agentID); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}
