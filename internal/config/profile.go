package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/file-analysis/internal/model"
)

// AgentSpec returns the agent to ensure at startup. Values from the YAML
// profile in AgentConfigFile override the environment.
func (c *Config) AgentSpec() (model.AgentSpec, error) {
	spec := model.AgentSpec{
		Name:         c.AgentName,
		Model:        c.ModelDeploymentName,
		Instructions: c.AgentInstructions,
		Tools:        []model.ToolCapability{model.ToolCodeInterpreter},
	}

	if c.AgentConfigFile == "" {
		return spec, nil
	}

	data, err := os.ReadFile(c.AgentConfigFile)
	if err != nil {
		return spec, fmt.Errorf("failed to read agent profile: %w", err)
	}

	var profile model.AgentSpec
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return spec, fmt.Errorf("failed to parse agent profile: %w", err)
	}

	if profile.Name != "" {
		spec.Name = profile.Name
	}
	if profile.Model != "" {
		spec.Model = profile.Model
	}
	if profile.Instructions != "" {
		spec.Instructions = profile.Instructions
	}
	if len(profile.Tools) > 0 {
		for _, tool := range profile.Tools {
			if tool != model.ToolCodeInterpreter && tool != model.ToolFileSearch {
				return spec, fmt.Errorf("agent profile: unknown tool %q", tool)
			}
		}
		spec.Tools = profile.Tools
	}

	return spec, nil
}
