package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/file-analysis/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RUN_POLL_INTERVAL", "")
	t.Setenv("RUN_MAX_WAIT", "")
	t.Setenv("NATS_URL", "")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.RunPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.RunMaxWait)
	assert.Equal(t, 2, cfg.RunRateLimitRetries)
	assert.Equal(t, int64(512<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "0 * * * *", cfg.ArtifactRetentionCron)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RUN_POLL_INTERVAL", "250ms")
	t.Setenv("RUN_MAX_POLLS", "40")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("RUN_MAX_WAIT", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.RunPollInterval)
	assert.Equal(t, 40, cfg.RunMaxPolls)
	assert.Equal(t, int64(1048576), cfg.MaxUploadBytes)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 10*time.Minute, cfg.RunMaxWait, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			OpenAIAPIKey:          "sk-test",
			RunPollInterval:       time.Second,
			ArtifactRetention:     time.Hour,
			ArtifactRetentionCron: "*/5 * * * *",
		}
	}

	assert.NoError(t, valid().Validate())

	noKey := valid()
	noKey.OpenAIAPIKey = ""
	assert.Error(t, noKey.Validate())

	zeroPoll := valid()
	zeroPoll.RunPollInterval = 0
	assert.Error(t, zeroPoll.Validate())

	badCron := valid()
	badCron.ArtifactRetentionCron = "every hour"
	assert.Error(t, badCron.Validate())

	retentionOff := valid()
	retentionOff.ArtifactRetention = 0
	retentionOff.ArtifactRetentionCron = "every hour"
	assert.NoError(t, retentionOff.Validate())
}

func TestAgentSpec_FromEnvironment(t *testing.T) {
	cfg := &Config{AgentName: "analyst", ModelDeploymentName: "gpt-4o", AgentInstructions: "be precise"}

	spec, err := cfg.AgentSpec()
	require.NoError(t, err)

	assert.Equal(t, "analyst", spec.Name)
	assert.Equal(t, "gpt-4o", spec.Model)
	assert.Equal(t, []model.ToolCapability{model.ToolCodeInterpreter}, spec.Tools)
}

func TestAgentSpec_ProfileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	profile := "name: csv-analyst\ninstructions: |\n  Answer with numbers.\ntools:\n  - code_interpreter\n  - file_search\n"
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))

	cfg := &Config{AgentName: "env-name", ModelDeploymentName: "gpt-4o-mini", AgentConfigFile: path}
	spec, err := cfg.AgentSpec()
	require.NoError(t, err)

	assert.Equal(t, "csv-analyst", spec.Name)
	assert.Equal(t, "gpt-4o-mini", spec.Model)
	assert.Equal(t, "Answer with numbers.\n", spec.Instructions)
	assert.Equal(t, []model.ToolCapability{model.ToolCodeInterpreter, model.ToolFileSearch}, spec.Tools)
}

func TestAgentSpec_ProfileErrors(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{AgentConfigFile: filepath.Join(dir, "missing.yaml")}
	_, err := cfg.AgentSpec()
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools:\n  - browser\n"), 0o644))
	cfg.AgentConfigFile = bad
	_, err = cfg.AgentSpec()
	assert.Error(t, err)
}
