// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Remote agent service
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	AzureOpenAIEndpoint   string
	AzureOpenAIAPIVersion string

	// Agent
	ModelDeploymentName string
	AgentName           string
	AgentInstructions   string
	AgentConfigFile     string

	// Run orchestration
	RunPollInterval         time.Duration
	RunMaxWait              time.Duration
	RunMaxPolls             int
	RunRateLimitRetries     int
	RunRetryInitialInterval time.Duration

	// Files and artifacts
	UploadDir             string
	MaxUploadBytes        int64
	ArtifactDir           string
	ArtifactRetention     time.Duration
	ArtifactRetentionCron string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

const defaultInstructions = "You are a data analyst. Use the code interpreter to analyze the attached file " +
	"and answer questions about it. Produce charts as images when they help."

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Minute),

		// Remote agent service
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", ""),

		// Agent
		ModelDeploymentName: getEnv("MODEL_DEPLOYMENT_NAME", "gpt-4o"),
		AgentName:           getEnv("CODE_INTERPRETER_AGENT_NAME", "file-analysis-agent"),
		AgentInstructions:   getEnv("AGENT_INSTRUCTIONS", defaultInstructions),
		AgentConfigFile:     getEnv("AGENT_CONFIG_FILE", ""),

		// Run orchestration
		RunPollInterval:         getDurationEnv("RUN_POLL_INTERVAL", time.Second),
		RunMaxWait:              getDurationEnv("RUN_MAX_WAIT", 10*time.Minute),
		RunMaxPolls:             getIntEnv("RUN_MAX_POLLS", 0),
		RunRateLimitRetries:     getIntEnv("RUN_RATE_LIMIT_RETRIES", 2),
		RunRetryInitialInterval: getDurationEnv("RUN_RETRY_INITIAL_INTERVAL", 5*time.Second),

		// Files and artifacts
		UploadDir:             getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes:        getInt64Env("MAX_UPLOAD_BYTES", 512<<20),
		ArtifactDir:           getEnv("ARTIFACT_DIR", "artifacts"),
		ArtifactRetention:     getDurationEnv("ARTIFACT_RETENTION", 24*time.Hour),
		ArtifactRetentionCron: getEnv("ARTIFACT_RETENTION_CRON", "0 * * * *"),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.RunPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("RUN_POLL_INTERVAL must be positive, got %s", c.RunPollInterval))
	}
	if c.RunMaxWait < 0 || c.RunMaxPolls < 0 || c.RunRateLimitRetries < 0 {
		errs = append(errs, errors.New("run limits must not be negative"))
	}
	if c.ArtifactRetention > 0 && !gronx.IsValid(c.ArtifactRetentionCron) {
		errs = append(errs, fmt.Errorf("ARTIFACT_RETENTION_CRON is not a valid cron expression: %q", c.ArtifactRetentionCron))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
