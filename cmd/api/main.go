// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/artifact"
	"github.com/capitalize-ai/file-analysis/internal/config"
	"github.com/capitalize-ai/file-analysis/internal/handler"
	natsclient "github.com/capitalize-ai/file-analysis/internal/nats"
	"github.com/capitalize-ai/file-analysis/internal/service"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
	"github.com/capitalize-ai/file-analysis/pkg/tracing"
)

const serviceName = "file-analysis"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Connect to NATS when the run event log is configured
	var natsClient *natsclient.Client
	var runEvents *natsclient.RunEventLog
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     serviceName,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		runEvents = natsclient.NewRunEventLog(natsClient)
		if err := runEvents.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
	} else {
		log.Info("NATS_URL not set, run event log disabled")
	}

	// Remote agent service
	client, err := agentapi.NewOpenAIClient(agentapi.Config{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		AzureEndpoint:   cfg.AzureOpenAIEndpoint,
		AzureAPIVersion: cfg.AzureOpenAIAPIVersion,
	})
	if err != nil {
		log.Fatal("failed to create agent client", zap.Error(err))
	}

	// Artifact store and retention
	store, err := artifact.NewStore(cfg.ArtifactDir)
	if err != nil {
		log.Fatal("failed to create artifact store", zap.Error(err))
	}
	stopRetention, err := artifact.StartRetention(ctx, store, cfg.ArtifactRetentionCron, cfg.ArtifactRetention, log.Named("retention"))
	if err != nil {
		log.Fatal("failed to start artifact retention", zap.Error(err))
	}
	defer stopRetention()

	agentSpec, err := cfg.AgentSpec()
	if err != nil {
		log.Fatal("failed to load agent profile", zap.Error(err))
	}

	// Initialize services
	var orchOpts []service.OrchestratorOption
	if runEvents != nil {
		orchOpts = append(orchOpts, service.WithEventPublisher(runEvents))
	}

	extractor := service.NewExtractor(client, store, log.Named("extractor"))
	orchestrator := service.NewOrchestrator(client, extractor, service.OrchestratorConfig{
		PollInterval: cfg.RunPollInterval,
		MaxWait:      cfg.RunMaxWait,
		MaxPolls:     cfg.RunMaxPolls,
	}, log.Named("orchestrator"), orchOpts...)
	composer := service.NewMessageComposer(client, log.Named("composer"))
	attachments := service.NewAttachmentResolver(client, cfg.MaxUploadBytes, log.Named("attachments"))
	agents := service.NewAgentService(client, log.Named("agents"))
	analysis := service.NewAnalysisService(client, agents, attachments, composer, orchestrator, agentSpec,
		service.RetryPolicy{
			MaxRetries:      cfg.RunRateLimitRetries,
			InitialInterval: cfg.RunRetryInitialInterval,
		}, log.Named("analysis"))

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	agentID, err := agents.EnsureAgent(startupCtx, agentSpec)
	cancel()
	if err != nil {
		log.Fatal("failed to ensure agent", zap.String("name", agentSpec.Name), zap.Error(err))
	}
	log.Info("agent ready", zap.String("agent_id", agentID), zap.String("name", agentSpec.Name))

	// Initialize handlers
	var eventLister handler.RunEventLister
	if runEvents != nil {
		eventLister = runEvents
	}

	router := handler.NewRouter(handler.RouterConfig{
		Health:            handler.NewHealthHandler(natsClient),
		Threads:           handler.NewThreadHandler(client, composer, log),
		Files:             handler.NewFileHandler(attachments, cfg.MaxUploadBytes, log),
		Runs:              handler.NewRunHandler(orchestrator, agentID, eventLister, log),
		Analyses:          handler.NewAnalysisHandler(analysis, cfg.UploadDir, cfg.MaxUploadBytes, log),
		Artifacts:         handler.NewArtifactHandler(store),
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log.Named("http"),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
