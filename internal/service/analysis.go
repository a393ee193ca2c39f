// Package service provides the run lifecycle and file analysis logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
	"github.com/capitalize-ai/file-analysis/pkg/tracing"
)

var errRunRateLimited = errors.New("run rate limited")

// Runner executes one run on a thread.
type Runner interface {
	Run(ctx context.Context, threadID, agentID string) (*model.NormalizedResult, error)
}

// RetryPolicy controls re-submission of runs that failed on rate limiting.
// A run is only re-submitted after the previous one reached a terminal state.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
}

// AnalysisService answers a list of questions about one data file.
type AnalysisService struct {
	client      agentapi.Client
	agents      *AgentService
	attachments *AttachmentResolver
	composer    *MessageComposer
	runner      Runner
	agentSpec   model.AgentSpec
	retry       RetryPolicy
	logger      *logger.Logger
	tracer      trace.Tracer
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(
	client agentapi.Client,
	agents *AgentService,
	attachments *AttachmentResolver,
	composer *MessageComposer,
	runner Runner,
	agentSpec model.AgentSpec,
	retry RetryPolicy,
	log *logger.Logger,
) *AnalysisService {
	return &AnalysisService{
		client:      client,
		agents:      agents,
		attachments: attachments,
		composer:    composer,
		runner:      runner,
		agentSpec:   agentSpec,
		retry:       retry,
		logger:      log,
		tracer:      tracing.Tracer(),
	}
}

// Process uploads the file, opens a thread, and asks each question in order.
// A failed run is recorded and the next question proceeds; a transport error
// aborts. The thread and the uploaded file are always released.
func (s *AnalysisService) Process(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisResponse, error) {
	if len(req.Questions) == 0 {
		return nil, errors.New("at least one question is required")
	}

	ctx, span := s.tracer.Start(ctx, "analysis.process", trace.WithAttributes(
		attribute.Int("questions", len(req.Questions)),
	))
	defer span.End()

	if req.TenantID != "" {
		ctx = WithTenant(ctx, req.TenantID)
	}

	start := time.Now()

	agentID, err := s.agents.EnsureAgent(ctx, s.agentSpec)
	if err != nil {
		return nil, err
	}

	name := req.FileName
	if name == "" {
		name = filepath.Base(req.FilePath)
	}
	attachment, err := s.attachments.ResolveAs(ctx, req.FilePath, name)
	if err != nil {
		return nil, err
	}
	defer s.cleanup(ctx, "file", attachment.FileID, s.client.DeleteFile)

	threadID, err := s.client.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	defer s.cleanup(ctx, "thread", threadID, s.client.DeleteThread)

	log := s.logger.With(zap.String("thread_id", threadID), zap.String("file_id", attachment.FileID))

	resp := &model.AnalysisResponse{
		ThreadID: threadID,
		FileID:   attachment.FileID,
		Results:  make([]model.QuestionResult, 0, len(req.Questions)),
	}

	for i, question := range req.Questions {
		fileID := ""
		if i == 0 {
			fileID = attachment.FileID
		}

		if _, err := s.composer.Compose(ctx, threadID, question, fileID); err != nil {
			return nil, err
		}

		result, err := s.runWithRetry(ctx, threadID, agentID)
		if err != nil {
			return nil, err
		}

		log.Info("question answered",
			zap.Int("index", i),
			zap.String("status", string(result.Status)),
		)
		resp.Results = append(resp.Results, model.QuestionResult{
			Question: question,
			Result:   result,
		})
	}

	resp.Elapsed = time.Since(start)
	resp.Seconds = resp.Elapsed.Seconds()
	return resp, nil
}

// runWithRetry re-submits a run whose terminal outcome was a rate limit.
// When retries run out the last rate-limited result is returned as is; when
// ctx ends first its error is returned.
func (s *AnalysisService) runWithRetry(ctx context.Context, threadID, agentID string) (*model.NormalizedResult, error) {
	var result *model.NormalizedResult
	attempt := 0

	op := func() error {
		attempt++
		r, err := s.runner.Run(ctx, threadID, agentID)
		if err != nil {
			return backoff.Permanent(err)
		}
		result = r
		if r.RateLimited() {
			s.logger.Warn("run rate limited",
				zap.String("thread_id", threadID),
				zap.String("run_id", r.RunID),
				zap.Int("attempt", attempt),
			)
			return errRunRateLimited
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(max(s.retry.MaxRetries, 0))), ctx))
	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("run on thread %s interrupted after %d attempts: %w", threadID, attempt, ctx.Err())
	case errors.Is(err, errRunRateLimited):
		return result, nil
	default:
		return nil, err
	}
}

func (s *AnalysisService) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if s.retry.InitialInterval > 0 {
		b.InitialInterval = s.retry.InitialInterval
	}
	b.MaxElapsedTime = 0
	return b
}

func (s *AnalysisService) cleanup(ctx context.Context, kind, id string, del func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := del(ctx, id); err != nil {
		s.logger.Warn("cleanup failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}
