package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
	"github.com/capitalize-ai/file-analysis/pkg/metrics"
	"github.com/capitalize-ai/file-analysis/pkg/tracing"
)

// DefaultPollInterval is the delay before each run state fetch.
const DefaultPollInterval = time.Second

// StateCallback is called for every newly observed run state.
type StateCallback func(event model.StateEvent)

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// EventPublisher records terminal run outcomes.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error)
}

// OrchestratorConfig bounds the polling loop. Zero MaxWait and MaxPolls leave
// the loop unbounded; the caller's context is then the only limit.
type OrchestratorConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	MaxPolls     int
}

// Orchestrator submits runs and drives them to a normalized result.
type Orchestrator struct {
	client    agentapi.Client
	extractor *Extractor
	events    EventPublisher
	cfg       OrchestratorConfig
	wait      WaitFunc
	now       func() time.Time
	logger    *logger.Logger
	tracer    trace.Tracer
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWaitFunc replaces the inter-poll sleep.
func WithWaitFunc(wait WaitFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.wait = wait }
}

// WithClock replaces the time source used for the wait ceiling.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithEventPublisher records every terminal outcome.
func WithEventPublisher(events EventPublisher) OrchestratorOption {
	return func(o *Orchestrator) { o.events = events }
}

// NewOrchestrator creates a new run orchestrator.
func NewOrchestrator(client agentapi.Client, extractor *Extractor, cfg OrchestratorConfig, log *logger.Logger, opts ...OrchestratorOption) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	o := &Orchestrator{
		client:    client,
		extractor: extractor,
		cfg:       cfg,
		wait:      sleepContext,
		now:       time.Now,
		logger:    log,
		tracer:    tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run submits a run of agentID on threadID and polls it to a terminal state.
// Run failures and timeouts are reported in the result; a returned error means
// the service could not be reached or ctx ended.
func (o *Orchestrator) Run(ctx context.Context, threadID, agentID string) (*model.NormalizedResult, error) {
	return o.RunWithProgress(ctx, threadID, agentID, nil)
}

// RunWithProgress is Run with a callback for every state change.
func (o *Orchestrator) RunWithProgress(ctx context.Context, threadID, agentID string, onState StateCallback) (*model.NormalizedResult, error) {
	ctx, span := o.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("thread_id", threadID),
		attribute.String("agent_id", agentID),
	))
	defer span.End()

	start := o.now()

	// Submission is the only state-creating call and is never retried here.
	runID, err := o.client.CreateRun(ctx, threadID, agentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		o.logger.Error("run submission failed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, fmt.Errorf("failed to submit run: %w", err)
	}
	span.SetAttributes(attribute.String("run_id", runID))

	log := o.logger.ForRun(threadID, runID)
	log.Info("run submitted", zap.String("agent_id", agentID))

	if onState != nil {
		onState(model.StateEvent{RunID: runID, State: model.RunStateQueued})
	}

	poll, err := o.poll(ctx, threadID, runID, start, onState, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		log.Error("run polling failed", zap.Int("polls", poll.count), zap.Error(err))
		return nil, err
	}

	var result *model.NormalizedResult
	if poll.timedOut {
		result = model.NewTimeoutResult(runID, poll.last.State,
			fmt.Sprintf("run still %s after %d polls", poll.last.State, poll.count), model.UsageOf(poll.last))
		log.Warn("run wait ceiling reached", zap.String("state", string(poll.last.State)), zap.Int("polls", poll.count))
	} else {
		result, err = o.finish(ctx, threadID, poll.last)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "extract failed")
			log.Error("run extraction failed", zap.Error(err))
			return nil, err
		}
	}

	elapsed := o.now().Sub(start)
	o.record(ctx, agentID, threadID, poll, result, elapsed, log)
	span.SetAttributes(attribute.String("status", string(result.Status)))

	return result, nil
}

type pollOutcome struct {
	last     *model.RunSnapshot
	count    int
	timedOut bool
}

// poll fetches the run after every interval until Terminal reports true or a
// configured ceiling is hit.
func (o *Orchestrator) poll(ctx context.Context, threadID, runID string, start time.Time, onState StateCallback, log *logger.Logger) (pollOutcome, error) {
	out := pollOutcome{
		last: &model.RunSnapshot{ID: runID, ThreadID: threadID, State: model.RunStateQueued},
	}

	var deadline time.Time
	if o.cfg.MaxWait > 0 {
		deadline = start.Add(o.cfg.MaxWait)
	}

	for {
		if o.cfg.MaxPolls > 0 && out.count >= o.cfg.MaxPolls {
			out.timedOut = true
			return out, nil
		}
		interval := o.cfg.PollInterval
		if !deadline.IsZero() {
			remaining := deadline.Sub(o.now())
			if remaining <= 0 {
				out.timedOut = true
				return out, nil
			}
			// The last wait ends at the deadline, not up to an interval past it.
			interval = min(interval, remaining)
		}

		if err := o.wait(ctx, interval); err != nil {
			return out, fmt.Errorf("run %s: %w", runID, err)
		}

		snap, err := o.client.GetRun(ctx, threadID, runID)
		out.count++
		if err != nil {
			return out, fmt.Errorf("failed to poll run %s: %w", runID, err)
		}

		if snap.State != out.last.State {
			log.Debug("run state changed",
				zap.String("from", string(out.last.State)),
				zap.String("to", string(snap.State)),
				zap.Int("poll", out.count),
			)
			if onState != nil {
				onState(model.StateEvent{RunID: runID, State: snap.State, Poll: out.count})
			}
		}
		out.last = snap

		if snap.State.Terminal() {
			return out, nil
		}
	}
}

// finish normalizes a terminal snapshot, extracting content on completion.
func (o *Orchestrator) finish(ctx context.Context, threadID string, snap *model.RunSnapshot) (*model.NormalizedResult, error) {
	usage := model.UsageOf(snap)

	runErr := ClassifyTerminal(snap)
	if runErr != nil {
		return model.NewFailureResult(snap.ID, *runErr, usage), nil
	}

	ctx, span := o.tracer.Start(ctx, "run.extract")
	defer span.End()

	extraction, err := o.extractor.Extract(ctx, threadID, snap.ID)
	if err != nil {
		var blockErr *UnsupportedBlockError
		if errors.As(err, &blockErr) {
			return model.NewFailureResult(snap.ID, model.RunError{
				State:   snap.State,
				Code:    model.ErrorCodeUnsupportedContent,
				Message: blockErr.Error(),
			}, usage), nil
		}
		return nil, err
	}

	return model.NewSuccessResult(snap.ID, extraction.AnswerText, extraction.ImagePaths, usage), nil
}

// ClassifyTerminal maps a terminal snapshot to nil for success or to the
// error describing the failure.
func ClassifyTerminal(snap *model.RunSnapshot) *model.RunError {
	runErr := &model.RunError{State: snap.State}
	if snap.LastError != nil {
		runErr.Code = snap.LastError.Code
		runErr.Message = snap.LastError.Message
	}

	switch snap.State {
	case model.RunStateCompleted:
		return nil
	case model.RunStateRequiresAction:
		runErr.Code = model.ErrorCodeRequiresAction
		if runErr.Message == "" {
			runErr.Message = "run requested tool outputs, which are not supported"
		}
	case model.RunStateFailed, model.RunStateCancelled, model.RunStateExpired, model.RunStateIncomplete:
		if runErr.Code == "" {
			runErr.Code = string(snap.State)
		}
	default:
		runErr.Code = model.ErrorCodeUnknownState
		if runErr.Message == "" {
			runErr.Message = fmt.Sprintf("unrecognized run state %q", snap.State)
		}
	}

	return runErr
}

func (o *Orchestrator) record(ctx context.Context, agentID, threadID string, poll pollOutcome, result *model.NormalizedResult, elapsed time.Duration, log *logger.Logger) {
	metrics.RecordRun(string(result.Status), elapsed.Seconds(), poll.count,
		result.Usage.PromptTokens, result.Usage.CompletionTokens)

	fields := []zap.Field{
		zap.String("status", string(result.Status)),
		zap.String("state", string(poll.last.State)),
		zap.Int("polls", poll.count),
		zap.Int("images", len(result.ImagePaths)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("duration", elapsed),
	}
	if result.Error != nil {
		fields = append(fields, zap.String("error_code", result.Error.Code), zap.String("error_message", result.Error.Message))
	}
	log.Info("run finished", fields...)

	if o.events == nil {
		return
	}

	event := &model.RunEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ThreadID:   threadID,
		RunID:      result.RunID,
		AgentID:    agentID,
		TenantID:   TenantFromContext(ctx),
		Status:     result.Status,
		State:      poll.last.State,
		Error:      result.Error,
		Usage:      result.Usage,
		ImageCount: len(result.ImagePaths),
		Polls:      poll.count,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	// The event log is an audit trail; it never changes the result.
	if _, err := o.events.PublishRunEvent(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("failed to publish run event", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
