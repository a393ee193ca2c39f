package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/file-analysis/internal/model"
)

const (
	// StreamName is the name of the run event stream.
	StreamName = "AGENT_RUNS"

	// SubjectPrefix is the prefix for all run event subjects.
	SubjectPrefix = "runs"
)

// RunEventLog publishes and replays terminal run outcomes.
type RunEventLog struct {
	js jetstream.JetStream
}

// NewRunEventLog creates a new run event log.
func NewRunEventLog(client *Client) *RunEventLog {
	return &RunEventLog{js: client.JetStream()}
}

// EnsureStream creates the run event stream when it does not exist.
func (l *RunEventLog) EnsureStream(ctx context.Context) error {
	if _, err := l.js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err := l.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Terminal outcomes of agent runs",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// RunSubject returns the subject for a run outcome.
func RunSubject(threadID string, status model.Status) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(threadID), status)
}

// ThreadFilter returns the filter subject for every outcome on a thread.
func ThreadFilter(threadID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(threadID))
}

// subjectToken keeps ids from introducing extra subject levels or wildcards.
func subjectToken(id string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}

// PublishRunEvent appends an event and returns its stream sequence.
func (l *RunEventLog) PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal run event: %w", err)
	}

	ack, err := l.js.Publish(ctx, RunSubject(event.ThreadID, event.Status), data,
		jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish run event: %w", err)
	}

	return ack.Sequence, nil
}

// ListRunEvents returns up to limit events of a thread after a sequence.
func (l *RunEventLog) ListRunEvents(ctx context.Context, threadID string, afterSequence uint64, limit int) ([]model.RunEvent, uint64, bool, error) {
	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: ThreadFilter(threadID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := l.js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch run events: %w", err)
	}

	events := make([]model.RunEvent, 0, limit)
	var lastSequence uint64

	for msg := range batch.Messages() {
		var event model.RunEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}

		if meta, err := msg.Metadata(); err == nil {
			event.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, len(events) == limit, nil
}
