package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// citationMarker matches source markers such as 【4:0†source】.
var citationMarker = regexp.MustCompile(`【[^】]*】`)

// ArtifactSaver persists downloaded image bytes for an owner and returns a
// local path.
type ArtifactSaver interface {
	Save(owner, fileID string, data []byte) (string, error)
	Remove(path string) error
}

// Extraction is the content pulled from a completed run.
type Extraction struct {
	AnswerText string
	ImagePaths []string
}

// Extractor turns the messages of a completed run into answer text and
// saved image artifacts.
type Extractor struct {
	client    agentapi.Client
	artifacts ArtifactSaver
	logger    *logger.Logger
}

// NewExtractor creates a new response extractor.
func NewExtractor(client agentapi.Client, artifacts ArtifactSaver, log *logger.Logger) *Extractor {
	return &Extractor{
		client:    client,
		artifacts: artifacts,
		logger:    log,
	}
}

// Extract reads the thread newest-first and builds the answer from the most
// recent assistant message of runID. Images from every assistant message of
// the run are saved in chronological order, block order within a message.
func (e *Extractor) Extract(ctx context.Context, threadID, runID string) (*Extraction, error) {
	messages, err := e.client.ListMessages(ctx, threadID, agentapi.ListMessagesOptions{
		Order: agentapi.OrderNewestFirst,
		RunID: runID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	replies := runReplies(messages, runID)
	out := &Extraction{ImagePaths: []string{}}
	if len(replies) == 0 {
		e.logger.Warn("no assistant message for completed run",
			zap.String("thread_id", threadID),
			zap.String("run_id", runID),
		)
		return out, nil
	}

	// Reject unknown block kinds before any download so a failed extraction
	// leaves no artifacts behind.
	for _, msg := range replies {
		for _, block := range msg.Blocks {
			if !supportedBlock(block) {
				return nil, &UnsupportedBlockError{MessageID: msg.ID, Kind: block.Kind}
			}
		}
	}

	out.AnswerText = answerText(replies[0])

	owner := TenantFromContext(ctx)
	for i := len(replies) - 1; i >= 0; i-- {
		for _, block := range replies[i].Blocks {
			if block.Kind != model.BlockKindImage {
				continue
			}
			path, err := e.saveImage(ctx, owner, block.Image.FileID)
			if err != nil {
				e.discard(out.ImagePaths)
				return nil, err
			}
			out.ImagePaths = append(out.ImagePaths, path)
		}
	}

	return out, nil
}

func (e *Extractor) saveImage(ctx context.Context, owner, fileID string) (string, error) {
	data, err := e.client.GetFileContent(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to download image %s: %w", fileID, err)
	}

	path, err := e.artifacts.Save(owner, fileID, data)
	if err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", fileID, err)
	}

	e.logger.Debug("image saved", zap.String("file_id", fileID), zap.String("path", path))
	return path, nil
}

// discard removes images saved by an extraction that did not complete.
func (e *Extractor) discard(paths []string) {
	for _, path := range paths {
		if err := e.artifacts.Remove(path); err != nil {
			e.logger.Warn("failed to remove partial artifact", zap.String("path", path), zap.Error(err))
		}
	}
}

// runReplies keeps the assistant messages produced by runID, newest first.
// When the service reports no run ids at all, only the latest assistant
// message is attributable to the run.
func runReplies(messages []model.Message, runID string) []model.Message {
	var assistant []model.Message
	tagged := false
	for _, m := range messages {
		if m.Role != model.RoleAssistant {
			continue
		}
		if m.RunID != "" {
			tagged = true
		}
		assistant = append(assistant, m)
	}

	if len(assistant) == 0 {
		return nil
	}
	if !tagged || runID == "" {
		return assistant[:1]
	}

	var replies []model.Message
	for _, m := range assistant {
		if m.RunID == runID {
			replies = append(replies, m)
		}
	}
	return replies
}

// supportedBlock is the exhaustive block dispatch: a kind added later is
// rejected here until it is handled.
func supportedBlock(block model.ContentBlock) bool {
	switch block.Kind {
	case model.BlockKindText:
		return block.Text != nil
	case model.BlockKindImage:
		return block.Image != nil && block.Image.FileID != ""
	default:
		return false
	}
}

func answerText(msg model.Message) string {
	var parts []string
	for _, block := range msg.Blocks {
		if block.Kind == model.BlockKindText {
			parts = append(parts, StripCitations(*block.Text))
		}
	}
	return strings.Join(parts, "\n")
}

// StripCitations removes inline citation markers from a text block.
func StripCitations(text model.TextContent) string {
	value := text.Value
	for _, c := range text.Citations {
		if c.Text != "" {
			value = strings.ReplaceAll(value, c.Text, "")
		}
	}
	return citationMarker.ReplaceAllString(value, "")
}
