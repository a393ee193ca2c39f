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

// MessageComposer adds user turns to threads.
type MessageComposer struct {
	client agentapi.Client
	logger *logger.Logger
}

// NewMessageComposer creates a new message composer.
func NewMessageComposer(client agentapi.Client, log *logger.Logger) *MessageComposer {
	return &MessageComposer{
		client: client,
		logger: log,
	}
}

// BuildMessage builds a user message, binding fileID to the code execution
// tool when it is non-empty.
func BuildMessage(text, fileID string) model.MessageRequest {
	req := model.MessageRequest{
		Role:    model.RoleUser,
		Content: text,
	}
	if fileID != "" {
		req.Attachments = []model.Attachment{CodeInterpreterBinding(fileID)}
	}
	return req
}

// Compose creates the user message in one remote call, so a failure leaves
// nothing behind in the thread.
func (c *MessageComposer) Compose(ctx context.Context, threadID, text, fileID string) (string, error) {
	if threadID == "" {
		return "", errors.New("thread id is required")
	}

	messageID, err := c.client.CreateMessage(ctx, threadID, BuildMessage(text, fileID))
	if err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	c.logger.Debug("message created",
		zap.String("thread_id", threadID),
		zap.String("message_id", messageID),
		zap.Bool("attachment", fileID != ""),
	)

	return messageID, nil
}
