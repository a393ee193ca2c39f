// Package agentapi provides the client boundary to the remote agent execution
// service and its implementations.
package agentapi

import (
	"context"

	"github.com/capitalize-ai/file-analysis/internal/model"
)

// Order is the delivery order of listed messages.
type Order string

const (
	OrderNewestFirst Order = "desc"
	OrderOldestFirst Order = "asc"
)

// ListMessagesOptions narrows a message listing.
type ListMessagesOptions struct {
	Order Order
	// RunID restricts the listing to messages produced by one run.
	RunID string
	// Limit caps the number of returned messages; zero returns every page.
	Limit int
}

// Client is the interface for the remote agent service. Every method is a
// single remote call from the caller's point of view; implementations do not
// retry.
type Client interface {
	// ListAgents returns every agent visible to the credentials.
	ListAgents(ctx context.Context) ([]model.Agent, error)

	// CreateAgent creates a new agent.
	CreateAgent(ctx context.Context, spec model.AgentSpec) (*model.Agent, error)

	// DeleteAgent deletes an agent. Missing ids are not an error.
	DeleteAgent(ctx context.Context, agentID string) error

	// CreateThread creates an empty conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// DeleteThread deletes a thread. Missing ids are not an error.
	DeleteThread(ctx context.Context, threadID string) error

	// UploadFile stores bytes remotely for use by agents.
	UploadFile(ctx context.Context, name string, data []byte) (string, error)

	// DeleteFile releases an uploaded file. Missing ids are not an error.
	DeleteFile(ctx context.Context, fileID string) error

	// GetFileContent downloads the raw bytes of a file.
	GetFileContent(ctx context.Context, fileID string) ([]byte, error)

	// CreateMessage appends a message to a thread and returns its id.
	CreateMessage(ctx context.Context, threadID string, req model.MessageRequest) (string, error)

	// CreateRun starts an agent run on a thread. Not idempotent.
	CreateRun(ctx context.Context, threadID, agentID string) (string, error)

	// GetRun fetches the current state of a run.
	GetRun(ctx context.Context, threadID, runID string) (*model.RunSnapshot, error)

	// ListMessages returns thread messages in the requested order.
	ListMessages(ctx context.Context, threadID string, opts ListMessagesOptions) ([]model.Message, error)
}
