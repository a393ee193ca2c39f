package agentapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/metrics"
)

const listPageSize = 100

// Config holds connection settings for the OpenAI-compatible Assistants API.
type Config struct {
	APIKey          string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string
	HTTPClient      *http.Client
}

// OpenAIClient is the Assistants API implementation of Client.
type OpenAIClient struct {
	client *openai.Client
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new Assistants API client. An Azure endpoint
// switches the client to Azure OpenAI routing and authentication.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	var clientConfig openai.ClientConfig
	if cfg.AzureEndpoint != "" {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			clientConfig.APIVersion = cfg.AzureAPIVersion
		}
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// ListAgents walks every page of assistants.
func (c *OpenAIClient) ListAgents(ctx context.Context) ([]model.Agent, error) {
	limit := listPageSize
	order := string(OrderNewestFirst)
	var after *string
	var agents []model.Agent

	for {
		page, err := c.client.ListAssistants(ctx, &limit, &order, after, nil)
		if err != nil {
			return nil, c.fail("list_agents", err)
		}

		for _, a := range page.Assistants {
			agents = append(agents, toAgent(a))
		}

		if !page.HasMore || page.LastID == nil {
			break
		}
		after = page.LastID
	}

	return agents, nil
}

// CreateAgent creates an assistant with the requested tools.
func (c *OpenAIClient) CreateAgent(ctx context.Context, spec model.AgentSpec) (*model.Agent, error) {
	name := spec.Name
	instructions := spec.Instructions

	tools := make([]openai.AssistantTool, 0, len(spec.Tools))
	for _, t := range spec.Tools {
		tools = append(tools, openai.AssistantTool{Type: openai.AssistantToolType(t)})
	}

	a, err := c.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        spec.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        tools,
	})
	if err != nil {
		return nil, c.fail("create_agent", err)
	}

	agent := toAgent(a)
	return &agent, nil
}

// DeleteAgent deletes an assistant.
func (c *OpenAIClient) DeleteAgent(ctx context.Context, agentID string) error {
	if _, err := c.client.DeleteAssistant(ctx, agentID); err != nil {
		return ignoreNotFound(c.fail("delete_agent", err))
	}
	return nil
}

// CreateThread creates an empty thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", c.fail("create_thread", err)
	}
	return thread.ID, nil
}

// DeleteThread deletes a thread.
func (c *OpenAIClient) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := c.client.DeleteThread(ctx, threadID); err != nil {
		return ignoreNotFound(c.fail("delete_thread", err))
	}
	return nil
}

// UploadFile uploads bytes with the assistants purpose.
func (c *OpenAIClient) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := c.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", c.fail("upload_file", err)
	}
	return file.ID, nil
}

// DeleteFile deletes an uploaded file.
func (c *OpenAIClient) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.client.DeleteFile(ctx, fileID); err != nil {
		return ignoreNotFound(c.fail("delete_file", err))
	}
	return nil
}

// GetFileContent downloads a file.
func (c *OpenAIClient) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	body, err := c.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, c.fail("get_file_content", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, c.fail("get_file_content", fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

// CreateMessage appends a message, translating attachment bindings.
func (c *OpenAIClient) CreateMessage(ctx context.Context, threadID string, req model.MessageRequest) (string, error) {
	msgReq := openai.MessageRequest{
		Role:    string(req.Role),
		Content: req.Content,
	}

	for _, a := range req.Attachments {
		att := openai.ThreadAttachment{FileID: a.FileID}
		for _, t := range a.Tools {
			att.Tools = append(att.Tools, openai.ThreadAttachmentTool{Type: string(t)})
		}
		msgReq.Attachments = append(msgReq.Attachments, att)
	}

	msg, err := c.client.CreateMessage(ctx, threadID, msgReq)
	if err != nil {
		return "", c.fail("create_message", err)
	}
	return msg.ID, nil
}

// CreateRun starts a run of agentID on threadID.
func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, agentID string) (string, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: agentID,
	})
	if err != nil {
		return "", c.fail("create_run", err)
	}
	return run.ID, nil
}

// GetRun retrieves a run.
func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (*model.RunSnapshot, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, c.fail("get_run", err)
	}
	return toSnapshot(run), nil
}

// ListMessages pages through a thread's messages.
func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string, opts ListMessagesOptions) ([]model.Message, error) {
	order := string(opts.Order)
	if order == "" {
		order = string(OrderNewestFirst)
	}

	limit := listPageSize
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}

	var runID *string
	if opts.RunID != "" {
		runID = &opts.RunID
	}

	var after *string
	var messages []model.Message

	for {
		page, err := c.client.ListMessage(ctx, threadID, &limit, &order, after, nil, runID)
		if err != nil {
			return nil, c.fail("list_messages", err)
		}

		for _, m := range page.Messages {
			messages = append(messages, toMessage(m))
			if opts.Limit > 0 && len(messages) >= opts.Limit {
				return messages, nil
			}
		}

		if !page.HasMore || page.LastID == nil {
			break
		}
		after = page.LastID
	}

	return messages, nil
}

func (c *OpenAIClient) fail(op string, err error) error {
	metrics.TransportErrorsTotal.WithLabelValues(op).Inc()
	return wrapError(op, err)
}

func toAgent(a openai.Assistant) model.Agent {
	agent := model.Agent{
		ID:    a.ID,
		Model: a.Model,
	}
	if a.Name != nil {
		agent.Name = *a.Name
	}
	return agent
}

func toSnapshot(run openai.Run) *model.RunSnapshot {
	snap := &model.RunSnapshot{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		AgentID:  run.AssistantID,
		State:    model.RunState(run.Status),
		Usage: &model.Usage{
			PromptTokens:     run.Usage.PromptTokens,
			CompletionTokens: run.Usage.CompletionTokens,
			TotalTokens:      run.Usage.TotalTokens,
		},
	}

	if run.LastError != nil {
		snap.LastError = &model.RemoteError{
			Code:    string(run.LastError.Code),
			Message: run.LastError.Message,
		}
	}

	return snap
}

func toMessage(m openai.Message) model.Message {
	msg := model.Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      model.Role(m.Role),
		CreatedAt: int64(m.CreatedAt),
	}
	if m.RunID != nil {
		msg.RunID = *m.RunID
	}

	for _, content := range m.Content {
		msg.Blocks = append(msg.Blocks, toBlock(content))
	}

	return msg
}

func toBlock(content openai.MessageContent) model.ContentBlock {
	switch {
	case content.Type == string(model.BlockKindText) && content.Text != nil:
		return model.TextBlock(content.Text.Value, toCitations(content.Text.Annotations)...)
	case content.Type == string(model.BlockKindImage) && content.ImageFile != nil:
		return model.ImageBlock(content.ImageFile.FileID)
	default:
		return model.ContentBlock{Kind: model.BlockKind(content.Type)}
	}
}

// toCitations reads annotations, which the SDK leaves as decoded JSON objects.
func toCitations(annotations []any) []model.Citation {
	var citations []model.Citation
	for _, raw := range annotations {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		citation := model.Citation{}
		citation.Type, _ = obj["type"].(string)
		citation.Text, _ = obj["text"].(string)
		if ref, ok := obj[citation.Type].(map[string]any); ok {
			citation.FileID, _ = ref["file_id"].(string)
		}

		if citation.Text != "" {
			citations = append(citations, citation)
		}
	}
	return citations
}
