package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCapability names a tool a file can be bound to.
type ToolCapability string

const (
	ToolCodeInterpreter ToolCapability = "code_interpreter"
	ToolFileSearch      ToolCapability = "file_search"
)

// BlockKind tags the variant held by a ContentBlock.
type BlockKind string

const (
	BlockKindText  BlockKind = "text"
	BlockKindImage BlockKind = "image_file"
)

// ContentBlock is one element of a message body. Exactly one of Text or
// Image is set for the known kinds; any other Kind is an unsupported block.
type ContentBlock struct {
	Kind  BlockKind     `json:"kind"`
	Text  *TextContent  `json:"text,omitempty"`
	Image *ImageContent `json:"image,omitempty"`
}

// TextContent is a text block with its inline citation markers.
type TextContent struct {
	Value     string     `json:"value"`
	Citations []Citation `json:"citations,omitempty"`
}

// Citation is an inline marker inside a text block referencing a file.
type Citation struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	FileID string `json:"file_id,omitempty"`
}

// ImageContent references an image generated by the agent.
type ImageContent struct {
	FileID string `json:"file_id"`
}

// TextBlock builds a text content block.
func TextBlock(value string, citations ...Citation) ContentBlock {
	return ContentBlock{Kind: BlockKindText, Text: &TextContent{Value: value, Citations: citations}}
}

// ImageBlock builds an image content block.
func ImageBlock(fileID string) ContentBlock {
	return ContentBlock{Kind: BlockKindImage, Image: &ImageContent{FileID: fileID}}
}

// Attachment binds an uploaded file to the tools allowed to use it.
type Attachment struct {
	FileID string           `json:"file_id"`
	Tools  []ToolCapability `json:"tools"`
}

// Message is one immutable turn in a thread.
type Message struct {
	ID          string         `json:"id"`
	ThreadID    string         `json:"thread_id"`
	RunID       string         `json:"run_id,omitempty"`
	Role        Role           `json:"role"`
	Blocks      []ContentBlock `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	CreatedAt   int64          `json:"created_at"`
}

// MessageRequest is the payload for creating a message in a thread.
type MessageRequest struct {
	Role        Role
	Content     string
	Attachments []Attachment
}

// Agent is a configured executor on the remote service.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// AgentSpec describes the agent to create when none exists under Name.
type AgentSpec struct {
	Name         string           `json:"name" yaml:"name"`
	Model        string           `json:"model" yaml:"model"`
	Instructions string           `json:"instructions" yaml:"instructions"`
	Tools        []ToolCapability `json:"tools" yaml:"tools"`
}
