package llmprovider

import (
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Conversation roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block type constants
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result" // Result sent back from a client-executed tool call
)

// Block is one content item of a message.
//
// User blocks: text, tool_result
// Assistant blocks: text, tool_use
//
// Exactly one payload field is set, matching BlockType:
// - text: TextContent
// - tool_use: ToolRequest (which itself is either a parsed call or a parse failure)
// - tool_result: ToolResult
type Block struct {
	// BlockType indicates the type of block
	// Values: "text", "tool_use", "tool_result"
	BlockType string `json:"block_type"`

	// Sequence is the content-block index the block was assembled from.
	// Blocks in a message are ordered by ascending Sequence within their kind.
	Sequence int `json:"sequence"`

	// TextContent contains the text for text blocks
	TextContent *string `json:"text_content,omitempty"`

	// ToolRequest contains the tool invocation for tool_use blocks
	ToolRequest *ToolRequest `json:"tool_request,omitempty"`

	// ToolResult contains the client's answer to an earlier tool_use block
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolRequest is a tool invocation requested by the model.
// Exactly one of Call or Err is set: a malformed invocation is kept as Err
// rather than dropped, so callers can report it back to the model.
type ToolRequest struct {
	// ID is the provider-assigned tool invocation id (e.g. "tooluse_...")
	ID string `json:"id"`

	// Call is the successfully parsed invocation
	Call *ToolCall `json:"call,omitempty"`

	// Err describes why the invocation's arguments could not be parsed
	Err *ToolCallError `json:"error,omitempty"`
}

// ToolCall is a parsed tool invocation.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallError records a tool invocation whose streamed arguments did not
// form a JSON object.
type ToolCallError struct {
	Name     string `json:"name"`
	RawInput string `json:"raw_input"`
	Cause    error  `json:"-"`
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("invalid arguments for tool '%s': %v", e.Name, e.Cause)
}

func (e *ToolCallError) Unwrap() error {
	return e.Cause
}

// ToolResult is the output of a client-executed tool.
type ToolResult struct {
	// ToolUseID references the ToolRequest.ID this result answers
	ToolUseID string `json:"tool_use_id"`

	// Content is the textual tool output
	Content string `json:"content"`

	// IsError marks the output as an error report
	IsError bool `json:"is_error,omitempty"`
}

// NewTextBlock creates a text block at the given content index.
func NewTextBlock(sequence int, text string) *Block {
	return &Block{
		BlockType:   BlockTypeText,
		Sequence:    sequence,
		TextContent: &text,
	}
}

// NewToolRequestBlock creates a tool_use block holding a parsed invocation.
func NewToolRequestBlock(sequence int, id, name string, args map[string]any) *Block {
	if args == nil {
		args = map[string]any{}
	}
	return &Block{
		BlockType: BlockTypeToolUse,
		Sequence:  sequence,
		ToolRequest: &ToolRequest{
			ID:   id,
			Call: &ToolCall{Name: name, Arguments: args},
		},
	}
}

// NewToolRequestErrorBlock creates a tool_use block holding a failed invocation.
func NewToolRequestErrorBlock(sequence int, id, name, rawInput string, cause error) *Block {
	return &Block{
		BlockType: BlockTypeToolUse,
		Sequence:  sequence,
		ToolRequest: &ToolRequest{
			ID:  id,
			Err: &ToolCallError{Name: name, RawInput: rawInput, Cause: cause},
		},
	}
}

// NewToolResultBlock creates a tool_result block for a user message.
func NewToolResultBlock(toolUseID, content string, isError bool) *Block {
	return &Block{
		BlockType: BlockTypeToolResult,
		ToolResult: &ToolResult{
			ToolUseID: toolUseID,
			Content:   content,
			IsError:   isError,
		},
	}
}

// IsToolUseBlock returns true if this is a tool_use block
func (b *Block) IsToolUseBlock() bool {
	return b.BlockType == BlockTypeToolUse && b.ToolRequest != nil
}

// IsToolResultBlock returns true if this is a tool_result block
func (b *Block) IsToolResultBlock() bool {
	return b.BlockType == BlockTypeToolResult && b.ToolResult != nil
}

// Text returns the block text, or "" for non-text blocks.
func (b *Block) Text() string {
	if b.BlockType != BlockTypeText || b.TextContent == nil {
		return ""
	}
	return *b.TextContent
}

// Message is a single turn of the conversation.
type Message struct {
	// Role is either "user" or "assistant"
	Role Role

	// Blocks is the list of content blocks for this message
	Blocks []*Block
}

// NewUserMessage creates a user message with a single text block.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Blocks: []*Block{NewTextBlock(0, text)}}
}

// Text concatenates all text blocks of the message in order.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Blocks {
		sb.WriteString(b.Text())
	}
	return sb.String()
}

// ToolRequests returns the tool invocations of the message in order,
// including failed ones.
func (m *Message) ToolRequests() []*ToolRequest {
	var out []*ToolRequest
	for _, b := range m.Blocks {
		if b.IsToolUseBlock() {
			out = append(out, b.ToolRequest)
		}
	}
	return out
}

// HasToolRequests returns true if the message asks for at least one tool call.
func (m *Message) HasToolRequests() bool {
	for _, b := range m.Blocks {
		if b.IsToolUseBlock() {
			return true
		}
	}
	return false
}
