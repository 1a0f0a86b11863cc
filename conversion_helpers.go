package llmprovider

import (
	"fmt"
	"strings"
)

// PrepareMessages normalizes conversation history before it is converted to a
// provider wire format.
//
// This is provider-agnostic shared logic used by all adapters during message conversion.
//
// Strategy:
//  1. Drop text blocks with no text (both Bedrock and Anthropic reject them)
//  2. Drop messages left without blocks
//  3. Merge consecutive messages of the same role (both APIs require alternation)
func PrepareMessages(messages []Message) []Message {
	result := make([]Message, 0, len(messages))

	for _, msg := range messages {
		blocks := make([]*Block, 0, len(msg.Blocks))
		for _, block := range msg.Blocks {
			if block == nil {
				continue
			}
			if block.BlockType == BlockTypeText && strings.TrimSpace(block.Text()) == "" {
				continue
			}
			blocks = append(blocks, block)
		}

		if len(blocks) == 0 {
			continue
		}

		// Merge into the previous message when the role repeats
		if n := len(result); n > 0 && result[n-1].Role == msg.Role {
			merged := make([]*Block, 0, len(result[n-1].Blocks)+len(blocks))
			merged = append(merged, result[n-1].Blocks...)
			merged = append(merged, blocks...)
			result[n-1].Blocks = merged
			continue
		}

		result = append(result, Message{Role: msg.Role, Blocks: blocks})
	}

	return result
}

// ToolInput returns the argument object to replay for a tool_use block.
// Failed invocations replay as an empty object so the provider still sees the
// id that a tool_result refers to.
func ToolInput(req *ToolRequest) map[string]any {
	if req == nil || req.Call == nil || req.Call.Arguments == nil {
		return map[string]any{}
	}
	return req.Call.Arguments
}

// ToolName returns the tool name of a parsed or failed invocation.
func ToolName(req *ToolRequest) string {
	switch {
	case req == nil:
		return ""
	case req.Call != nil:
		return req.Call.Name
	case req.Err != nil:
		return req.Err.Name
	default:
		return ""
	}
}

// NewToolCallErrorResult builds the tool_result a client sends back for a
// failed invocation, so the model can correct its arguments.
func NewToolCallErrorResult(req *ToolRequest) *Block {
	reason := "invalid tool call"
	if req.Err != nil {
		reason = req.Err.Error()
	}
	return NewToolResultBlock(req.ID, fmt.Sprintf("Error: %s", reason), true)
}
