package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cronus42/goose"
)

// convertMessages converts library messages to Anthropic message params.
// History is normalized first: empty text is dropped and same-role turns are merged.
func convertMessages(messages []llmprovider.Message) ([]anthropic.MessageParam, error) {
	prepared := llmprovider.PrepareMessages(messages)
	result := make([]anthropic.MessageParam, 0, len(prepared))

	for i, msg := range prepared {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
		for j, block := range msg.Blocks {
			converted, err := convertBlock(block)
			if err != nil {
				return nil, fmt.Errorf("message %d block %d: %w", i, j, err)
			}
			blocks = append(blocks, converted)
		}

		switch msg.Role {
		case llmprovider.RoleUser:
			result = append(result, anthropic.NewUserMessage(blocks...))
		case llmprovider.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}

	return result, nil
}

func convertBlock(block *llmprovider.Block) (anthropic.ContentBlockParamUnion, error) {
	switch block.BlockType {
	case llmprovider.BlockTypeText:
		return anthropic.NewTextBlock(block.Text()), nil

	case llmprovider.BlockTypeToolUse:
		if block.ToolRequest == nil || block.ToolRequest.ID == "" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool_use block missing tool use id")
		}
		req := block.ToolRequest
		return anthropic.NewToolUseBlock(req.ID, llmprovider.ToolInput(req), llmprovider.ToolName(req)), nil

	case llmprovider.BlockTypeToolResult:
		if block.ToolResult == nil || block.ToolResult.ToolUseID == "" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool_result block missing tool use id")
		}
		res := block.ToolResult
		return anthropic.NewToolResultBlock(res.ToolUseID, res.Content, res.IsError), nil

	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported block type %q", block.BlockType)
	}
}

// convertResponse folds a non-streamed Messages response through an
// Accumulator, so Complete and Stream assemble messages identically.
func convertResponse(msg *anthropic.Message) (*llmprovider.Message, *llmprovider.Usage) {
	acc := llmprovider.NewAccumulator()
	acc.Apply(llmprovider.MessageStartEvent{Role: llmprovider.RoleAssistant})

	for i, content := range msg.Content {
		switch content.Type {
		case "text":
			acc.Apply(llmprovider.ContentBlockStartEvent{Index: i, Kind: llmprovider.BlockKindText})
			acc.Apply(llmprovider.ContentBlockDeltaEvent{Index: i, Delta: llmprovider.TextDelta{Text: content.Text}})
			acc.Apply(llmprovider.ContentBlockStopEvent{Index: i})
		case "tool_use":
			acc.Apply(llmprovider.ContentBlockStartEvent{
				Index:    i,
				Kind:     llmprovider.BlockKindToolUse,
				ToolID:   content.ID,
				ToolName: content.Name,
			})
			acc.Apply(llmprovider.ContentBlockDeltaEvent{Index: i, Delta: llmprovider.ToolUseDelta{PartialJSON: rawInput(content.Input)}})
			acc.Apply(llmprovider.ContentBlockStopEvent{Index: i})
		}
	}

	usage := convertUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens, msg.Usage.CacheReadInputTokens, msg.Usage.CacheCreationInputTokens)
	final := acc.Apply(llmprovider.MessageStopEvent{StopReason: convertStopReason(msg.StopReason)})
	return final, usage
}

func rawInput(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	return string(input)
}

// convertStopReason maps Anthropic stop reasons; a refusal counts as filtered content.
func convertStopReason(reason anthropic.StopReason) llmprovider.StopReason {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return llmprovider.StopReasonEndTurn
	case anthropic.StopReasonToolUse:
		return llmprovider.StopReasonToolUse
	case anthropic.StopReasonMaxTokens:
		return llmprovider.StopReasonMaxTokens
	case anthropic.StopReasonStopSequence:
		return llmprovider.StopReasonStopSequence
	case anthropic.StopReasonRefusal:
		return llmprovider.StopReasonContentFiltered
	default:
		return llmprovider.StopReason(reason)
	}
}

func convertUsage(input, output, cacheRead, cacheWrite int64) *llmprovider.Usage {
	in, out := int(input), int(output)
	u := llmprovider.NewUsage(&in, &out)
	if cacheRead > 0 {
		v := int(cacheRead)
		u.CacheReadTokens = &v
	}
	if cacheWrite > 0 {
		v := int(cacheWrite)
		u.CacheWriteTokens = &v
	}
	return &u
}
