package bedrock

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cronus42/goose"
)

// converseRequest holds the converted parts shared by Converse and ConverseStream.
type converseRequest struct {
	model      string
	system     []types.SystemContentBlock
	messages   []types.Message
	inference  *types.InferenceConfiguration
	toolConfig *types.ToolConfiguration
	additional document.Interface
}

func (r converseRequest) streamInput() *bedrockruntime.ConverseStreamInput {
	return &bedrockruntime.ConverseStreamInput{
		ModelId:                      aws.String(r.model),
		System:                       r.system,
		Messages:                     r.messages,
		InferenceConfig:              r.inference,
		ToolConfig:                   r.toolConfig,
		AdditionalModelRequestFields: r.additional,
	}
}

func (r converseRequest) input() *bedrockruntime.ConverseInput {
	return &bedrockruntime.ConverseInput{
		ModelId:                      aws.String(r.model),
		System:                       r.system,
		Messages:                     r.messages,
		InferenceConfig:              r.inference,
		ToolConfig:                   r.toolConfig,
		AdditionalModelRequestFields: r.additional,
	}
}

// buildRequest converts a GenerateRequest into Bedrock request parts.
func buildRequest(model string, req *llmprovider.GenerateRequest) (converseRequest, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return converseRequest{}, fmt.Errorf("failed to convert messages: %w", err)
	}
	if len(messages) == 0 {
		return converseRequest{}, &llmprovider.ValidationError{
			Field:  "messages",
			Value:  len(req.Messages),
			Reason: "no message has content to send",
			Err:    llmprovider.ErrInvalidRequest,
		}
	}

	out := converseRequest{
		model:    model,
		messages: messages,
	}

	// Empty system prompts are rejected by the API
	if req.System != "" {
		out.system = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	if req.Params != nil {
		out.inference = convertInferenceConfig(req.Params)
		if req.Params.TopK != nil {
			// Claude on Bedrock takes top_k as a model-specific field
			out.additional = document.NewLazyDocument(map[string]any{"top_k": *req.Params.TopK})
		}
	}

	if len(req.Tools) > 0 {
		var choice *llmprovider.ToolChoice
		if req.Params != nil {
			choice = req.Params.ToolChoice
		}
		toolConfig, err := convertTools(req.Tools, choice)
		if err != nil {
			return converseRequest{}, err
		}
		out.toolConfig = toolConfig
	}

	return out, nil
}

func convertInferenceConfig(params *llmprovider.RequestParams) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{}
	set := false

	if params.MaxTokens != nil {
		cfg.MaxTokens = aws.Int32(int32(*params.MaxTokens))
		set = true
	}
	if params.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*params.Temperature))
		set = true
	}
	if params.TopP != nil {
		cfg.TopP = aws.Float32(float32(*params.TopP))
		set = true
	}
	if len(params.Stop) > 0 {
		cfg.StopSequences = params.Stop
		set = true
	}

	if !set {
		return nil
	}
	return cfg
}

// convertMessages converts library messages to Bedrock messages.
// Messages left without content are dropped.
func convertMessages(messages []llmprovider.Message) ([]types.Message, error) {
	prepared := llmprovider.PrepareMessages(messages)
	result := make([]types.Message, 0, len(prepared))

	for i, msg := range prepared {
		role, err := convertRole(msg.Role)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		content := make([]types.ContentBlock, 0, len(msg.Blocks))
		for _, block := range msg.Blocks {
			cb, err := convertBlock(block)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			content = append(content, cb)
		}

		result = append(result, types.Message{Role: role, Content: content})
	}

	return result, nil
}

func convertRole(role llmprovider.Role) (types.ConversationRole, error) {
	switch role {
	case llmprovider.RoleUser:
		return types.ConversationRoleUser, nil
	case llmprovider.RoleAssistant:
		return types.ConversationRoleAssistant, nil
	default:
		return "", fmt.Errorf("unsupported role: %s", role)
	}
}

func convertBlock(block *llmprovider.Block) (types.ContentBlock, error) {
	switch block.BlockType {
	case llmprovider.BlockTypeText:
		return &types.ContentBlockMemberText{Value: block.Text()}, nil

	case llmprovider.BlockTypeToolUse:
		if block.ToolRequest == nil {
			return nil, fmt.Errorf("tool_use block without a tool request")
		}
		return &types.ContentBlockMemberToolUse{
			Value: types.ToolUseBlock{
				ToolUseId: aws.String(block.ToolRequest.ID),
				Name:      aws.String(llmprovider.ToolName(block.ToolRequest)),
				Input:     document.NewLazyDocument(llmprovider.ToolInput(block.ToolRequest)),
			},
		}, nil

	case llmprovider.BlockTypeToolResult:
		if block.ToolResult == nil {
			return nil, fmt.Errorf("tool_result block without a result")
		}
		result := types.ToolResultBlock{
			ToolUseId: aws.String(block.ToolResult.ToolUseID),
			Content: []types.ToolResultContentBlock{
				&types.ToolResultContentBlockMemberText{Value: block.ToolResult.Content},
			},
			Status: types.ToolResultStatusSuccess,
		}
		if block.ToolResult.IsError {
			result.Status = types.ToolResultStatusError
		}
		return &types.ContentBlockMemberToolResult{Value: result}, nil

	default:
		return nil, fmt.Errorf("unsupported block type: %s", block.BlockType)
	}
}

// convertTools converts function tools to a Bedrock tool configuration.
func convertTools(tools []llmprovider.Tool, choice *llmprovider.ToolChoice) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for i := range tools {
		tool := &tools[i]
		if err := tool.Validate(); err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Function.Name),
				Description: aws.String(tool.Function.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(tool.Function.Parameters),
				},
			},
		})
	}

	cfg := &types.ToolConfiguration{Tools: specs}
	if choice != nil {
		switch choice.Mode {
		case llmprovider.ToolChoiceModeAuto:
			cfg.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
		case llmprovider.ToolChoiceModeRequired:
			cfg.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
		case llmprovider.ToolChoiceModeSpecific:
			cfg.ToolChoice = &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: choice.ToolName},
			}
		}
	}
	return cfg, nil
}

// convertOutput folds a non-streamed Converse response through an accumulator
// so Complete and Stream assemble messages the same way.
func convertOutput(out *bedrockruntime.ConverseOutput) (*llmprovider.Message, error) {
	member, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("no output message from bedrock (got %T)", out.Output)
	}

	acc := llmprovider.NewAccumulator()
	acc.Apply(llmprovider.MessageStartEvent{Role: llmprovider.Role(member.Value.Role)})

	for i, block := range member.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			acc.Apply(llmprovider.ContentBlockStartEvent{Index: i, Kind: llmprovider.BlockKindText})
			acc.Apply(llmprovider.ContentBlockDeltaEvent{Index: i, Delta: llmprovider.TextDelta{Text: b.Value}})

		case *types.ContentBlockMemberToolUse:
			acc.Apply(llmprovider.ContentBlockStartEvent{
				Index:    i,
				Kind:     llmprovider.BlockKindToolUse,
				ToolID:   aws.ToString(b.Value.ToolUseId),
				ToolName: aws.ToString(b.Value.Name),
			})
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, fmt.Errorf("failed to read tool input: %w", err)
				}
				acc.Apply(llmprovider.ContentBlockDeltaEvent{Index: i, Delta: llmprovider.ToolUseDelta{PartialJSON: string(raw)}})
			}
		}
		acc.Apply(llmprovider.ContentBlockStopEvent{Index: i})
	}

	return acc.Apply(llmprovider.MessageStopEvent{StopReason: convertStopReason(out.StopReason)}), nil
}
