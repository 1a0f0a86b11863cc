package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cronus42/goose"
)

// DefaultMaxTokens is sent when a request sets no max_tokens; the Messages API requires one.
const DefaultMaxTokens = 4096

// buildMessageParams constructs Anthropic API parameters from a GenerateRequest.
// It is shared by Complete and Stream.
func buildMessageParams(model string, req *llmprovider.GenerateRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, &llmprovider.ValidationError{
			Field:  "messages",
			Value:  len(req.Messages),
			Reason: "no message with content",
			Err:    llmprovider.ErrInvalidRequest,
		}
	}

	params := req.Params
	if params == nil {
		params = &llmprovider.RequestParams{}
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(params.GetMaxTokens(DefaultMaxTokens)),
	}

	if params.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*params.Temperature)
	}
	if params.TopP != nil {
		apiParams.TopP = anthropic.Float(*params.TopP)
	}
	if params.TopK != nil {
		apiParams.TopK = anthropic.Int(int64(*params.TopK))
	}
	if len(params.Stop) > 0 {
		apiParams.StopSequences = params.Stop
	}

	if req.System != "" {
		apiParams.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		apiParams.Tools = tools

		choice, err := convertToolChoice(params.ToolChoice)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		if choice != nil {
			apiParams.ToolChoice = *choice
		}
	}

	return apiParams, nil
}
