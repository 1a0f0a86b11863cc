package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cronus42/goose"
)

// convertTools converts library tools to Anthropic custom tool definitions.
func convertTools(tools []llmprovider.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i := range tools {
		if err := tools[i].Validate(); err != nil {
			return nil, fmt.Errorf("tool %d (%s): %w", i, tools[i].Function.Name, err)
		}
		result = append(result, convertCustomTool(&tools[i]))
	}
	return result, nil
}

// convertCustomTool converts a function tool to Anthropic's input_schema format.
//
// The library schema is a full JSON schema ({"type": "object", "properties": ..., "required": [...]}).
// Anthropic takes properties and required as fields and everything else as extra fields.
func convertCustomTool(tool *llmprovider.Tool) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties:  tool.Function.Parameters["properties"],
		ExtraFields: make(map[string]any),
	}

	switch required := tool.Function.Parameters["required"].(type) {
	case []string:
		schema.Required = required
	case []any:
		schema.Required = make([]string, 0, len(required))
		for _, v := range required {
			if str, ok := v.(string); ok {
				schema.Required = append(schema.Required, str)
			}
		}
	}

	for key, value := range tool.Function.Parameters {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
	if tool.Function.Description != "" && toolParam.OfTool != nil {
		toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
	}
	return toolParam
}

// convertToolChoice converts a library ToolChoice to Anthropic format.
// Returns nil if no tool choice is specified (the model decides).
func convertToolChoice(choice *llmprovider.ToolChoice) (*anthropic.ToolChoiceUnionParam, error) {
	if choice == nil {
		return nil, nil
	}

	if err := choice.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool choice: %w", err)
	}

	switch choice.Mode {
	case llmprovider.ToolChoiceModeAuto:
		return &anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}, nil

	case llmprovider.ToolChoiceModeRequired:
		// Anthropic calls this "any"
		return &anthropic.ToolChoiceUnionParam{
			OfAny: &anthropic.ToolChoiceAnyParam{},
		}, nil

	case llmprovider.ToolChoiceModeSpecific:
		unionParam := anthropic.ToolChoiceParamOfTool(*choice.ToolName)
		return &unionParam, nil

	default:
		return nil, fmt.Errorf("unsupported tool choice mode: %s", choice.Mode)
	}
}
