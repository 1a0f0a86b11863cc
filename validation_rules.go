package llmprovider

import (
	"fmt"
)

// ModelValidationRule checks model-related warnings
type ModelValidationRule struct {
	registry *CapabilityRegistry
}

func (r *ModelValidationRule) Name() string {
	return "Model Validation"
}

func (r *ModelValidationRule) Check(provider string, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Model == "" {
		return warnings
	}

	// Check if model exists in capabilities (might be outdated)
	if !r.registry.SupportsModel(provider, req.Model) {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeModelUnknown,
			Category: "model",
			Field:    "model",
			Value:    req.Model,
			Message:  fmt.Sprintf("Model %s not found in %s capabilities (capabilities may be outdated)", req.Model, provider),
			Severity: SeverityInfo,
		})
	}

	return warnings
}

// ToolValidationRule checks tool-related warnings
type ToolValidationRule struct {
	registry *CapabilityRegistry
}

func (r *ToolValidationRule) Name() string {
	return "Tool Validation"
}

func (r *ToolValidationRule) Check(provider string, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if len(req.Tools) == 0 {
		return warnings
	}

	for i := range req.Tools {
		if err := req.Tools[i].Validate(); err != nil {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeToolInvalid,
				Category: "tool",
				Field:    "tools",
				Value:    req.Tools[i].Function.Name,
				Message:  fmt.Sprintf("Tool %d is invalid: %v", i, err),
				Severity: SeverityError,
			})
		}
	}

	modelCap, err := r.registry.GetModelCapability(provider, req.Model)
	if err != nil {
		// Can't check without capabilities
		return warnings
	}

	if !modelCap.Features.Tools {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeModelDoesNotSupportTools,
			Category: "tool",
			Field:    "tools",
			Value:    len(req.Tools),
			Message:  fmt.Sprintf("Model %s might not support tools", req.Model),
			Severity: SeverityWarning,
		})
	}

	return warnings
}

// OutputLimitRule checks max_tokens against the model's output limit
type OutputLimitRule struct {
	registry *CapabilityRegistry
}

func (r *OutputLimitRule) Name() string {
	return "Output Limit Validation"
}

func (r *OutputLimitRule) Check(provider string, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Params == nil || req.Params.MaxTokens == nil {
		return warnings
	}

	modelCap, err := r.registry.GetModelCapability(provider, req.Model)
	if err != nil || modelCap.MaxOutputTokens == 0 {
		return warnings
	}

	if *req.Params.MaxTokens > modelCap.MaxOutputTokens {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeMaxTokensAboveLimit,
			Category: "parameter",
			Field:    "max_tokens",
			Value:    *req.Params.MaxTokens,
			Message:  fmt.Sprintf("max_tokens %d exceeds the %d output tokens of %s", *req.Params.MaxTokens, modelCap.MaxOutputTokens, req.Model),
			Severity: SeverityWarning,
		})
	}

	return warnings
}

// ToolResultRule checks that every tool_result answers an earlier tool_use
type ToolResultRule struct{}

func (r *ToolResultRule) Name() string {
	return "Tool Result Validation"
}

func (r *ToolResultRule) Check(_ string, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	seen := make(map[string]bool)
	for _, msg := range req.Messages {
		for _, block := range msg.Blocks {
			switch {
			case block.IsToolUseBlock():
				seen[block.ToolRequest.ID] = true
			case block.IsToolResultBlock():
				if !seen[block.ToolResult.ToolUseID] {
					warnings = append(warnings, ValidationWarning{
						Code:     WarningCodeToolResultOrphaned,
						Category: "tool",
						Field:    "messages",
						Value:    block.ToolResult.ToolUseID,
						Message:  fmt.Sprintf("Tool result %s has no matching tool use", block.ToolResult.ToolUseID),
						Severity: SeverityError,
					})
				}
			}
		}
	}

	return warnings
}
