package llmprovider

import (
	"encoding/json"
	"fmt"
)

// RequestParams represents the sampling parameters shared by the providers.
// All fields are optional pointers to distinguish "not set" from "set to zero value".
type RequestParams struct {
	// MaxTokens sets the maximum number of tokens to generate
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0)
	// 0.0 = deterministic, 1.0 = maximum randomness
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty"`

	// TopK limits sampling to top K tokens (Anthropic only)
	TopK *int `json:"top_k,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop,omitempty"`

	// ToolChoice controls whether/which tools to use
	ToolChoice *ToolChoice `json:"-"`
}

// ValidateRequestParams validates request parameters.
// Errors are *ValidationError values wrapping ErrInvalidRequest.
func ValidateRequestParams(params *RequestParams) error {
	if params == nil {
		return nil // nil params is valid
	}

	// Validate ranges
	if params.Temperature != nil {
		if *params.Temperature < 0.0 || *params.Temperature > 1.0 {
			return invalidParam("temperature", *params.Temperature, "must be between 0.0 and 1.0")
		}
	}

	if params.TopP != nil {
		if *params.TopP < 0.0 || *params.TopP > 1.0 {
			return invalidParam("top_p", *params.TopP, "must be between 0.0 and 1.0")
		}
	}

	if params.TopK != nil {
		if *params.TopK < 0 {
			return invalidParam("top_k", *params.TopK, "must be non-negative")
		}
	}

	if params.MaxTokens != nil {
		if *params.MaxTokens < 1 {
			return invalidParam("max_tokens", *params.MaxTokens, "must be positive")
		}
	}

	if len(params.Stop) > 4 {
		return invalidParam("stop", len(params.Stop), "at most 4 stop sequences are allowed")
	}

	if params.ToolChoice != nil {
		if err := params.ToolChoice.Validate(); err != nil {
			return invalidParam("tool_choice", params.ToolChoice.Mode, err.Error())
		}
	}

	return nil
}

func invalidParam(field string, value any, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
		Err:    ErrInvalidRequest,
	}
}

// GetRequestParamStruct unmarshals a generic map (e.g. from YAML or JSON config)
// into a typed RequestParams struct
func GetRequestParamStruct(params map[string]interface{}) (*RequestParams, error) {
	if params == nil {
		return &RequestParams{}, nil
	}

	jsonBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var rp RequestParams
	if err := json.Unmarshal(jsonBytes, &rp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return &rp, nil
}

// GetMaxTokens returns max_tokens with default fallback
func (rp *RequestParams) GetMaxTokens(defaultValue int) int {
	if rp != nil && rp.MaxTokens != nil {
		return *rp.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns temperature with default fallback
func (rp *RequestParams) GetTemperature(defaultValue float64) float64 {
	if rp != nil && rp.Temperature != nil {
		return *rp.Temperature
	}
	return defaultValue
}
