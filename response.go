package llmprovider

// StopReason indicates why generation stopped.
// Values not listed below are passed through verbatim from the provider.
type StopReason string

// Known stop reasons
const (
	StopReasonEndTurn         StopReason = "end_turn"
	StopReasonToolUse         StopReason = "tool_use"
	StopReasonMaxTokens       StopReason = "max_tokens"
	StopReasonStopSequence    StopReason = "stop_sequence"
	StopReasonContentFiltered StopReason = "content_filtered"

	// StopReasonIncomplete marks a final message synthesized after the
	// stream ended without a message stop. It never signals success.
	StopReasonIncomplete StopReason = "incomplete"
)

// Usage contains token counts reported by the provider.
// Nil fields were not reported, which is distinct from zero.
type Usage struct {
	// InputTokens is the number of tokens in the input
	InputTokens *int `json:"input_tokens,omitempty"`

	// OutputTokens is the number of tokens in the output
	OutputTokens *int `json:"output_tokens,omitempty"`

	// TotalTokens is the provider-reported total, or the sum of input and output
	TotalTokens *int `json:"total_tokens,omitempty"`

	// CacheReadTokens is the number of input tokens served from the prompt cache
	CacheReadTokens *int `json:"cache_read_tokens,omitempty"`

	// CacheWriteTokens is the number of input tokens written to the prompt cache
	CacheWriteTokens *int `json:"cache_write_tokens,omitempty"`
}

// NewUsage builds a Usage from input/output counts, deriving the total.
func NewUsage(input, output *int) Usage {
	u := Usage{InputTokens: input, OutputTokens: output}
	if input != nil && output != nil {
		total := *input + *output
		u.TotalTokens = &total
	}
	return u
}

// Input returns the input token count, or 0 when not reported.
func (u Usage) Input() int {
	if u.InputTokens == nil {
		return 0
	}
	return *u.InputTokens
}

// Output returns the output token count, or 0 when not reported.
func (u Usage) Output() int {
	if u.OutputTokens == nil {
		return 0
	}
	return *u.OutputTokens
}

// ProviderUsage pairs token usage with the model that produced it.
// It is reported once per response, after the final message.
type ProviderUsage struct {
	// Model is the model that was used (may differ from request if aliased)
	Model string

	// Usage is the token accounting for the response
	Usage Usage
}
