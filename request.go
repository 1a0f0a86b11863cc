package llmprovider

// GenerateRequest contains the parameters for an LLM generation request.
type GenerateRequest struct {
	// Model is the model identifier (e.g., "us.anthropic.claude-sonnet-4-5-20250929-v1:0").
	// Empty means the provider's default model.
	Model string

	// System is the system prompt. Empty prompts are not sent.
	System string

	// Messages contains the conversation history.
	// Each message has a Role (user/assistant) and Blocks.
	Messages []Message

	// Tools lists the functions the model may call
	Tools []Tool

	// Params contains the sampling parameters (temperature, max_tokens, ...)
	// Provider adapters extract what they support from this unified struct.
	Params *RequestParams
}

// ModelOrDefault returns the request model, falling back to def.
func (r *GenerateRequest) ModelOrDefault(def string) string {
	if r.Model == "" {
		return def
	}
	return r.Model
}
