package llmprovider

import (
	"context"
)

// Provider defines the interface that all LLM providers must implement.
// This abstraction keeps the streaming pipeline independent of the transport
// (Bedrock ConverseStream, the Anthropic Messages API, or the lorem mock).
//
// Types used by this interface:
//   - GenerateRequest: defined in request.go
//   - Message: defined in types.go
//   - ProviderUsage: defined in response.go
//   - MessageStream: defined in channel.go
type Provider interface {
	// Complete generates a complete response (blocking).
	// Used for non-streaming scenarios or as fallback.
	Complete(ctx context.Context, req *GenerateRequest) (*Message, *ProviderUsage, error)

	// Stream starts a streamed response (non-blocking).
	// The returned stream yields text snapshots, then the final message, then
	// the usage report. Errors that occur before the first wire event are
	// returned directly; later ones terminate the stream.
	//
	// Usage:
	//   stream, err := provider.Stream(ctx, req)
	//   if err != nil { return err }
	//   for item, err := range stream.All() {
	//     if err != nil { handle error }
	//     if item.Message != nil { render }
	//     if item.Usage != nil { streaming complete }
	//   }
	Stream(ctx context.Context, req *GenerateRequest) (*MessageStream, error)

	// Name returns the provider identifier (e.g., "aws_bedrock", "anthropic", "lorem")
	Name() ProviderID

	// SupportsModel returns true if the provider supports the given model.
	SupportsModel(model string) bool
}
