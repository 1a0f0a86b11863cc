package bedrock

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// eventReader is the read side of a ConverseStream event stream.
// *bedrockruntime.ConverseStreamEventStream satisfies it.
type eventReader interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

// converseClient is the subset of the Bedrock runtime API the provider uses.
type converseClient interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error)
	OpenStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (eventReader, error)
}

// sdkClient adapts *bedrockruntime.Client to converseClient.
type sdkClient struct {
	client *bedrockruntime.Client
}

func (c *sdkClient) Converse(ctx context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
	return c.client.Converse(ctx, in)
}

func (c *sdkClient) OpenStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (eventReader, error) {
	out, err := c.client.ConverseStream(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}
