package bedrock

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// fakeReader replays events on a channel, then reports err.
type fakeReader struct {
	events chan types.ConverseStreamOutput
	err    error

	mu     sync.Mutex
	closed bool
}

func newFakeReader(err error, events ...types.ConverseStreamOutput) *fakeReader {
	ch := make(chan types.ConverseStreamOutput, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeReader{events: ch, err: err}
}

func (r *fakeReader) Events() <-chan types.ConverseStreamOutput {
	return r.events
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) Err() error {
	return r.err
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// fakeClient records requests and returns scripted results.
type fakeClient struct {
	reader    eventReader
	openErr   error
	outputs   []*bedrockruntime.ConverseOutput
	errs      []error
	calls     int
	lastInput *bedrockruntime.ConverseInput
	lastOpen  *bedrockruntime.ConverseStreamInput
}

func (c *fakeClient) Converse(_ context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
	c.lastInput = in
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	return c.outputs[len(c.outputs)-1], nil
}

func (c *fakeClient) OpenStream(_ context.Context, in *bedrockruntime.ConverseStreamInput) (eventReader, error) {
	c.lastOpen = in
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.reader, nil
}
