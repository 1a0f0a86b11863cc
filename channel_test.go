package llmprovider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputChannel_Capacity(t *testing.T) {
	c := newOutputChannel(0)
	assert.Equal(t, 1, cap(c.items), "capacity is at least one")

	assert.True(t, c.trySend(streamResult{}))
	assert.False(t, c.trySend(streamResult{}), "trySend never blocks on a full buffer")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, c.send(ctx, streamResult{}), "send gives up once ctx is done")
}

func TestOutputChannel_ClosedRejectsSends(t *testing.T) {
	c := newOutputChannel(4)
	c.close()
	c.close()

	assert.True(t, c.isClosed())
	assert.False(t, c.send(context.Background(), streamResult{}), "closure wins over free capacity")
	assert.False(t, c.trySend(streamResult{}))
	assert.Empty(t, c.items)
}

func newTestStream(capacity int) *MessageStream {
	return &MessageStream{
		id:     "test",
		out:    newOutputChannel(capacity),
		exited: make(chan struct{}),
	}
}

func TestMessageStream_EndMarkerOnce(t *testing.T) {
	s := newTestStream(4)
	msg := NewUserMessage("hi")
	require.True(t, s.out.trySend(streamResult{item: StreamItem{Message: &msg}}))
	require.True(t, s.out.trySend(streamResult{}))
	s.out.finish(nil)

	item, err := s.Recv()
	require.NoError(t, err)
	assert.False(t, item.IsEnd())

	item, err = s.Recv()
	require.NoError(t, err)
	assert.True(t, item.IsEnd())

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestMessageStream_AbortError(t *testing.T) {
	s := newTestStream(1)
	abort := errors.New("undelivered")
	s.out.finish(abort)

	_, err := s.Recv()
	assert.Equal(t, abort, err)

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestMessageStream_AllSkipsEndMarker(t *testing.T) {
	s := newTestStream(4)
	usage := &ProviderUsage{Model: "m", Usage: NewUsage(intPtr(1), intPtr(1))}
	s.out.trySend(streamResult{item: StreamItem{Usage: usage}})
	s.out.trySend(streamResult{})
	s.out.finish(nil)

	var items []StreamItem
	for item, err := range s.All() {
		require.NoError(t, err)
		items = append(items, item)
	}
	require.Len(t, items, 1)
	assert.Equal(t, usage, items[0].Usage)
	assert.True(t, s.out.isClosed(), "All closes the stream when done")
}

func TestMessageStream_AllYieldsError(t *testing.T) {
	s := newTestStream(4)
	failure := MapFailure("test", Failure{Code: FailureAccessDenied, Message: "expired token"})
	s.out.trySend(streamResult{err: failure})
	s.out.finish(nil)

	var errs []error
	for _, err := range s.All() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.True(t, IsAuthError(errs[0]))
}

type recordingObserver struct {
	items []StreamItem
	ends  []error
}

func (o *recordingObserver) OnItem(item StreamItem) { o.items = append(o.items, item) }
func (o *recordingObserver) OnEnd(err error)        { o.ends = append(o.ends, err) }

func TestMessageStream_ObserverSeesItemsAndEnd(t *testing.T) {
	s := newTestStream(4)
	obs := &recordingObserver{}
	s.Observe(obs)

	msg := NewUserMessage("hi")
	s.out.trySend(streamResult{item: StreamItem{Message: &msg}})
	s.out.trySend(streamResult{})
	s.out.finish(nil)

	_, _, err := s.Collect()
	require.NoError(t, err)

	require.Len(t, obs.items, 2)
	assert.Equal(t, &msg, obs.items[0].Message)
	assert.True(t, obs.items[1].IsEnd())
	assert.Equal(t, []error{nil}, obs.ends, "end is reported once, close after end is silent")
}

func TestMessageStream_ObserverSeesError(t *testing.T) {
	s := newTestStream(4)
	obs := &recordingObserver{}
	s.Observe(obs)

	failure := MapFailure("test", Failure{Code: FailureThrottling})
	s.out.trySend(streamResult{err: failure})
	s.out.finish(nil)

	_, _, err := s.Collect()
	require.Error(t, err)
	require.Len(t, obs.ends, 1)
	assert.ErrorIs(t, obs.ends[0], ErrRateLimited)
}

func TestMessageStream_ObserverSeesClose(t *testing.T) {
	s := newTestStream(4)
	obs := &recordingObserver{}
	s.Observe(obs)

	msg := NewUserMessage("hi")
	s.out.trySend(streamResult{item: StreamItem{Message: &msg}})

	for range s.All() {
		break
	}

	require.Len(t, obs.items, 1)
	assert.Equal(t, []error{ErrStreamClosed}, obs.ends)
}
