package llmprovider

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed event list. After the list it returns err
// (io.EOF when nil), or blocks until ctx is done when hang is set. When
// endless is set it keeps producing text deltas forever.
type scriptedSource struct {
	mu      sync.Mutex
	events  []StreamEvent
	err     error
	hang    bool
	endless bool
	pos     int
	reads   int
	closed  bool
}

func (s *scriptedSource) Recv(ctx context.Context) (StreamEvent, error) {
	s.mu.Lock()
	s.reads++
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		s.mu.Unlock()
		return ev, nil
	}
	if s.endless {
		s.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return textDelta(0, "x"), nil
	}
	s.mu.Unlock()

	if s.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *scriptedSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func helloWorldEvents() []StreamEvent {
	usage := NewUsage(intPtr(10), intPtr(2))
	return []StreamEvent{
		MessageStartEvent{Role: RoleAssistant},
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(0, "Hello"),
		textDelta(0, " World"),
		ContentBlockStopEvent{Index: 0},
		MessageStopEvent{StopReason: StopReasonEndTurn},
		MetadataEvent{Usage: &usage},
	}
}

func startStream(t *testing.T, ctx context.Context, src EventSource, opts ...StreamOption) *MessageStream {
	t.Helper()
	opts = append([]StreamOption{WithLogger(zerolog.Nop()), WithProviderName("test")}, opts...)
	s := StreamEvents(ctx, "test-model", src, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func waitExited(t *testing.T, s *MessageStream) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not exit")
	}
}

func TestStreamEvents_ItemOrder(t *testing.T) {
	src := &scriptedSource{events: helloWorldEvents()}
	s := startStream(t, context.Background(), src)
	assert.NotEmpty(t, s.ID())

	var items []StreamItem
	for {
		item, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		items = append(items, item)
	}

	require.Len(t, items, 5)
	assert.Equal(t, "Hello", items[0].Message.Text())
	assert.Equal(t, "Hello World", items[1].Message.Text())
	assert.Equal(t, "Hello World", items[2].Message.Text())
	assert.Nil(t, items[2].Usage)

	require.NotNil(t, items[3].Usage)
	assert.Nil(t, items[3].Message)
	assert.Equal(t, "test-model", items[3].Usage.Model)
	assert.Equal(t, 12, *items[3].Usage.Usage.TotalTokens)

	assert.True(t, items[4].IsEnd())

	waitExited(t, s)
	assert.True(t, src.isClosed(), "source is closed when the producer exits")
}

func TestStreamEvents_WithoutUsage(t *testing.T) {
	events := helloWorldEvents()
	src := &scriptedSource{events: events[:len(events)-1]}
	s := startStream(t, context.Background(), src)

	msg, usage, err := s.Collect()
	require.NoError(t, err)
	assert.Nil(t, usage)
	require.NotNil(t, msg)
	assert.Equal(t, "Hello World", msg.Text())
}

func TestStreamEvents_Collect(t *testing.T) {
	s := startStream(t, context.Background(), &scriptedSource{events: helloWorldEvents()})

	msg, usage, err := s.Collect()
	require.NoError(t, err)
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, "Hello World", msg.Blocks[0].Text())
	require.NotNil(t, usage)
	assert.Equal(t, 10, usage.Usage.Input())

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err, "stream is not restartable")
}

func TestStreamEvents_Backpressure(t *testing.T) {
	events := []StreamEvent{MessageStartEvent{Role: RoleAssistant}}
	for i := 0; i < 20; i++ {
		events = append(events, textDelta(0, "t"))
	}
	events = append(events, MessageStopEvent{StopReason: StopReasonEndTurn})

	src := &scriptedSource{events: events}
	s := startStream(t, context.Background(), src, WithBufferSize(2))

	// MessageStart, two buffered snapshots, and the delta whose push is blocked
	require.Eventually(t, func() bool { return src.readCount() == 4 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, src.readCount(), "producer must suspend on a full buffer")

	var texts []string
	for item, err := range s.All() {
		require.NoError(t, err)
		if item.Message != nil {
			texts = append(texts, item.Message.Text())
		}
	}
	require.Len(t, texts, 21, "no snapshot is dropped")
	for i := 0; i < 20; i++ {
		assert.Len(t, texts[i], i+1)
	}
}

func TestStreamEvents_ConsumerClose(t *testing.T) {
	src := &scriptedSource{events: []StreamEvent{MessageStartEvent{Role: RoleAssistant}}, endless: true}
	s := startStream(t, context.Background(), src, WithBufferSize(1))

	item, err := s.Recv()
	require.NoError(t, err)
	require.NotNil(t, item.Message)

	require.NoError(t, s.Close())
	waitExited(t, s)

	reads := src.readCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, reads, src.readCount(), "no reads after the producer exits")
	assert.True(t, src.isClosed())

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err, "closing is not an error")
	assert.NoError(t, s.Close(), "close is idempotent")
}

func TestStreamEvents_ConsumerCloseWhileWaiting(t *testing.T) {
	src := &scriptedSource{events: []StreamEvent{textDelta(0, "a")}, hang: true}
	s := startStream(t, context.Background(), src)

	_, err := s.Recv()
	require.NoError(t, err)

	s.Close()
	waitExited(t, s)
	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamEvents_BreakClosesStream(t *testing.T) {
	src := &scriptedSource{endless: true}
	s := startStream(t, context.Background(), src, WithBufferSize(1))

	n := 0
	for _, err := range s.All() {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}
	waitExited(t, s)
	assert.True(t, src.isClosed())
}

func TestStreamEvents_AbruptTermination(t *testing.T) {
	src := &scriptedSource{
		events: []StreamEvent{
			MessageStartEvent{Role: RoleAssistant},
			ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
			textDelta(0, "partial"),
		},
		err: errors.New("connection reset by peer"),
	}
	s := startStream(t, context.Background(), src)

	snap, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", snap.Message.Text())

	final, err := s.Recv()
	require.NoError(t, err)
	require.NotNil(t, final.Message)
	assert.Equal(t, "partial", final.Message.Text())

	_, err = s.Recv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransportFailed))
	kind, ok := ErrorKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindTransportFailed, kind)

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err, "nothing follows an error")
}

func TestStreamEvents_CollectKeepsPartialOutput(t *testing.T) {
	src := &scriptedSource{
		events: []StreamEvent{textDelta(0, "partial")},
		err:    errors.New("connection reset by peer"),
	}
	s := startStream(t, context.Background(), src)

	msg, usage, err := s.Collect()
	require.Error(t, err)
	assert.Nil(t, usage)
	require.NotNil(t, msg)
	assert.Equal(t, "partial", msg.Text())
}

func TestStreamEvents_EOFWithoutMessageStop(t *testing.T) {
	src := &scriptedSource{events: []StreamEvent{
		ContentBlockStartEvent{Index: 0, Kind: BlockKindToolUse, ToolID: "t", ToolName: "calc"},
		toolDelta(0, `{"a":`),
	}}
	s := startStream(t, context.Background(), src)

	msg, _, err := s.Collect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamTruncated))
	assert.True(t, errors.Is(err, ErrTransportFailed))

	require.NotNil(t, msg, "partial tool block is still reported")
	require.Len(t, msg.Blocks, 1)
	assert.NotNil(t, msg.Blocks[0].ToolRequest.Err)
}

func TestStreamEvents_EmptyStream(t *testing.T) {
	s := startStream(t, context.Background(), &scriptedSource{})

	item, err := s.Recv()
	require.Error(t, err)
	assert.True(t, item.IsEnd())
	assert.True(t, errors.Is(err, ErrStreamTruncated))
}

func TestStreamEvents_ErrorMapper(t *testing.T) {
	cause := errors.New("slow down")
	src := &scriptedSource{err: cause}
	mapper := func(provider string, err error) *ProviderError {
		return MapFailure(provider, Failure{Code: FailureThrottling, Err: err})
	}
	s := startStream(t, context.Background(), src, WithErrorMapper(mapper))

	_, _, err := s.Collect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsRetryable(err))

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "test", pe.Provider)
}

func TestStreamEvents_ClassifiedSourceError(t *testing.T) {
	classified := MapFailure("test", Failure{Code: FailureModelStream, Message: "model crashed"})
	s := startStream(t, context.Background(), &scriptedSource{err: classified})

	_, _, err := s.Collect()
	assert.True(t, errors.Is(err, ErrExecutionFailed))
	assert.False(t, IsRetryable(err))
}

func TestStreamEvents_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{events: []StreamEvent{textDelta(0, "so far")}, hang: true}
	s := startStream(t, ctx, src)

	snap, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "so far", snap.Message.Text())

	cancel()

	final, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "so far", final.Message.Text())

	_, err = s.Recv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransportFailed))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsRetryable(err))
}

func TestStreamEvents_CancellationOnFullBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{endless: true}
	s := startStream(t, ctx, src, WithBufferSize(1))

	require.Eventually(t, func() bool { return src.readCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	waitExited(t, s)

	var lastErr error
	for {
		_, err := s.Recv()
		if err != nil {
			lastErr = err
			break
		}
	}
	assert.True(t, errors.Is(lastErr, ErrTransportFailed), "cancellation is surfaced, got %v", lastErr)
}

func TestStreamEvents_UnknownEventsIgnored(t *testing.T) {
	events := helloWorldEvents()
	withUnknown := append([]StreamEvent{UnknownEvent{Type: "ping"}}, events...)
	s := startStream(t, context.Background(), &scriptedSource{events: withUnknown})

	msg, _, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "Hello World", msg.Text())
}
