package anthropic

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cronus42/goose"
)

// sseStream is the part of the SDK's ssestream.Stream used here.
type sseStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

// eventSource converts Messages API stream events to wire events.
//
// Anthropic reports the stop reason and output tokens in message_delta, before
// message_stop. They are held back and emitted as MessageStop followed by
// Metadata, the order the accumulator expects.
type eventSource struct {
	stream sseStream
	cancel context.CancelFunc

	primed  bool
	pending []llmprovider.StreamEvent

	stopReason anthropic.StopReason
	input      int64
	output     int64
	cacheRead  int64
	cacheWrite int64

	closeOnce sync.Once
	closeErr  error
}

// newEventSource wraps stream. cancel aborts the HTTP request behind it.
func newEventSource(stream sseStream, cancel context.CancelFunc) *eventSource {
	return &eventSource{stream: stream, cancel: cancel}
}

// open reads the first event so request failures surface before streaming starts.
func (s *eventSource) open(ctx context.Context) error {
	if err := s.next(ctx); err != nil {
		if errors.Is(err, io.EOF) {
			return llmprovider.ErrStreamTruncated
		}
		return err
	}
	s.primed = true
	return nil
}

// next advances the SDK stream. The request is aborted when ctx is done, so a
// blocked read returns promptly.
func (s *eventSource) next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.cancel)
	ok := s.stream.Next()
	stop()
	if ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.stream.Err(); err != nil {
		return err
	}
	return io.EOF
}

// Recv returns the next wire event, io.EOF when the stream ends, or the
// stream's error. Error events sent by the API surface as errors.
func (s *eventSource) Recv(ctx context.Context) (llmprovider.StreamEvent, error) {
	for len(s.pending) == 0 {
		if s.primed {
			s.primed = false
		} else if err := s.next(ctx); err != nil {
			return nil, err
		}
		s.pending = s.convert(s.stream.Current())
	}

	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *eventSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}

// convert maps one SDK event to zero or more wire events.
func (s *eventSource) convert(event anthropic.MessageStreamEventUnion) []llmprovider.StreamEvent {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.input = e.Message.Usage.InputTokens
		s.output = e.Message.Usage.OutputTokens
		s.cacheRead = e.Message.Usage.CacheReadInputTokens
		s.cacheWrite = e.Message.Usage.CacheCreationInputTokens
		return []llmprovider.StreamEvent{llmprovider.MessageStartEvent{Role: llmprovider.RoleAssistant}}

	case anthropic.ContentBlockStartEvent:
		index := int(e.Index)
		switch e.ContentBlock.Type {
		case "text":
			start := []llmprovider.StreamEvent{llmprovider.ContentBlockStartEvent{Index: index, Kind: llmprovider.BlockKindText}}
			if e.ContentBlock.Text != "" {
				start = append(start, llmprovider.ContentBlockDeltaEvent{Index: index, Delta: llmprovider.TextDelta{Text: e.ContentBlock.Text}})
			}
			return start
		case "tool_use":
			return []llmprovider.StreamEvent{llmprovider.ContentBlockStartEvent{
				Index:    index,
				Kind:     llmprovider.BlockKindToolUse,
				ToolID:   e.ContentBlock.ID,
				ToolName: e.ContentBlock.Name,
			}}
		default:
			return []llmprovider.StreamEvent{llmprovider.UnknownEvent{Type: "content_block_start/" + e.ContentBlock.Type}}
		}

	case anthropic.ContentBlockDeltaEvent:
		index := int(e.Index)
		switch e.Delta.Type {
		case "text_delta":
			return []llmprovider.StreamEvent{llmprovider.ContentBlockDeltaEvent{Index: index, Delta: llmprovider.TextDelta{Text: e.Delta.Text}}}
		case "input_json_delta":
			return []llmprovider.StreamEvent{llmprovider.ContentBlockDeltaEvent{Index: index, Delta: llmprovider.ToolUseDelta{PartialJSON: e.Delta.PartialJSON}}}
		default:
			return []llmprovider.StreamEvent{llmprovider.UnknownEvent{Type: "content_block_delta/" + e.Delta.Type}}
		}

	case anthropic.ContentBlockStopEvent:
		return []llmprovider.StreamEvent{llmprovider.ContentBlockStopEvent{Index: int(e.Index)}}

	case anthropic.MessageDeltaEvent:
		s.stopReason = e.Delta.StopReason
		if e.Usage.OutputTokens > 0 {
			s.output = e.Usage.OutputTokens
		}
		return nil

	case anthropic.MessageStopEvent:
		return []llmprovider.StreamEvent{
			llmprovider.MessageStopEvent{StopReason: convertStopReason(s.stopReason)},
			llmprovider.MetadataEvent{Usage: convertUsage(s.input, s.output, s.cacheRead, s.cacheWrite)},
		}

	default:
		return []llmprovider.StreamEvent{llmprovider.UnknownEvent{Type: event.Type}}
	}
}
