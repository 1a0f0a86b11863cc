package bedrock

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cronus42/goose"
)

// eventSource reads ConverseStream events and converts them to wire events.
type eventSource struct {
	reader    eventReader
	closeOnce sync.Once
	closeErr  error
}

func newEventSource(reader eventReader) *eventSource {
	return &eventSource{reader: reader}
}

// Recv returns the next converted event, io.EOF when the stream completes,
// or the stream's error.
func (s *eventSource) Recv(ctx context.Context) (llmprovider.StreamEvent, error) {
	select {
	case ev, ok := <-s.reader.Events():
		if !ok {
			if err := s.reader.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return convertStreamEvent(ev), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *eventSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.reader.Close()
	})
	return s.closeErr
}

// convertStreamEvent maps one ConverseStream union member to a wire event.
func convertStreamEvent(ev types.ConverseStreamOutput) llmprovider.StreamEvent {
	switch e := ev.(type) {
	case *types.ConverseStreamOutputMemberMessageStart:
		return llmprovider.MessageStartEvent{Role: llmprovider.Role(e.Value.Role)}

	case *types.ConverseStreamOutputMemberContentBlockStart:
		index := int(aws.ToInt32(e.Value.ContentBlockIndex))
		switch start := e.Value.Start.(type) {
		case *types.ContentBlockStartMemberToolUse:
			return llmprovider.ContentBlockStartEvent{
				Index:    index,
				Kind:     llmprovider.BlockKindToolUse,
				ToolID:   aws.ToString(start.Value.ToolUseId),
				ToolName: aws.ToString(start.Value.Name),
			}
		case nil:
			return llmprovider.ContentBlockStartEvent{Index: index, Kind: llmprovider.BlockKindText}
		default:
			return llmprovider.UnknownEvent{Type: fmt.Sprintf("contentBlockStart/%T", start)}
		}

	case *types.ConverseStreamOutputMemberContentBlockDelta:
		index := int(aws.ToInt32(e.Value.ContentBlockIndex))
		switch delta := e.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			return llmprovider.ContentBlockDeltaEvent{Index: index, Delta: llmprovider.TextDelta{Text: delta.Value}}
		case *types.ContentBlockDeltaMemberToolUse:
			return llmprovider.ContentBlockDeltaEvent{
				Index: index,
				Delta: llmprovider.ToolUseDelta{PartialJSON: aws.ToString(delta.Value.Input)},
			}
		default:
			return llmprovider.UnknownEvent{Type: fmt.Sprintf("contentBlockDelta/%T", delta)}
		}

	case *types.ConverseStreamOutputMemberContentBlockStop:
		return llmprovider.ContentBlockStopEvent{Index: int(aws.ToInt32(e.Value.ContentBlockIndex))}

	case *types.ConverseStreamOutputMemberMessageStop:
		return llmprovider.MessageStopEvent{StopReason: convertStopReason(e.Value.StopReason)}

	case *types.ConverseStreamOutputMemberMetadata:
		return llmprovider.MetadataEvent{Usage: convertUsage(e.Value.Usage)}

	case *types.UnknownUnionMember:
		return llmprovider.UnknownEvent{Type: e.Tag}

	default:
		return llmprovider.UnknownEvent{Type: fmt.Sprintf("%T", ev)}
	}
}

func convertStopReason(reason types.StopReason) llmprovider.StopReason {
	switch reason {
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		return llmprovider.StopReasonContentFiltered
	default:
		return llmprovider.StopReason(reason)
	}
}

func convertUsage(u *types.TokenUsage) *llmprovider.Usage {
	if u == nil {
		return nil
	}
	usage := llmprovider.NewUsage(int32Ptr(u.InputTokens), int32Ptr(u.OutputTokens))
	if u.TotalTokens != nil {
		usage.TotalTokens = int32Ptr(u.TotalTokens)
	}
	usage.CacheReadTokens = int32Ptr(u.CacheReadInputTokens)
	usage.CacheWriteTokens = int32Ptr(u.CacheWriteInputTokens)
	return &usage
}

func int32Ptr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
