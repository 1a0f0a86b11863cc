package bedrock

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cronus42/goose"
)

func messageStart() types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberMessageStart{
		Value: types.MessageStartEvent{Role: types.ConversationRoleAssistant},
	}
}

func textChunk(index int32, text string) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberContentBlockDelta{
		Value: types.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(index),
			Delta:             &types.ContentBlockDeltaMemberText{Value: text},
		},
	}
}

func toolStart(index int32, id, name string) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberContentBlockStart{
		Value: types.ContentBlockStartEvent{
			ContentBlockIndex: aws.Int32(index),
			Start: &types.ContentBlockStartMemberToolUse{
				Value: types.ToolUseBlockStart{ToolUseId: aws.String(id), Name: aws.String(name)},
			},
		},
	}
}

func toolChunk(index int32, input string) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberContentBlockDelta{
		Value: types.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(index),
			Delta: &types.ContentBlockDeltaMemberToolUse{
				Value: types.ToolUseBlockDelta{Input: aws.String(input)},
			},
		},
	}
}

func blockStop(index int32) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberContentBlockStop{
		Value: types.ContentBlockStopEvent{ContentBlockIndex: aws.Int32(index)},
	}
}

func messageStop(reason types.StopReason) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberMessageStop{
		Value: types.MessageStopEvent{StopReason: reason},
	}
}

func metadata(in, out int32) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberMetadata{
		Value: types.ConverseStreamMetadataEvent{
			Usage: &types.TokenUsage{
				InputTokens:  aws.Int32(in),
				OutputTokens: aws.Int32(out),
				TotalTokens:  aws.Int32(in + out),
			},
		},
	}
}

func TestConvertStreamEvent(t *testing.T) {
	tests := []struct {
		name string
		in   types.ConverseStreamOutput
		want llmprovider.StreamEvent
	}{
		{"message start", messageStart(), llmprovider.MessageStartEvent{Role: llmprovider.RoleAssistant}},
		{"text delta", textChunk(0, "Hi"), llmprovider.ContentBlockDeltaEvent{Index: 0, Delta: llmprovider.TextDelta{Text: "Hi"}}},
		{
			"tool start", toolStart(1, "tooluse_1", "get_weather"),
			llmprovider.ContentBlockStartEvent{Index: 1, Kind: llmprovider.BlockKindToolUse, ToolID: "tooluse_1", ToolName: "get_weather"},
		},
		{"tool delta", toolChunk(1, `{"loc`), llmprovider.ContentBlockDeltaEvent{Index: 1, Delta: llmprovider.ToolUseDelta{PartialJSON: `{"loc`}}},
		{"block stop", blockStop(1), llmprovider.ContentBlockStopEvent{Index: 1}},
		{"message stop", messageStop(types.StopReasonToolUse), llmprovider.MessageStopEvent{StopReason: llmprovider.StopReasonToolUse}},
		{"guardrail", messageStop(types.StopReasonGuardrailIntervened), llmprovider.MessageStopEvent{StopReason: llmprovider.StopReasonContentFiltered}},
		{"unknown member", &types.UnknownUnionMember{Tag: "futureEvent"}, llmprovider.UnknownEvent{Type: "futureEvent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertStreamEvent(tt.in))
		})
	}
}

func TestConvertStreamEvent_Metadata(t *testing.T) {
	ev, ok := convertStreamEvent(metadata(25, 5)).(llmprovider.MetadataEvent)
	require.True(t, ok)
	require.NotNil(t, ev.Usage)
	assert.Equal(t, 25, ev.Usage.Input())
	assert.Equal(t, 5, ev.Usage.Output())
	assert.Equal(t, 30, *ev.Usage.TotalTokens)

	assert.Nil(t, ev.Usage.CacheReadTokens)
	assert.Nil(t, ev.Usage.CacheWriteTokens)

	cached := metadata(25, 5)
	cached.(*types.ConverseStreamOutputMemberMetadata).Value.Usage.CacheReadInputTokens = aws.Int32(7)
	cached.(*types.ConverseStreamOutputMemberMetadata).Value.Usage.CacheWriteInputTokens = aws.Int32(3)
	ev, ok = convertStreamEvent(cached).(llmprovider.MetadataEvent)
	require.True(t, ok)
	require.NotNil(t, ev.Usage.CacheReadTokens)
	require.NotNil(t, ev.Usage.CacheWriteTokens)
	assert.Equal(t, 7, *ev.Usage.CacheReadTokens)
	assert.Equal(t, 3, *ev.Usage.CacheWriteTokens)

	empty, ok := convertStreamEvent(&types.ConverseStreamOutputMemberMetadata{}).(llmprovider.MetadataEvent)
	require.True(t, ok)
	assert.Nil(t, empty.Usage)
}

func TestEventSource_Recv(t *testing.T) {
	reader := newFakeReader(nil, messageStart(), textChunk(0, "a"))
	src := newEventSource(reader)
	ctx := context.Background()

	ev, err := src.Recv(ctx)
	require.NoError(t, err)
	assert.IsType(t, llmprovider.MessageStartEvent{}, ev)

	_, err = src.Recv(ctx)
	require.NoError(t, err)

	_, err = src.Recv(ctx)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.True(t, reader.isClosed())
}

func TestEventSource_StreamError(t *testing.T) {
	streamErr := &types.ModelStreamErrorException{Message: aws.String("model stream failed")}
	src := newEventSource(newFakeReader(streamErr))

	_, err := src.Recv(context.Background())
	assert.True(t, errors.Is(err, streamErr))
}

func TestEventSource_Cancelled(t *testing.T) {
	reader := &fakeReader{events: make(chan types.ConverseStreamOutput)}
	src := newEventSource(reader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
