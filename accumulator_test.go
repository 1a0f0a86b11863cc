package llmprovider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textDelta(index int, text string) ContentBlockDeltaEvent {
	return ContentBlockDeltaEvent{Index: index, Delta: TextDelta{Text: text}}
}

func toolDelta(index int, partial string) ContentBlockDeltaEvent {
	return ContentBlockDeltaEvent{Index: index, Delta: ToolUseDelta{PartialJSON: partial}}
}

// fold applies events in order and returns every non-nil emission.
func fold(acc *Accumulator, events ...StreamEvent) []*Message {
	var out []*Message
	for _, ev := range events {
		if msg := acc.Apply(ev); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

func TestAccumulator_HelloWorld(t *testing.T) {
	acc := NewAccumulator()
	emitted := fold(acc,
		MessageStartEvent{Role: RoleAssistant},
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(0, "Hello"),
		textDelta(0, " World"),
		ContentBlockStopEvent{Index: 0},
		MessageStopEvent{StopReason: StopReasonEndTurn},
	)

	require.Len(t, emitted, 3)
	assert.Equal(t, "Hello", emitted[0].Text())
	assert.Equal(t, "Hello World", emitted[1].Text())

	final := emitted[2]
	assert.Equal(t, RoleAssistant, final.Role)
	require.Len(t, final.Blocks, 1)
	assert.Equal(t, BlockTypeText, final.Blocks[0].BlockType)
	assert.Equal(t, "Hello World", final.Blocks[0].Text())
	assert.Equal(t, StopReasonEndTurn, acc.StopReason())
	assert.True(t, acc.Finished())
}

func TestAccumulator_DeltaOrderWithinBlock(t *testing.T) {
	fragments := []string{"a", "b", "c", "d", "e", "f"}
	acc := NewAccumulator()
	acc.Apply(ContentBlockStartEvent{Index: 0, Kind: BlockKindText})

	want := ""
	for _, f := range fragments {
		want += f
		snap := acc.Apply(textDelta(0, f))
		require.NotNil(t, snap)
		assert.Equal(t, want, snap.Text())
	}
}

func TestAccumulator_OrdersByIndex(t *testing.T) {
	acc := NewAccumulator()
	emitted := fold(acc,
		MessageStartEvent{Role: RoleAssistant},
		ContentBlockStartEvent{Index: 1, Kind: BlockKindText},
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(1, "second"),
		textDelta(0, "first"),
		MessageStopEvent{StopReason: StopReasonEndTurn},
	)

	final := emitted[len(emitted)-1]
	require.Len(t, final.Blocks, 2)
	assert.Equal(t, 0, final.Blocks[0].Sequence)
	assert.Equal(t, "first", final.Blocks[0].Text())
	assert.Equal(t, 1, final.Blocks[1].Sequence)
	assert.Equal(t, "second", final.Blocks[1].Text())
}

func TestAccumulator_SnapshotOmitsEmptyAndToolBlocks(t *testing.T) {
	acc := NewAccumulator()
	fold(acc,
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		ContentBlockStartEvent{Index: 1, Kind: BlockKindToolUse, ToolID: "tool_1", ToolName: "get_weather"},
		toolDelta(1, `{"location":`),
		ContentBlockStartEvent{Index: 2, Kind: BlockKindText},
	)

	snap := acc.Apply(textDelta(2, "Checking"))
	require.NotNil(t, snap)
	require.Len(t, snap.Blocks, 1)
	assert.Equal(t, 2, snap.Blocks[0].Sequence)
	assert.False(t, snap.HasToolRequests())

	// An empty fragment on an empty block leaves nothing to show
	empty := NewAccumulator()
	empty.Apply(ContentBlockStartEvent{Index: 0, Kind: BlockKindText})
	assert.Nil(t, empty.Apply(textDelta(0, "")))

	// Tool input alone never makes a snapshot
	toolOnly := NewAccumulator()
	toolOnly.Apply(ContentBlockStartEvent{Index: 0, Kind: BlockKindToolUse, ToolID: "tool_1", ToolName: "calc"})
	toolOnly.Apply(ContentBlockStartEvent{Index: 1, Kind: BlockKindText})
	assert.Nil(t, toolOnly.Apply(textDelta(1, "")))

	// Once some text exists an empty fragment repeats the current snapshot
	again := acc.Apply(textDelta(0, ""))
	require.NotNil(t, again)
	assert.Equal(t, "Checking", again.Text())
}

func TestAccumulator_ToolArguments(t *testing.T) {
	acc := NewAccumulator()
	emitted := fold(acc,
		MessageStartEvent{Role: RoleAssistant},
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(0, "Let me check."),
		ContentBlockStopEvent{Index: 0},
		ContentBlockStartEvent{Index: 1, Kind: BlockKindToolUse, ToolID: "tool_1", ToolName: "calc"},
		toolDelta(1, `{"a":`),
		toolDelta(1, `1}`),
		ContentBlockStopEvent{Index: 1},
		MessageStopEvent{StopReason: StopReasonToolUse},
	)

	final := emitted[len(emitted)-1]
	require.Len(t, final.Blocks, 2)
	assert.Equal(t, "Let me check.", final.Blocks[0].Text())

	req := final.Blocks[1].ToolRequest
	require.NotNil(t, req)
	assert.Equal(t, "tool_1", req.ID)
	require.NotNil(t, req.Call)
	assert.Equal(t, "calc", req.Call.Name)
	assert.Equal(t, map[string]any{"a": float64(1)}, req.Call.Arguments)
}

func TestAccumulator_InvalidToolArguments(t *testing.T) {
	tests := []struct {
		name  string
		input []string
	}{
		{"truncated object", []string{`{"a":`}},
		{"array is not an object", []string{`[1,2]`}},
		{"scalar is not an object", []string{`42`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator()
			acc.Apply(ContentBlockStartEvent{Index: 0, Kind: BlockKindToolUse, ToolID: "tool_bad", ToolName: "calc"})
			acc.Apply(ContentBlockStartEvent{Index: 1, Kind: BlockKindToolUse, ToolID: "tool_ok", ToolName: "calc"})
			for _, f := range tt.input {
				acc.Apply(toolDelta(0, f))
			}
			acc.Apply(toolDelta(1, `{"b":2}`))

			final := acc.Apply(MessageStopEvent{StopReason: StopReasonToolUse})
			require.NotNil(t, final)
			require.Len(t, final.Blocks, 2, "a malformed invocation must not drop blocks")

			bad := final.Blocks[0].ToolRequest
			assert.Nil(t, bad.Call)
			require.NotNil(t, bad.Err)
			assert.Equal(t, "tool_bad", bad.ID)
			assert.Equal(t, "calc", bad.Err.Name)
			assert.True(t, errors.Is(bad.Err, ErrInvalidToolArguments))

			ok := final.Blocks[1].ToolRequest
			require.NotNil(t, ok.Call)
			assert.Equal(t, map[string]any{"b": float64(2)}, ok.Call.Arguments)
		})
	}
}

func TestAccumulator_EmptyToolInput(t *testing.T) {
	acc := NewAccumulator()
	acc.Apply(ContentBlockStartEvent{Index: 0, Kind: BlockKindToolUse, ToolID: "tool_1", ToolName: "list"})
	final := acc.Apply(MessageStopEvent{StopReason: StopReasonToolUse})

	require.Len(t, final.Blocks, 1)
	require.NotNil(t, final.Blocks[0].ToolRequest.Call)
	assert.Empty(t, final.Blocks[0].ToolRequest.Call.Arguments)
}

func TestAccumulator_Deterministic(t *testing.T) {
	events := []StreamEvent{
		MessageStartEvent{Role: RoleAssistant},
		ContentBlockStartEvent{Index: 2, Kind: BlockKindToolUse, ToolID: "t", ToolName: "search_files"},
		textDelta(0, "one "),
		toolDelta(2, `{"query":"go"}`),
		textDelta(1, "two"),
		textDelta(0, "three"),
		UnknownEvent{Type: "ping"},
		MessageStopEvent{StopReason: StopReasonToolUse},
		MetadataEvent{Usage: &Usage{InputTokens: intPtr(3)}},
	}

	first := fold(NewAccumulator(), events...)
	second := fold(NewAccumulator(), events...)
	assert.Equal(t, first, second)
}

func TestAccumulator_ImplicitStart(t *testing.T) {
	acc := NewAccumulator()
	snap := acc.Apply(textDelta(3, "no start"))
	require.NotNil(t, snap)
	assert.Equal(t, "no start", snap.Text())

	acc.Apply(toolDelta(4, `{}`))
	final := acc.Apply(MessageStopEvent{StopReason: StopReasonEndTurn})
	require.Len(t, final.Blocks, 2)
	assert.Equal(t, RoleAssistant, final.Role, "role defaults to assistant")
	assert.True(t, final.Blocks[1].IsToolUseBlock())
}

func TestAccumulator_DuplicateStartOverwrites(t *testing.T) {
	acc := NewAccumulator()
	fold(acc,
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(0, "stale"),
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(0, "fresh"),
	)
	final := acc.Apply(MessageStopEvent{StopReason: StopReasonEndTurn})
	assert.Equal(t, "fresh", final.Text())
}

func TestAccumulator_IgnoresStrayDeltas(t *testing.T) {
	acc := NewAccumulator()
	fold(acc,
		ContentBlockStartEvent{Index: 0, Kind: BlockKindText},
		textDelta(0, "kept"),
		ContentBlockStopEvent{Index: 0},
		ContentBlockStartEvent{Index: 1, Kind: BlockKindToolUse, ToolID: "t", ToolName: "n"},
	)

	assert.Nil(t, acc.Apply(textDelta(0, " after stop")), "closed block is frozen")
	assert.Nil(t, acc.Apply(textDelta(1, "text into tool")), "mismatched kind is ignored")
	assert.Nil(t, acc.Apply(toolDelta(0, `{"x":1}`)), "tool fragment into text is ignored")

	final := acc.Apply(MessageStopEvent{StopReason: StopReasonToolUse})
	require.Len(t, final.Blocks, 2)
	assert.Equal(t, "kept", final.Blocks[0].Text())
	assert.Empty(t, final.Blocks[1].ToolRequest.Call.Arguments)
}

func TestAccumulator_UsageIsSeparate(t *testing.T) {
	acc := NewAccumulator()
	acc.Apply(textDelta(0, "hi"))
	final := acc.Apply(MessageStopEvent{StopReason: StopReasonEndTurn})
	require.NotNil(t, final)
	assert.Nil(t, acc.Usage())

	usage := NewUsage(intPtr(12), intPtr(4))
	assert.Nil(t, acc.Apply(MetadataEvent{Usage: &usage}))
	require.NotNil(t, acc.Usage())
	assert.Equal(t, 16, *acc.Usage().TotalTokens)
	assert.Len(t, final.Blocks, 1)
}

func TestAccumulator_Finalize(t *testing.T) {
	acc := NewAccumulator()
	assert.False(t, acc.HasContent())
	acc.Apply(textDelta(0, "partial"))
	acc.Apply(ContentBlockStartEvent{Index: 1, Kind: BlockKindToolUse, ToolID: "t", ToolName: "n"})
	acc.Apply(toolDelta(1, `{"a":`))
	assert.True(t, acc.HasContent())

	final := acc.Finalize(StopReasonIncomplete)
	require.Len(t, final.Blocks, 2)
	assert.Equal(t, "partial", final.Blocks[0].Text())
	assert.NotNil(t, final.Blocks[1].ToolRequest.Err)
	assert.Equal(t, StopReasonIncomplete, acc.StopReason())
	assert.False(t, acc.Finished())
}
