package llmprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// toolBlock accumulates one streamed tool invocation.
type toolBlock struct {
	id    string
	name  string
	input strings.Builder
}

// Accumulator folds the wire events of one streamed response into messages.
//
// Apply is a pure function of the events seen so far: two accumulators fed the
// same sequence produce identical output. An Accumulator is not safe for
// concurrent use; it belongs to the goroutine driving the stream.
type Accumulator struct {
	role       Role
	textBlocks map[int]*strings.Builder
	toolBlocks map[int]*toolBlock
	closed     map[int]bool
	stopReason StopReason
	finished   bool
	usage      *Usage
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		textBlocks: make(map[int]*strings.Builder),
		toolBlocks: make(map[int]*toolBlock),
		closed:     make(map[int]bool),
	}
}

// Apply folds ev into the accumulator state.
//
// It returns a snapshot of the text accumulated so far for text deltas, the
// final message for MessageStop, and nil for every other event. A text delta
// returns nil while every text block is still empty, so an empty fragment
// produces no snapshot until some text has arrived.
func (a *Accumulator) Apply(ev StreamEvent) *Message {
	switch e := ev.(type) {
	case MessageStartEvent:
		a.role = e.Role

	case ContentBlockStartEvent:
		switch e.Kind {
		case BlockKindText:
			delete(a.toolBlocks, e.Index)
			a.textBlocks[e.Index] = &strings.Builder{}
		case BlockKindToolUse:
			delete(a.textBlocks, e.Index)
			a.toolBlocks[e.Index] = &toolBlock{id: e.ToolID, name: e.ToolName}
		}
		delete(a.closed, e.Index)

	case ContentBlockDeltaEvent:
		if a.closed[e.Index] {
			return nil
		}
		switch d := e.Delta.(type) {
		case TextDelta:
			if _, isTool := a.toolBlocks[e.Index]; isTool {
				return nil
			}
			sb, ok := a.textBlocks[e.Index]
			if !ok {
				// Bedrock never sends a start for text blocks
				sb = &strings.Builder{}
				a.textBlocks[e.Index] = sb
			}
			sb.WriteString(d.Text)
			return a.snapshot()

		case ToolUseDelta:
			if _, isText := a.textBlocks[e.Index]; isText {
				return nil
			}
			tb, ok := a.toolBlocks[e.Index]
			if !ok {
				tb = &toolBlock{}
				a.toolBlocks[e.Index] = tb
			}
			tb.input.WriteString(d.PartialJSON)
		}

	case ContentBlockStopEvent:
		a.closed[e.Index] = true

	case MessageStopEvent:
		a.stopReason = e.StopReason
		a.finished = true
		return a.assemble()

	case MetadataEvent:
		if e.Usage != nil {
			u := *e.Usage
			a.usage = &u
		}
	}
	return nil
}

// Finalize assembles a final message from the current state with the given
// stop reason. It is used when the stream ends without a message stop.
func (a *Accumulator) Finalize(reason StopReason) *Message {
	a.stopReason = reason
	return a.assemble()
}

// Usage returns the captured token usage, or nil.
func (a *Accumulator) Usage() *Usage {
	return a.usage
}

// StopReason returns the recorded stop reason.
func (a *Accumulator) StopReason() StopReason {
	return a.stopReason
}

// Finished reports whether a MessageStop event has been applied.
func (a *Accumulator) Finished() bool {
	return a.finished
}

// HasContent reports whether any content block has been opened.
func (a *Accumulator) HasContent() bool {
	return len(a.textBlocks) > 0 || len(a.toolBlocks) > 0
}

func (a *Accumulator) messageRole() Role {
	if a.role == "" {
		return RoleAssistant
	}
	return a.role
}

// snapshot returns the non-empty text blocks in index order, or nil if there
// are none yet.
func (a *Accumulator) snapshot() *Message {
	blocks := a.textContent()
	if len(blocks) == 0 {
		return nil
	}
	return &Message{Role: a.messageRole(), Blocks: blocks}
}

func (a *Accumulator) textContent() []*Block {
	indices := sortedKeys(a.textBlocks)
	blocks := make([]*Block, 0, len(indices))
	for _, idx := range indices {
		text := a.textBlocks[idx].String()
		if text == "" {
			continue
		}
		blocks = append(blocks, NewTextBlock(idx, text))
	}
	return blocks
}

// assemble builds the final message: text blocks by index, then tool blocks by index.
func (a *Accumulator) assemble() *Message {
	blocks := a.textContent()
	for _, idx := range sortedKeys(a.toolBlocks) {
		tb := a.toolBlocks[idx]
		raw := tb.input.String()
		args, err := parseToolArguments(raw)
		if err != nil {
			blocks = append(blocks, NewToolRequestErrorBlock(idx, tb.id, tb.name, raw, err))
			continue
		}
		blocks = append(blocks, NewToolRequestBlock(idx, tb.id, tb.name, args))
	}
	return &Message{Role: a.messageRole(), Blocks: blocks}
}

// ErrInvalidToolArguments is the cause of a ToolCallError whose input is not
// a JSON object.
var ErrInvalidToolArguments = errors.New("llmprovider: tool arguments are not a JSON object")

// parseToolArguments parses an accumulated tool input. Empty input means no arguments.
func parseToolArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidToolArguments)
	}
	if !gjson.Parse(raw).IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidToolArguments, gjson.Parse(raw).Type)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
	}
	return args, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
