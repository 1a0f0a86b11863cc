package lorem

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cronus42/goose"
)

// DefaultWords is the response length when a request sets no max_tokens.
// One word counts as one output token.
const DefaultWords = 50

// wordsPerBlock is the length of each text block before a new one starts.
const wordsPerBlock = 20

// step is one scripted wire event and the pause before it is delivered.
type step struct {
	event llmprovider.StreamEvent
	delay time.Duration
}

// behavior is derived from the model name.
type behavior struct {
	delay    time.Duration
	cutoff   bool // generate past max_tokens and stop there
	fail     bool // fail with an execution error halfway through
	truncate bool // end the stream without a message stop
}

// modelBehavior returns the delay between words based on the model name.
// - lorem-slow: 2 words/second (500ms per word)
// - lorem-fast: 30 words/second (33ms per word)
// - lorem-medium: 10 words/second (100ms per word)
// - default: 10 words/second
func modelBehavior(model string) behavior {
	b := behavior{delay: 100 * time.Millisecond}
	switch {
	case strings.Contains(model, "slow"):
		b.delay = 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		b.delay = 33 * time.Millisecond
	}
	b.cutoff = strings.Contains(model, "cutoff") || strings.Contains(model, "small")
	b.fail = strings.Contains(model, "fail")
	b.truncate = strings.Contains(model, "truncate")
	return b
}

// scriptWriter builds the event script of one response.
type scriptWriter struct {
	steps  []step
	delay  time.Duration
	index  int
	output int
}

func (w *scriptWriter) emit(ev llmprovider.StreamEvent, delay time.Duration) {
	w.steps = append(w.steps, step{event: ev, delay: delay})
}

// text writes words as text blocks of at most wordsPerBlock words.
func (w *scriptWriter) text(words []string) {
	for len(words) > 0 {
		n := min(wordsPerBlock, len(words))
		w.emit(llmprovider.ContentBlockStartEvent{Index: w.index, Kind: llmprovider.BlockKindText}, 0)
		for i, word := range words[:n] {
			delta := word
			if i < n-1 || len(words) > n {
				delta += " "
			}
			w.emit(llmprovider.ContentBlockDeltaEvent{Index: w.index, Delta: llmprovider.TextDelta{Text: delta}}, w.delay)
		}
		w.emit(llmprovider.ContentBlockStopEvent{Index: w.index}, 0)
		w.output += n
		w.index++
		words = words[n:]
	}
}

// toolUse writes a tool_use block whose JSON input streams character by character.
func (w *scriptWriter) toolUse(name string, input map[string]any) error {
	raw, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tool input: %w", err)
	}

	w.emit(llmprovider.ContentBlockStartEvent{
		Index:    w.index,
		Kind:     llmprovider.BlockKindToolUse,
		ToolID:   fmt.Sprintf("toolu_%s_%d", name, w.index),
		ToolName: name,
	}, 0)
	for _, char := range string(raw) {
		// JSON streams faster than words
		w.emit(llmprovider.ContentBlockDeltaEvent{Index: w.index, Delta: llmprovider.ToolUseDelta{PartialJSON: string(char)}}, w.delay/10)
	}
	w.emit(llmprovider.ContentBlockStopEvent{Index: w.index}, 0)

	// Rough: 1 token per 4 chars of JSON
	w.output += len(raw) / 4
	w.index++
	return nil
}

// pickTool returns the tool the response calls, honoring a specific tool choice.
func pickTool(req *llmprovider.GenerateRequest) *llmprovider.Tool {
	if len(req.Tools) == 0 {
		return nil
	}
	if req.Params != nil && req.Params.ToolChoice != nil && req.Params.ToolChoice.Mode == llmprovider.ToolChoiceModeSpecific {
		for i := range req.Tools {
			if req.Tools[i].Function.Name == *req.Params.ToolChoice.ToolName {
				return &req.Tools[i]
			}
		}
	}
	return &req.Tools[0]
}

// mockInput generates arguments that match the tool's JSON schema properties.
func mockInput(tool *llmprovider.Tool, word func() string) map[string]any {
	props, _ := tool.Function.Parameters["properties"].(map[string]any)
	if len(props) == 0 {
		return map[string]any{"data": "mock input for " + tool.Function.Name}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	input := make(map[string]any, len(props))
	for _, name := range names {
		schema, _ := props[name].(map[string]any)
		switch schema["type"] {
		case "integer", "number":
			input[name] = 3
		case "boolean":
			input[name] = true
		case "array":
			input[name] = []any{word(), word()}
		case "object":
			input[name] = map[string]any{}
		default:
			if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
				input[name] = enum[0]
			} else {
				input[name] = word()
			}
		}
	}
	return input
}

// estimateTokens estimates the token count for a list of messages.
// Uses word count as a rough approximation.
func estimateTokens(system string, messages []llmprovider.Message) int {
	total := len(strings.Fields(system))
	for _, msg := range messages {
		for _, block := range msg.Blocks {
			switch {
			case block.TextContent != nil:
				total += len(strings.Fields(*block.TextContent))
			case block.ToolResult != nil:
				total += len(strings.Fields(block.ToolResult.Content))
			}
		}
	}
	return total
}
