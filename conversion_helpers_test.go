package llmprovider

import (
	"errors"
	"strings"
	"testing"
)

func TestPrepareMessages(t *testing.T) {
	input := []Message{
		NewUserMessage("first"),
		NewUserMessage("second"),
		{Role: RoleAssistant, Blocks: []*Block{NewTextBlock(0, "   "), nil}},
		{Role: RoleAssistant, Blocks: []*Block{NewTextBlock(0, "answer")}},
		{Role: RoleUser},
	}

	got := PrepareMessages(input)
	if len(got) != 2 {
		t.Fatalf("PrepareMessages() returned %d messages, want 2", len(got))
	}

	if got[0].Role != RoleUser || len(got[0].Blocks) != 2 {
		t.Errorf("consecutive user messages should merge, got %+v", got[0])
	}
	if got[0].Text() != "firstsecond" {
		t.Errorf("merged text = %q", got[0].Text())
	}
	if got[1].Role != RoleAssistant || got[1].Text() != "answer" {
		t.Errorf("blank assistant message should be dropped, got %+v", got[1])
	}

	if len(input[0].Blocks) != 1 {
		t.Error("input messages must not be modified")
	}
}

func TestPrepareMessages_KeepsToolBlocks(t *testing.T) {
	input := []Message{
		NewUserMessage("weather?"),
		{Role: RoleAssistant, Blocks: []*Block{NewToolRequestBlock(0, "t1", "get_weather", map[string]any{"location": "Paris"})}},
		{Role: RoleUser, Blocks: []*Block{NewToolResultBlock("t1", "18C", false)}},
	}

	got := PrepareMessages(input)
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	if !got[2].Blocks[0].IsToolResultBlock() {
		t.Error("tool_result block should survive")
	}
}

func TestToolHelpers(t *testing.T) {
	ok := NewToolRequestBlock(0, "t1", "get_weather", map[string]any{"location": "Paris"}).ToolRequest
	bad := NewToolRequestErrorBlock(1, "t2", "search_files", "{", errors.New("eof")).ToolRequest

	if ToolName(ok) != "get_weather" || ToolName(bad) != "search_files" || ToolName(nil) != "" {
		t.Error("ToolName() should read the parsed or failed name")
	}
	if ToolInput(ok)["location"] != "Paris" {
		t.Error("ToolInput() should return parsed arguments")
	}
	if len(ToolInput(bad)) != 0 {
		t.Error("failed invocations replay as an empty object")
	}

	result := NewToolCallErrorResult(bad)
	if !result.IsToolResultBlock() || !result.ToolResult.IsError {
		t.Fatal("expected an error tool_result")
	}
	if result.ToolResult.ToolUseID != "t2" {
		t.Errorf("ToolUseID = %q", result.ToolResult.ToolUseID)
	}
	if !strings.Contains(result.ToolResult.Content, "search_files") {
		t.Errorf("Content = %q", result.ToolResult.Content)
	}
}
