package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cronus42/goose"
)

// promptFlags are the request flags shared by stream and complete.
type promptFlags struct {
	message     string
	system      string
	maxTokens   int
	temperature float64
	toolNames   []string
	toolsFile   string
	toolChoice  string
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "user message to send (required)")
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "system prompt")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens to generate (provider default when 0)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", -1, "sampling temperature between 0 and 1")
	cmd.Flags().StringSliceVar(&f.toolNames, "tool", nil, "registered tool to offer, repeatable (see the tools command)")
	cmd.Flags().StringVar(&f.toolsFile, "tools", "", "YAML or JSON file listing tools the model may call")
	cmd.Flags().StringVar(&f.toolChoice, "tool-choice", "", "auto, required, or the name of one tool")
	_ = cmd.MarkFlagRequired("message")
}

// toolSpec is one entry of the tools file.
type toolSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

func (f *promptFlags) request(model string) (*llmprovider.GenerateRequest, error) {
	if f.message == "" {
		return nil, fmt.Errorf("message is required: use -m flag")
	}

	req := &llmprovider.GenerateRequest{
		Model:    model,
		System:   f.system,
		Messages: []llmprovider.Message{llmprovider.NewUserMessage(f.message)},
		Params:   &llmprovider.RequestParams{},
	}
	if f.maxTokens > 0 {
		req.Params.MaxTokens = &f.maxTokens
	}
	if f.temperature >= 0 {
		req.Params.Temperature = &f.temperature
	}

	if len(f.toolNames) > 0 {
		tools, err := llmprovider.GetToolRegistry().CreateTools(f.toolNames)
		if err != nil {
			return nil, err
		}
		req.Tools = tools
	}
	if f.toolsFile != "" {
		tools, err := loadTools(f.toolsFile)
		if err != nil {
			return nil, err
		}
		req.Tools = append(req.Tools, tools...)
	}

	switch f.toolChoice {
	case "":
	case "auto":
		req.Params.ToolChoice = &llmprovider.ToolChoice{Mode: llmprovider.ToolChoiceModeAuto}
	case "required":
		req.Params.ToolChoice = &llmprovider.ToolChoice{Mode: llmprovider.ToolChoiceModeRequired}
	default:
		choice, err := llmprovider.NewSpecificToolChoice(f.toolChoice)
		if err != nil {
			return nil, err
		}
		req.Params.ToolChoice = choice
	}
	return req, nil
}

func loadTools(path string) ([]llmprovider.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var specs []toolSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}

	tools := make([]llmprovider.Tool, 0, len(specs))
	for _, spec := range specs {
		tool, err := llmprovider.NewCustomTool(spec.Name, spec.Description, spec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", spec.Name, err)
		}
		tools = append(tools, *tool)
	}
	return tools, nil
}
