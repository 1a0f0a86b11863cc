package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/cronus42/goose"
)

var (
	toolColor  = color.New(color.FgCyan, color.Bold)
	errorColor = color.New(color.FgRed)
	faintColor = color.New(color.Faint)
)

// textPrinter prints the growth of successive text snapshots.
type textPrinter struct {
	w       io.Writer
	printed string
	updates int
}

func (p *textPrinter) update(text string) {
	if strings.HasPrefix(text, p.printed) {
		fmt.Fprint(p.w, text[len(p.printed):])
	} else {
		fmt.Fprint(p.w, "\n"+text)
	}
	p.printed = text
	p.updates++
}

func printToolRequests(w io.Writer, msg *llmprovider.Message) {
	if msg == nil {
		return
	}
	for _, req := range msg.ToolRequests() {
		if req.Err != nil {
			errorColor.Fprintf(w, "\n[tool %s] %v\n  raw input: %s\n", req.Err.Name, req.Err, req.Err.RawInput)
			continue
		}
		toolColor.Fprintf(w, "\n[tool %s] ", req.Call.Name)
		args, _ := json.Marshal(llmprovider.ToolInput(req))
		fmt.Fprintf(w, "%s\n", args)
	}
}

func printUsage(w io.Writer, usage *llmprovider.ProviderUsage) {
	if usage == nil {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Model", "Input", "Output", "Total", "Cache read", "Cache write"})
	table.SetBorder(false)
	table.Append([]string{
		usage.Model,
		count(usage.Usage.InputTokens),
		count(usage.Usage.OutputTokens),
		count(usage.Usage.TotalTokens),
		count(usage.Usage.CacheReadTokens),
		count(usage.Usage.CacheWriteTokens),
	})
	table.Render()
}

func count(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
