package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cronus42/goose"
)

var streamFlags promptFlags

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream a response to the terminal",
	Long: `Send a message and print the response as it is generated.

Examples:
  llmstream stream -m "Write a haiku about rivers"
  llmstream stream -p lorem --model lorem-fast -m "anything"
  llmstream stream -m "Weather in Paris?" --tool get_weather --tool-choice get_weather
  llmstream stream -m "Find the config" --tools tools.yaml`,
	RunE: runStream,
}

func init() {
	streamFlags.register(streamCmd)
}

func runStream(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	req, err := streamFlags.request(s.cfg.Model)
	if err != nil {
		return err
	}
	return streamTo(ctx, s.provider, req, os.Stdout, os.Stderr)
}

// streamTo renders the response to out and the usage table and errors to errOut.
func streamTo(ctx context.Context, provider llmprovider.Provider, req *llmprovider.GenerateRequest, out, errOut io.Writer) error {
	stream, err := provider.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	log.Debug().Str("stream", stream.ID()).Msg("streaming response")

	text := &textPrinter{w: out}
	var last *llmprovider.Message
	for item, err := range stream.All() {
		if err != nil {
			fmt.Fprintln(out)
			printToolRequests(out, last)
			errorColor.Fprintf(errOut, "stream failed: %v\n", err)
			return err
		}
		if item.Message != nil {
			last = item.Message
			text.update(item.Message.Text())
		}
		if item.Usage != nil {
			fmt.Fprintln(out)
			printToolRequests(out, last)
			faintColor.Fprintf(errOut, "received %d messages\n", text.updates)
			printUsage(errOut, item.Usage)
		}
	}
	return nil
}
