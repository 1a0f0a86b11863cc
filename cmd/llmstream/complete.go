package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completeFlags promptFlags

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Wait for the whole response and print it",
	RunE:  runComplete,
}

func init() {
	completeFlags.register(completeCmd)
}

func runComplete(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	req, err := completeFlags.request(s.cfg.Model)
	if err != nil {
		return err
	}

	msg, usage, err := s.provider.Complete(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, msg.Text())
	printToolRequests(os.Stdout, msg)
	printUsage(os.Stderr, usage)
	return nil
}
