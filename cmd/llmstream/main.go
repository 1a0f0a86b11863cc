// llmstream streams model responses from Bedrock, the Anthropic API or the
// lorem mock to the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagProvider string
	flagModel    string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "llmstream",
	Short: "Stream LLM responses from the command line.",
	Long: `llmstream sends a prompt to a model and renders the streamed response.

The provider is chosen with --provider or LLM_PROVIDER:
  aws_bedrock  Bedrock ConverseStream (AWS_PROFILE, AWS_REGION)
  anthropic    Anthropic Messages API (ANTHROPIC_API_KEY)
  lorem        offline mock, no credentials needed`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "provider id (or LLM_PROVIDER env)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model id (or LLM_MODEL env)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (or LOG_LEVEL env)")

	rootCmd.AddCommand(streamCmd, completeCmd, modelsCmd, toolsCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(exitCode(err))
	}
}
