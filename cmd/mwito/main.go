// Mwito — a conversational web UI backed by Amazon Bedrock.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mwito",
	Short: "Mwito — a conversational web UI backed by Amazon Bedrock.",
	Long: `Mwito serves a browser chat page and a JSON chat API whose turns run
through the Amazon Bedrock Converse API. AWS authentication is selected
at boot via AWS_LOGIN_STRATEGY (aws_iam_role, aws_sso, or aws_keys);
the process refuses to start until a credential strategy resolves.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
