package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL    string
	sessionKey string
	format     string
	quiet      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagmirror",
	Short: "CLI tool for the flagmirror demo service",
	Long: `Flagmirror is a command-line companion for the flagmirror service.

It talks to the running HTTP server: check status, evaluate the demo
flag, manage the session context, watch the live value stream, and run
load tests.

Examples:
  flagmirror status
  flagmirror flag --format json
  flagmirror context set --type custom --email dev@example.com
  flagmirror watch
  flagmirror loadtest --requests 500 --concurrency 25`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Base URL of the flagmirror API")
	rootCmd.PersistentFlags().StringVar(&sessionKey, "session-key", "flagmirror-cli", "Session key pinning the CLI to one server-side session")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
