package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagmirror/flagmirror/internal/cli"
	"github.com/flagmirror/flagmirror/internal/client"
)

var (
	ltRequests    int
	ltConcurrency int
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run a load test against the service",
	Long: `Trigger a synthetic evaluation burst on the server and print the
aggregate summary once it finishes.

Examples:
  flagmirror loadtest
  flagmirror loadtest --requests 500 --concurrency 25 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, sessionKey)
		// Server-side runs can exceed the default client timeout.
		c.HTTPClient.Timeout = 0

		res, err := c.RunLoadTest(context.Background(), client.LoadTestParams{
			Requests:    ltRequests,
			Concurrency: ltConcurrency,
		})
		if err != nil {
			return fmt.Errorf("load test failed: %w", err)
		}

		if !quiet {
			return cli.PrintLoadTest(res, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	loadtestCmd.Flags().IntVar(&ltRequests, "requests", 100, "Total number of requests")
	loadtestCmd.Flags().IntVar(&ltConcurrency, "concurrency", 10, "Maximum concurrent requests")
	rootCmd.AddCommand(loadtestCmd)
}
