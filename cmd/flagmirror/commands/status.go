package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagmirror/flagmirror/internal/cli"
	"github.com/flagmirror/flagmirror/internal/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	Long: `Show the running service's status: environment, flag key in use,
fallback value and cache connectivity.

Examples:
  flagmirror status
  flagmirror status --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, sessionKey)

		st, err := c.GetStatus(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		if !quiet {
			return cli.PrintStatus(st, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
