package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagmirror/flagmirror/internal/cli"
	"github.com/flagmirror/flagmirror/internal/client"
)

var flagCmd = &cobra.Command{
	Use:   "flag",
	Short: "Evaluate the demo flag",
	Long: `Evaluate the configured flag under this CLI session's context and
show the resolved value with its reason.

Examples:
  flagmirror flag
  flagmirror flag --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, sessionKey)

		res, err := c.GetFlag(context.Background())
		if err != nil {
			return fmt.Errorf("failed to evaluate flag: %w", err)
		}

		if !quiet {
			return cli.PrintFlag(res, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flagCmd)
}
