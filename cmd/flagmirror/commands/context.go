package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagmirror/flagmirror/internal/cli"
	"github.com/flagmirror/flagmirror/internal/client"
)

var (
	ctxType     string
	ctxEmail    string
	ctxName     string
	ctxLocation string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage the session's evaluation context",
}

var contextGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current evaluation context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, sessionKey)

		res, err := c.GetContext(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get context: %w", err)
		}

		if !quiet {
			return cli.PrintContext(res, cli.OutputFormat(format))
		}
		return nil
	},
}

var contextSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the evaluation context",
	Long: `Replace this session's evaluation context.

An anonymous context gets a synthesized identity; a custom context is
keyed by email so the same email always evaluates as the same identity.

Examples:
  flagmirror context set --type anonymous --location Berlin
  flagmirror context set --type custom --email dev@example.com --name "Dev User"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, sessionKey)

		res, err := c.SetContext(context.Background(), client.SetContextParams{
			Type:     ctxType,
			Email:    ctxEmail,
			Name:     ctxName,
			Location: ctxLocation,
		})
		if err != nil {
			return fmt.Errorf("failed to set context: %w", err)
		}

		if !quiet {
			return cli.PrintContext(res, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	contextSetCmd.Flags().StringVar(&ctxType, "type", "anonymous", "Context type (anonymous, custom)")
	contextSetCmd.Flags().StringVar(&ctxEmail, "email", "", "Email (required for custom contexts)")
	contextSetCmd.Flags().StringVar(&ctxName, "name", "", "Display name")
	contextSetCmd.Flags().StringVar(&ctxLocation, "location", "", "Location attribute")

	contextCmd.AddCommand(contextGetCmd)
	contextCmd.AddCommand(contextSetCmd)
	rootCmd.AddCommand(contextCmd)
}
