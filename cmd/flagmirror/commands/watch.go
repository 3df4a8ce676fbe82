package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flagmirror/flagmirror/internal/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the live flag value stream",
	Long: `Connect to the SSE endpoint and print every value update as it
arrives. Runs until interrupted or until the server closes the stream.

Examples:
  flagmirror watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, sessionKey)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		err := c.Stream(ctx, func(payload []byte) {
			fmt.Println(string(payload))
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("stream failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
