package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/flagmirror/flagmirror/internal/flagcache"
	"github.com/flagmirror/flagmirror/internal/logging"
)

var (
	seedRedisURL string
	seedPrefix   string
	seedFlagKey  string
	seedMessage  string
	seedOff      bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a demo flag document straight into the cache",
	Long: `Write a minimal flag document into the Redis cache, bypassing the
delivery relay. Useful for local demos and development when no relay is
running.

Examples:
  flagmirror seed --message "Hello from Redis!"
  flagmirror seed --flag-key user-message --off`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := redis.ParseURL(seedRedisURL)
		if err != nil {
			return fmt.Errorf("invalid Redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fallthroughVar := 0
		offVar := 1
		doc := flagcache.FlagDoc{
			Key:          seedFlagKey,
			On:           !seedOff,
			Salt:         strings.ReplaceAll(uuid.NewString(), "-", ""),
			Variations:   []any{seedMessage, "Hello from Go!"},
			Fallthrough:  flagcache.VariationOrRollout{Variation: &fallthroughVar},
			OffVariation: &offVar,
			Version:      1,
		}

		cache := flagcache.NewRedisCache(rdb, seedPrefix, logging.Nop())
		if err := cache.PutFlag(ctx, doc); err != nil {
			return fmt.Errorf("failed to write flag: %w", err)
		}

		if !quiet {
			fmt.Printf("seeded flag %q (on=%t) with message %q\n", seedFlagKey, doc.On, seedMessage)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedRedisURL, "redis-url", "redis://localhost:6379/0", "Redis connection URL")
	seedCmd.Flags().StringVar(&seedPrefix, "prefix", "flagmirror", "Cache key prefix")
	seedCmd.Flags().StringVar(&seedFlagKey, "flag-key", "user-message", "Flag key to write")
	seedCmd.Flags().StringVar(&seedMessage, "message", "Hello from the cache!", "Message served as variation 0")
	seedCmd.Flags().BoolVar(&seedOff, "off", false, "Seed the flag in the off state")
	rootCmd.AddCommand(seedCmd)
}
