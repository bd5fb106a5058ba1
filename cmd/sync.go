package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	syncChannels string
	syncTimeout  time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass over the configured Slack workspace",
	Long: `
The sync command performs a single extraction pass: channels, users,
messages (with threads), channel membership and files, resuming from the
stored checkpoints. Normalized events go to the local store and any
configured sinks, and a run report is printed when the pass finishes.

Example:
  connector sync                        # Sync everything the bot can see
  connector sync --channels C01,C02     # Restrict to specific channels
`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncChannels, "channels", "c", "", "Comma separated channel IDs to sync (overrides SYNC_CHANNELS)")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", time.Hour, "Abort the run after this duration")
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "[sync] ", log.LstdFlags)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if syncChannels != "" {
		cfg.SyncChannels = nil
		for _, part := range strings.Split(syncChannels, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cfg.SyncChannels = append(cfg.SyncChannels, trimmed)
			}
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()

	svc, _, _, cleanup, err := buildSyncer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := svc.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	report, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render run report: %w", err)
	}
	fmt.Println(string(report))

	if len(run.Errors) > 0 {
		return fmt.Errorf("sync finished with %d errors", len(run.Errors))
	}
	return nil
}
