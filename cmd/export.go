package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/olusolaa/connector/internal/eventstore"
	"github.com/olusolaa/connector/internal/sink"
)

var (
	exportDir   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored events to JSONL files",
	Long: `
Export the most recent normalized events from the local store into
date-stamped JSONL files. Useful for handing a snapshot to downstream
batch jobs without re-reading Slack.
`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "directory", "d", "./export", "Directory to write JSONL files into")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "Maximum number of events to export")
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "[export] ", log.LstdFlags)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DatabasePath == "" {
		return fmt.Errorf("CONNECTOR_DB_PATH must be set to export stored events")
	}

	store, err := eventstore.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	events, err := store.Recent(ctx, exportLimit)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	if len(events) == 0 {
		logger.Println("No events to export")
		return nil
	}

	out, err := sink.NewJSONLSink(exportDir)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if err := out.Write(ctx, events); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	logger.Printf("Exported %d events to %s", len(events), exportDir)
	return nil
}
