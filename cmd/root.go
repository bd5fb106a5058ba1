package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "connector",
	Short: "Slack connector for business process intelligence",
	Long: `connector extracts messages, threads, reactions, files and membership
from Slack workspaces via the Web API, normalizes them into a generic
event envelope and delivers them to local, S3 and OpenSearch sinks.

Syncs are incremental: pagination cursors and high-water timestamps are
checkpointed so interrupted or repeated runs never re-ingest history.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(exportCmd)
}
