package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("parses sync overrides", func(t *testing.T) {
		t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		t.Setenv("SYNC_CHANNELS", "C123 , C456 ,,")
		t.Setenv("SYNC_PAGE_SIZE", "50")
		t.Setenv("SYNC_INCLUDE_FILES", "false")

		cfg, err := Load()
		require.NoError(t, err)

		require.Equal(t, []string{"C123", "C456"}, cfg.SyncChannels)
		require.Equal(t, 50, cfg.SyncPageSize)
		require.False(t, cfg.SyncIncludeFiles)
		require.True(t, cfg.SyncIncludeThreads)
	})

	t.Run("clamps out-of-range values", func(t *testing.T) {
		t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		t.Setenv("SYNC_PAGE_SIZE", "100000")
		t.Setenv("RETRY_ATTEMPTS", "-3")
		t.Setenv("SYNC_INTERVAL", "5s")

		cfg, err := Load()
		require.NoError(t, err)

		require.Equal(t, 1000, cfg.SyncPageSize)
		require.Equal(t, 0, cfg.RetryAttempts)
		require.Equal(t, time.Minute, cfg.SyncInterval, "intervals under a minute should clamp up")
	})

	t.Run("requires a token source", func(t *testing.T) {
		t.Setenv("SLACK_BOT_TOKEN", "")
		t.Setenv("SLACK_TOKEN_SECRET_ID", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "SLACK_BOT_TOKEN")
	})

	t.Run("accepts a secrets manager token source", func(t *testing.T) {
		t.Setenv("SLACK_BOT_TOKEN", "")
		t.Setenv("SLACK_TOKEN_SECRET_ID", "prod/slack/bot-token")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "prod/slack/bot-token", cfg.SlackTokenSecret)
	})

	t.Run("rejects malformed opensearch endpoint", func(t *testing.T) {
		t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		t.Setenv("OPENSEARCH_ENDPOINT", "not a url")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("validates auth modes", func(t *testing.T) {
		t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")

		t.Setenv("AUTH_MODE", "oidc")
		_, err := Load()
		require.Error(t, err, "oidc without issuer should fail")

		t.Setenv("OIDC_ISSUER", "https://issuer.test")
		t.Setenv("OIDC_AUDIENCE", "connector")
		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "oidc", cfg.AuthMode)

		t.Setenv("AUTH_MODE", "basic")
		_, err = Load()
		require.Error(t, err, "unknown auth mode should fail")
	})
}
