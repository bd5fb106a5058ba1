package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/olusolaa/connector/internal/checkpoint"
	"github.com/olusolaa/connector/internal/config"
	"github.com/olusolaa/connector/internal/eventstore"
	"github.com/olusolaa/connector/internal/extract"
	"github.com/olusolaa/connector/internal/opensearch"
	"github.com/olusolaa/connector/internal/secrets"
	"github.com/olusolaa/connector/internal/sink"
	"github.com/olusolaa/connector/internal/slackapi"
	"github.com/olusolaa/connector/internal/syncer"
)

// loadConfig loads .env (best effort) and resolves the environment config.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
	return config.Load()
}

// buildSlackClient resolves the bot token and wraps the Slack API with the
// configured rate limit and retry policy.
func buildSlackClient(ctx context.Context, cfg *config.Config) (*slackapi.Client, error) {
	token := cfg.SlackBotToken
	if token == "" {
		resolver, err := secrets.NewResolver(cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets resolver: %w", err)
		}
		token, err = resolver.BotToken(ctx, cfg.SlackTokenSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bot token: %w", err)
		}
	}

	limiter := rate.NewLimiter(
		rate.Every(time.Minute/time.Duration(cfg.SlackRatePerMinute)),
		cfg.SlackRateBurst,
	)

	return slackapi.New(
		slack.New(token),
		slackapi.WithRateLimiter(limiter),
		slackapi.WithMaxRetries(cfg.RetryAttempts),
		slackapi.WithBackoffBase(cfg.RetryBackoffBase),
	), nil
}

// buildStores opens the SQLite event and checkpoint stores sharing one file.
// Without a database path the checkpoint store is in-memory and events are
// not persisted locally.
func buildStores(cfg *config.Config) (*eventstore.Store, checkpoint.Store, func(), error) {
	if cfg.DatabasePath == "" {
		return nil, checkpoint.NewMemoryStore(), func() {}, nil
	}

	events, err := eventstore.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open event store: %w", err)
	}

	checkpoints, err := checkpoint.NewSQLiteStoreWithDB(events.DB())
	if err != nil {
		_ = events.Close()
		return nil, nil, nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	cleanup := func() { _ = events.Close() }
	return events, checkpoints, cleanup, nil
}

// buildSinks assembles the configured delivery sinks into one fanout.
// Returns nil when no sink is configured.
func buildSinks(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	var sinks []sink.Sink

	if cfg.ExportDir != "" {
		jsonl, err := sink.NewJSONLSink(cfg.ExportDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, jsonl)
	}

	if cfg.S3Bucket != "" {
		s3Sink, err := sink.NewS3Sink(cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}

	if cfg.OpenSearchEndpoint != "" {
		region := cfg.OpenSearchRegion
		if region == "" {
			region = cfg.AWSRegion
		}
		client, err := opensearch.NewClient(&opensearch.Config{
			Endpoint:       cfg.OpenSearchEndpoint,
			Region:         region,
			RateLimit:      cfg.OpenSearchRate,
			RateBurst:      cfg.OpenSearchBurst,
			RequestTimeout: cfg.OpenSearchTimeout,
		})
		if err != nil {
			return nil, err
		}
		indexer := opensearch.NewIndexer(client, cfg.OpenSearchIndex)
		if err := indexer.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewOpenSearchSink(indexer))
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return sink.NewFanout(sinks...), nil
}

func loadRules(cfg *config.Config) (*extract.Rules, error) {
	if cfg.FilterRulesPath == "" {
		return extract.DefaultRules(), nil
	}
	return extract.LoadRules(cfg.FilterRulesPath)
}

// buildSyncer wires the full pipeline from config.
func buildSyncer(ctx context.Context, cfg *config.Config, logger *log.Logger) (*syncer.Service, *eventstore.Store, checkpoint.Store, func(), error) {
	client, err := buildSlackClient(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	events, checkpoints, cleanup, err := buildStores(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	out, err := buildSinks(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	rules, err := loadRules(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	opts := syncer.Options{
		Channels:       cfg.SyncChannels,
		PageSize:       cfg.SyncPageSize,
		IncludeThreads: cfg.SyncIncludeThreads,
		IncludeFiles:   cfg.SyncIncludeFiles,
		IncludeMembers: cfg.SyncIncludeMembers,
	}

	var store syncer.EventStore
	if events != nil {
		store = events
	}

	svc := syncer.New(client, checkpoints, store, out, rules, opts, logger)
	return svc, events, checkpoints, cleanup, nil
}
