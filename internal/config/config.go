package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	env "github.com/netflix/go-env"
)

// Config holds all connector settings resolved from environment variables.
type Config struct {
	// Slack credentials. The bot token can be supplied directly or looked up
	// from AWS Secrets Manager when SlackTokenSecret is set.
	SlackBotToken    string `env:"SLACK_BOT_TOKEN"`
	SlackTokenSecret string `env:"SLACK_TOKEN_SECRET_ID"`
	AWSRegion        string `env:"AWS_REGION,default=us-east-1"`

	// Extraction behaviour.
	SyncChannelsStr    string        `env:"SYNC_CHANNELS"` // comma separated channel IDs, empty = all
	SyncChannels       []string
	SyncPageSize       int           `env:"SYNC_PAGE_SIZE,default=200"`
	SyncIncludeThreads bool          `env:"SYNC_INCLUDE_THREADS,default=true"`
	SyncIncludeFiles   bool          `env:"SYNC_INCLUDE_FILES,default=true"`
	SyncIncludeMembers bool          `env:"SYNC_INCLUDE_MEMBERS,default=true"`
	SyncInterval       time.Duration `env:"SYNC_INTERVAL,default=30m"`
	FilterRulesPath    string        `env:"FILTER_RULES_PATH"`

	// Slack API pacing.
	SlackRatePerMinute int           `env:"SLACK_RATE_PER_MINUTE,default=50"`
	SlackRateBurst     int           `env:"SLACK_RATE_BURST,default=5"`
	RetryAttempts      int           `env:"RETRY_ATTEMPTS,default=3"`
	RetryBackoffBase   time.Duration `env:"RETRY_BACKOFF_BASE,default=1s"`

	// Local persistence for checkpoints and normalized events.
	DatabasePath string `env:"CONNECTOR_DB_PATH"`

	// Sinks.
	ExportDir          string        `env:"EXPORT_DIR"`
	S3Bucket           string        `env:"S3_BUCKET"`
	S3Prefix           string        `env:"S3_PREFIX,default=events"`
	OpenSearchEndpoint string        `env:"OPENSEARCH_ENDPOINT"`
	OpenSearchIndex    string        `env:"OPENSEARCH_INDEX,default=connector-events"`
	OpenSearchRegion   string        `env:"OPENSEARCH_REGION"`
	OpenSearchRate     float64       `env:"OPENSEARCH_RATE_LIMIT,default=10"`
	OpenSearchBurst    int           `env:"OPENSEARCH_RATE_BURST,default=20"`
	OpenSearchTimeout  time.Duration `env:"OPENSEARCH_REQUEST_TIMEOUT,default=30s"`

	// Admin API server.
	ServerHost            string        `env:"SERVER_HOST,default=localhost"`
	ServerPort            int           `env:"SERVER_PORT,default=8080"`
	ServerReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=30s"`
	ServerWriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ServerIdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT,default=120s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=30s"`

	// API authentication: "none", "oidc" or "secret".
	AuthMode         string `env:"AUTH_MODE,default=none"`
	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCAudience     string `env:"OIDC_AUDIENCE"`
	AuthSharedSecret string `env:"AUTH_SHARED_SECRET"`

	// OpenTelemetry.
	OTelEnabled              bool    `env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `env:"OTEL_SERVICE_NAME,default=slack-connector"`
	OTelExporterOTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string  `env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string  `env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.SyncChannelsStr != "" {
		parts := strings.Split(cfg.SyncChannelsStr, ",")
		cfg.SyncChannels = make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.SyncChannels = append(cfg.SyncChannels, trimmed)
			}
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks configuration values and adjusts them to safe ranges.
func validate(cfg *Config) error {
	if cfg.SlackBotToken == "" && cfg.SlackTokenSecret == "" {
		return fmt.Errorf("either SLACK_BOT_TOKEN or SLACK_TOKEN_SECRET_ID must be set")
	}

	if cfg.SyncPageSize < 1 {
		cfg.SyncPageSize = 1
	}
	if cfg.SyncPageSize > 1000 {
		cfg.SyncPageSize = 1000
	}

	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryAttempts > 10 {
		cfg.RetryAttempts = 10
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = time.Second
	}

	if cfg.SlackRatePerMinute <= 0 {
		cfg.SlackRatePerMinute = 50
	}
	if cfg.SlackRateBurst <= 0 {
		cfg.SlackRateBurst = 1
	}

	if cfg.SyncInterval < time.Minute {
		cfg.SyncInterval = time.Minute
	}

	if cfg.OpenSearchEndpoint != "" {
		if err := validateOpenSearch(cfg); err != nil {
			return fmt.Errorf("OpenSearch configuration validation failed: %w", err)
		}
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("server configuration validation failed: %w", err)
	}

	return validateAuth(cfg)
}

func validateOpenSearch(cfg *Config) error {
	parsed, err := url.Parse(cfg.OpenSearchEndpoint)
	if err != nil {
		return fmt.Errorf("invalid OPENSEARCH_ENDPOINT URL format: %w", err)
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return fmt.Errorf("OPENSEARCH_ENDPOINT scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include a valid host")
	}

	if cfg.OpenSearchIndex == "" {
		return fmt.Errorf("OPENSEARCH_INDEX cannot be empty when OpenSearch is enabled")
	}
	if cfg.OpenSearchRate <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT must be greater than 0")
	}
	if cfg.OpenSearchBurst <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_BURST must be greater than 0")
	}
	if cfg.OpenSearchTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_REQUEST_TIMEOUT must be greater than 0")
	}
	return nil
}

func validateServer(cfg *Config) error {
	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if cfg.ServerHost == "" {
		return fmt.Errorf("SERVER_HOST cannot be empty")
	}
	if cfg.ServerReadTimeout <= 0 || cfg.ServerWriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be greater than 0")
	}
	if cfg.ServerShutdownTimeout <= 0 {
		cfg.ServerShutdownTimeout = 30 * time.Second
	}
	return nil
}

func validateAuth(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.AuthMode)) {
	case "", "none":
		cfg.AuthMode = "none"
	case "oidc":
		cfg.AuthMode = "oidc"
		if cfg.OIDCIssuer == "" {
			return fmt.Errorf("OIDC_ISSUER is required when AUTH_MODE=oidc")
		}
		if cfg.OIDCAudience == "" {
			return fmt.Errorf("OIDC_AUDIENCE is required when AUTH_MODE=oidc")
		}
	case "secret":
		cfg.AuthMode = "secret"
		if cfg.AuthSharedSecret == "" {
			return fmt.Errorf("AUTH_SHARED_SECRET is required when AUTH_MODE=secret")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", cfg.AuthMode)
	}
	return nil
}
