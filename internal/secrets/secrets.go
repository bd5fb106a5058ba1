package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver fetches the Slack bot token from AWS Secrets Manager so the token
// never has to live in process environment on long-running deployments.
type Resolver struct {
	client secretsAPI
}

// NewResolver creates a Secrets Manager client from the default credential chain.
func NewResolver(region string) (*Resolver, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &Resolver{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewResolverWithClient injects a pre-built client, used by tests.
func NewResolverWithClient(client secretsAPI) *Resolver {
	return &Resolver{client: client}
}

// BotToken resolves the secret and returns the Slack bot token it holds. The
// secret may be a plain string or a JSON object with a "bot_token" key.
func (r *Resolver) BotToken(ctx context.Context, secretID string) (string, error) {
	if secretID == "" {
		return "", fmt.Errorf("secret ID is required")
	}

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretID)
	}

	raw := strings.TrimSpace(*out.SecretString)
	if strings.HasPrefix(raw, "{") {
		var payload struct {
			BotToken string `json:"bot_token"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", fmt.Errorf("failed to parse secret %s as JSON: %w", secretID, err)
		}
		if payload.BotToken == "" {
			return "", fmt.Errorf("secret %s is missing bot_token", secretID)
		}
		return payload.BotToken, nil
	}

	return raw, nil
}
