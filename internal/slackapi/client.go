package slackapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// WebAPI defines the subset of the Slack Web API used by the connector.
// *slack.Client satisfies this interface.
type WebAPI interface {
	GetConversations(params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationInfo(input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetConversationHistory(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationReplies(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetUsers(options ...slack.GetUsersOption) ([]slack.User, error)
	GetUserInfo(userID string) (*slack.User, error)
	GetUsersInConversation(params *slack.GetUsersInConversationParameters) ([]string, string, error)
	GetFiles(params slack.GetFilesParameters) ([]slack.File, *slack.Paging, error)
	GetPermalink(params *slack.PermalinkParameters) (string, error)
}

// Client wraps the Slack Web API with token-bucket rate limiting and
// exponential-backoff retries that honor Slack's Retry-After hints.
type Client struct {
	api         WebAPI
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
	logger      *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimiter overrides the default rate limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMaxRetries overrides the default retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoffBase overrides the initial backoff duration for retries.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Client with sensible defaults around the given Web API.
func New(api WebAPI, opts ...Option) *Client {
	client := &Client{
		api:         api,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/50), 5),
		maxRetries:  3,
		backoffBase: time.Second,
		logger:      log.New(os.Stdout, "slack-api ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Conversations calls conversations.list once and returns the page plus next cursor.
func (c *Client) Conversations(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	var (
		channels []slack.Channel
		cursor   string
	)
	err := c.withRetry(ctx, "conversations.list", func() error {
		var err error
		channels, cursor, err = c.api.GetConversations(params)
		return err
	})
	return channels, cursor, err
}

// ConversationInfo calls conversations.info for a single channel.
func (c *Client) ConversationInfo(ctx context.Context, channelID string) (*slack.Channel, error) {
	var ch *slack.Channel
	err := c.withRetry(ctx, "conversations.info", func() error {
		var err error
		ch, err = c.api.GetConversationInfo(&slack.GetConversationInfoInput{ChannelID: channelID})
		return err
	})
	return ch, err
}

// ConversationHistory calls conversations.history once.
func (c *Client) ConversationHistory(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	var resp *slack.GetConversationHistoryResponse
	err := c.withRetry(ctx, "conversations.history", func() error {
		var err error
		resp, err = c.api.GetConversationHistory(params)
		return err
	})
	return resp, err
}

// ConversationReplies calls conversations.replies once.
func (c *Client) ConversationReplies(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	var (
		messages []slack.Message
		hasMore  bool
		cursor   string
	)
	err := c.withRetry(ctx, "conversations.replies", func() error {
		var err error
		messages, hasMore, cursor, err = c.api.GetConversationReplies(params)
		return err
	})
	return messages, hasMore, cursor, err
}

// Users calls users.list and returns the full member roster.
func (c *Client) Users(ctx context.Context) ([]slack.User, error) {
	var users []slack.User
	err := c.withRetry(ctx, "users.list", func() error {
		var err error
		users, err = c.api.GetUsers()
		return err
	})
	return users, err
}

// UserInfo calls users.info for a single user.
func (c *Client) UserInfo(ctx context.Context, userID string) (*slack.User, error) {
	var user *slack.User
	err := c.withRetry(ctx, "users.info", func() error {
		var err error
		user, err = c.api.GetUserInfo(userID)
		return err
	})
	return user, err
}

// ConversationMembers calls conversations.members once and returns member IDs plus next cursor.
func (c *Client) ConversationMembers(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error) {
	var (
		members []string
		cursor  string
	)
	err := c.withRetry(ctx, "conversations.members", func() error {
		var err error
		members, cursor, err = c.api.GetUsersInConversation(params)
		return err
	})
	return members, cursor, err
}

// Files calls files.list once. Files uses classic page numbering rather than cursors.
func (c *Client) Files(ctx context.Context, params slack.GetFilesParameters) ([]slack.File, *slack.Paging, error) {
	var (
		files  []slack.File
		paging *slack.Paging
	)
	err := c.withRetry(ctx, "files.list", func() error {
		var err error
		files, paging, err = c.api.GetFiles(params)
		return err
	})
	return files, paging, err
}

// Permalink calls chat.getPermalink for a message.
func (c *Client) Permalink(ctx context.Context, channelID, timestamp string) (string, error) {
	var permalink string
	err := c.withRetry(ctx, "chat.getPermalink", func() error {
		var err error
		permalink, err = c.api.GetPermalink(&slack.PermalinkParameters{
			Channel: channelID,
			Ts:      timestamp,
		})
		return err
	})
	return permalink, err
}

func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	attempts := c.maxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == attempts-1 {
			break
		}

		wait := c.backoffBase * time.Duration(1<<attempt)
		if rle, ok := err.(*slack.RateLimitedError); ok {
			// RetryAfter is already a time.Duration.
			if rle.RetryAfter > wait {
				wait = rle.RetryAfter
			}
		}
		c.logger.Printf("retry op=%s attempt=%d wait=%v err=%v", operation, attempt+1, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Temporary() {
		return true
	}
	if _, ok := err.(*slack.RateLimitedError); ok {
		return true
	}
	var statusErr interface{ StatusCode() int }
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode() >= 500
	}
	return false
}
