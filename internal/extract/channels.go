package extract

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/olusolaa/connector/internal/slackapi"
)

// ChannelsExtractor pages through conversations.list and maps conversations
// into flat Channel records, applying the channel filter rules.
type ChannelsExtractor struct {
	client   *slackapi.Client
	rules    *Rules
	logger   *log.Logger
	pageSize int
}

// NewChannelsExtractor constructs a ChannelsExtractor.
func NewChannelsExtractor(client *slackapi.Client, rules *Rules, pageSize int, logger *log.Logger) *ChannelsExtractor {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = log.Default()
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &ChannelsExtractor{client: client, rules: rules, logger: logger, pageSize: pageSize}
}

// Extract lists public and private channels page by page, calling emit with
// each mapped batch and the cursor needed to resume after it.
func (e *ChannelsExtractor) Extract(ctx context.Context, resume Resume, emit func(batch []Channel, next Resume) error) error {
	cursor := resume.Cursor

	for {
		params := &slack.GetConversationsParameters{
			Cursor:          cursor,
			ExcludeArchived: e.rules.ExcludeArchived,
			Limit:           e.pageSize,
			Types:           []string{"public_channel", "private_channel"},
		}
		channels, nextCursor, err := e.client.Conversations(ctx, params)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}

		batch := make([]Channel, 0, len(channels))
		for _, ch := range channels {
			mapped := mapChannel(ch)
			if !e.rules.AllowChannel(mapped.Name, mapped.IsArchived) {
				continue
			}
			batch = append(batch, mapped)
		}

		next := Resume{Cursor: nextCursor}
		if err := emit(batch, next); err != nil {
			return err
		}

		if nextCursor == "" {
			return nil
		}
		cursor = nextCursor
	}
}

// Resolve fetches channel info for an explicit list of channel IDs, used when
// the sync is restricted to configured channels.
func (e *ChannelsExtractor) Resolve(ctx context.Context, channelIDs []string) ([]Channel, error) {
	channels := make([]Channel, 0, len(channelIDs))
	for _, id := range channelIDs {
		ch, err := e.client.ConversationInfo(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get channel info %s: %w", id, err)
		}
		channels = append(channels, mapChannel(*ch))
	}
	return channels, nil
}

func mapChannel(ch slack.Channel) Channel {
	name := ch.NameNormalized
	if name == "" {
		name = ch.Name
	}
	return Channel{
		ID:         ch.ID,
		Name:       name,
		Topic:      ch.Topic.Value,
		Purpose:    ch.Purpose.Value,
		Creator:    ch.Creator,
		CreatedAt:  ch.Created.Time().UTC(),
		IsPrivate:  ch.IsPrivate,
		IsArchived: ch.IsArchived,
		NumMembers: ch.NumMembers,
	}
}
