package extract

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/olusolaa/connector/internal/slackapi"
)

// MembersExtractor pages through conversations.members for a channel and maps
// member IDs into Membership records.
type MembersExtractor struct {
	client   *slackapi.Client
	logger   *log.Logger
	pageSize int
}

// NewMembersExtractor constructs a MembersExtractor.
func NewMembersExtractor(client *slackapi.Client, pageSize int, logger *log.Logger) *MembersExtractor {
	if logger == nil {
		logger = log.Default()
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &MembersExtractor{client: client, logger: logger, pageSize: pageSize}
}

// Extract walks the channel membership page by page, calling emit with each
// batch and the cursor needed to resume after it.
func (e *MembersExtractor) Extract(ctx context.Context, channel Channel, resume Resume, emit func(batch []Membership, next Resume) error) error {
	cursor := resume.Cursor

	for {
		params := &slack.GetUsersInConversationParameters{
			ChannelID: channel.ID,
			Cursor:    cursor,
			Limit:     e.pageSize,
		}
		members, nextCursor, err := e.client.ConversationMembers(ctx, params)
		if err != nil {
			return fmt.Errorf("members channel=%s: %w", channel.ID, err)
		}

		batch := make([]Membership, 0, len(members))
		for _, userID := range members {
			batch = append(batch, Membership{
				ChannelID:   channel.ID,
				ChannelName: channel.Name,
				UserID:      userID,
			})
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
