package extract

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/slack-go/slack"

	"github.com/olusolaa/connector/internal/slackapi"
)

// Resume carries pagination state so an extraction can continue where a
// previous sync left off. Cursor resumes an interrupted page loop; Oldest
// bounds incremental syncs to messages newer than the last checkpoint.
type Resume struct {
	Cursor string
	Oldest string
}

// MessagesExtractor pages through conversations.history for a channel and maps
// raw Slack messages into flat Message records. Thread replies are fetched via
// conversations.replies when enabled.
type MessagesExtractor struct {
	client   *slackapi.Client
	rules    *Rules
	logger   *log.Logger
	pageSize int
	threads  bool

	userCache   map[string]*slack.User
	userCacheMu sync.RWMutex
}

// NewMessagesExtractor constructs a MessagesExtractor.
func NewMessagesExtractor(client *slackapi.Client, rules *Rules, pageSize int, includeThreads bool, logger *log.Logger) *MessagesExtractor {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = log.Default()
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &MessagesExtractor{
		client:    client,
		rules:     rules,
		logger:    logger,
		pageSize:  pageSize,
		threads:   includeThreads,
		userCache: make(map[string]*slack.User),
	}
}

// Extract walks the channel history page by page, calling emit with each
// mapped batch and the resume state that covers everything emitted so far.
// Items that fail to map are logged and skipped; the returned count reports
// how many were dropped.
func (e *MessagesExtractor) Extract(ctx context.Context, channel Channel, resume Resume, emit func(batch []Message, next Resume) error) (int, error) {
	var skipped int
	cursor := resume.Cursor

	for {
		params := &slack.GetConversationHistoryParameters{
			ChannelID:          channel.ID,
			Cursor:             cursor,
			Limit:              e.pageSize,
			Oldest:             resume.Oldest,
			IncludeAllMetadata: true,
		}

		resp, err := e.client.ConversationHistory(ctx, params)
		if err != nil {
			return skipped, fmt.Errorf("history channel=%s: %w", channel.ID, err)
		}

		batch := make([]Message, 0, len(resp.Messages))
		for _, msg := range resp.Messages {
			if !e.rules.AllowMessage(msg) {
				continue
			}
			mapped, err := e.buildMessage(ctx, channel, msg, false)
			if err != nil {
				skipped++
				e.logger.Printf("warn: skipping message channel=%s ts=%s err=%v", channel.ID, msg.Timestamp, err)
				continue
			}
			batch = append(batch, mapped)

			if e.threads && msg.ThreadTimestamp != "" && msg.ThreadTimestamp == msg.Timestamp {
				replies, threadSkipped, err := e.extractThread(ctx, channel, msg)
				skipped += threadSkipped
				if err != nil {
					return skipped, err
				}
				batch = append(batch, replies...)
			}
		}

		next := Resume{Oldest: resume.Oldest}
		if resp.HasMore && resp.ResponseMetaData.NextCursor != "" {
			next.Cursor = resp.ResponseMetaData.NextCursor
		}
		if err := emit(batch, next); err != nil {
			return skipped, err
		}

		if next.Cursor == "" {
			return skipped, nil
		}
		if len(resp.Messages) == 0 {
			// No progress, avoid a potential infinite loop.
			return skipped, nil
		}
		cursor = next.Cursor
	}
}

func (e *MessagesExtractor) extractThread(ctx context.Context, channel Channel, parent slack.Message) ([]Message, int, error) {
	var (
		cursor  string
		result  []Message
		skipped int
	)

	for {
		params := &slack.GetConversationRepliesParameters{
			ChannelID:          channel.ID,
			Timestamp:          parent.ThreadTimestamp,
			Cursor:             cursor,
			IncludeAllMetadata: true,
		}
		messages, hasMore, next, err := e.client.ConversationReplies(ctx, params)
		if err != nil {
			return nil, skipped, fmt.Errorf("thread replies channel=%s ts=%s: %w", channel.ID, parent.ThreadTimestamp, err)
		}

		for _, msg := range messages {
			// Slack includes the parent message in replies; skip the duplicate.
			if msg.Timestamp == parent.Timestamp {
				continue
			}
			if !e.rules.AllowMessage(msg) {
				continue
			}
			mapped, err := e.buildMessage(ctx, channel, msg, true)
			if err != nil {
				skipped++
				e.logger.Printf("warn: skipping thread reply channel=%s ts=%s err=%v", channel.ID, msg.Timestamp, err)
				continue
			}
			result = append(result, mapped)
		}

		if !hasMore || next == "" {
			return result, skipped, nil
		}
		if len(messages) == 0 {
			// No progress, avoid a potential infinite loop.
			return result, skipped, nil
		}
		cursor = next
	}
}

func (e *MessagesExtractor) buildMessage(ctx context.Context, channel Channel, msg slack.Message, isThreadReply bool) (Message, error) {
	if msg.Timestamp == "" {
		return Message{}, fmt.Errorf("message has no timestamp")
	}

	userName := ""
	if msg.User != "" {
		user, err := e.resolveUser(ctx, msg.User)
		if err != nil {
			// Name enrichment is best effort; keep the bare user ID.
			e.logger.Printf("warn: user lookup failed user=%s err=%v", msg.User, err)
		} else if user != nil {
			userName = displayName(user)
		}
	}

	// conversations.history never returns permalinks, so resolve one via
	// chat.getPermalink. Best effort like the user lookup.
	permalink := msg.Permalink
	if permalink == "" {
		link, err := e.client.Permalink(ctx, channel.ID, msg.Timestamp)
		if err != nil {
			e.logger.Printf("warn: permalink lookup failed channel=%s ts=%s err=%v", channel.ID, msg.Timestamp, err)
		} else {
			permalink = link
		}
	}

	files := make([]FileRef, 0, len(msg.Files))
	for _, file := range msg.Files {
		files = append(files, FileRef{
			ID:         file.ID,
			Name:       file.Name,
			Title:      file.Title,
			Filetype:   file.Filetype,
			URLPrivate: file.URLPrivate,
			Permalink:  file.Permalink,
			Size:       file.Size,
		})
	}

	reactions := make([]Reaction, 0, len(msg.Reactions))
	for _, reaction := range msg.Reactions {
		reactions = append(reactions, Reaction{
			Name:  reaction.Name,
			Count: reaction.Count,
			Users: append([]string(nil), reaction.Users...),
		})
	}

	mapped := Message{
		ChannelID:       channel.ID,
		ChannelName:     channel.Name,
		UserID:          msg.User,
		UserName:        userName,
		Text:            msg.Text,
		Timestamp:       msg.Timestamp,
		ThreadTimestamp: msg.ThreadTimestamp,
		ParentUserID:    msg.ParentUserId,
		Permalink:       permalink,
		TeamID:          msg.Team,
		BotID:           msg.BotID,
		IsBot:           isBotMessage(msg),
		IsThreadReply:   isThreadReply,
		ReplyCount:      msg.ReplyCount,
		ReplyUsers:      append([]string(nil), msg.ReplyUsers...),
		Files:           files,
		Reactions:       reactions,
	}

	if msg.Edited != nil && msg.Edited.Timestamp != "" {
		if ts := ParseSlackTimestamp(msg.Edited.Timestamp); !ts.IsZero() {
			mapped.EditedAt = &ts
			mapped.EditedUserID = msg.Edited.User
		}
	}

	return mapped, nil
}

func (e *MessagesExtractor) resolveUser(ctx context.Context, userID string) (*slack.User, error) {
	e.userCacheMu.RLock()
	if user, ok := e.userCache[userID]; ok {
		e.userCacheMu.RUnlock()
		return user, nil
	}
	e.userCacheMu.RUnlock()

	user, err := e.client.UserInfo(ctx, userID)
	if err != nil {
		return nil, err
	}

	e.userCacheMu.Lock()
	e.userCache[userID] = user
	e.userCacheMu.Unlock()

	return user, nil
}

func displayName(u *slack.User) string {
	if u == nil {
		return ""
	}
	if u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}
