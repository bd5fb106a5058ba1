package event

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/olusolaa/connector/internal/extract"
)

// NormalizeMessage reshapes an extracted message into envelope events. A single
// message yields one message event plus one reaction event per reacting user
// and one file event per attachment, all with deterministic IDs so repeated
// syncs collapse into the same events.
func NormalizeMessage(m extract.Message) []Event {
	eventType := TypeMessagePosted
	if m.IsThreadReply {
		eventType = TypeMessageReplied
	}

	metadata := map[string]interface{}{
		"channel_id":   m.ChannelID,
		"channel_name": m.ChannelName,
		"team_id":      m.TeamID,
		"is_bot":       m.IsBot,
	}
	if m.ThreadTimestamp != "" {
		metadata["thread_ts"] = m.ThreadTimestamp
	}
	if m.ParentUserID != "" {
		metadata["parent_user_id"] = m.ParentUserID
	}
	if m.Permalink != "" {
		metadata["permalink"] = m.Permalink
	}
	if m.BotID != "" {
		metadata["bot_id"] = m.BotID
	}
	if m.ReplyCount > 0 {
		metadata["reply_count"] = m.ReplyCount
	}
	if m.EditedAt != nil {
		metadata["edited_at"] = m.EditedAt.UTC()
		metadata["edited_user_id"] = m.EditedUserID
	}

	occurredAt := m.EventTime()

	events := []Event{{
		ID:     MessageEventID(m.ChannelID, m.Timestamp),
		Source: SourceSlack,
		Type:   eventType,
		Actor:  Actor{ID: m.UserID, Name: m.UserName},
		Target: Target{
			ID:   m.ChannelID,
			Kind: "channel",
			Name: m.ChannelName,
		},
		Text:       NormalizeText(m.Text),
		OccurredAt: occurredAt,
		Metadata:   metadata,
	}}

	for _, reaction := range m.Reactions {
		for _, userID := range reaction.Users {
			events = append(events, Event{
				ID:     fmt.Sprintf("%s-reaction-%s-%s", MessageEventID(m.ChannelID, m.Timestamp), reaction.Name, userID),
				Source: SourceSlack,
				Type:   TypeReactionAdded,
				Actor:  Actor{ID: userID},
				Target: Target{
					ID:   MessageEventID(m.ChannelID, m.Timestamp),
					Kind: "message",
				},
				OccurredAt: occurredAt,
				Metadata: map[string]interface{}{
					"channel_id": m.ChannelID,
					"reaction":   reaction.Name,
					"count":      reaction.Count,
				},
			})
		}
	}

	for _, file := range m.Files {
		events = append(events, Event{
			ID:     fmt.Sprintf("slack-file-%s", file.ID),
			Source: SourceSlack,
			Type:   TypeFileShared,
			Actor:  Actor{ID: m.UserID, Name: m.UserName},
			Target: Target{
				ID:   file.ID,
				Kind: "file",
				Name: file.Name,
			},
			OccurredAt: occurredAt,
			Metadata: map[string]interface{}{
				"channel_id": m.ChannelID,
				"filetype":   file.Filetype,
				"size":       file.Size,
				"title":      file.Title,
				"permalink":  file.Permalink,
			},
		})
	}

	return events
}

// NormalizeChannel reshapes an extracted channel into a channel.observed event.
func NormalizeChannel(ch extract.Channel) Event {
	return Event{
		ID:     fmt.Sprintf("slack-channel-%s", ch.ID),
		Source: SourceSlack,
		Type:   TypeChannelObserved,
		Actor:  Actor{ID: ch.Creator},
		Target: Target{
			ID:   ch.ID,
			Kind: "channel",
			Name: ch.Name,
		},
		OccurredAt: ch.CreatedAt,
		Metadata: map[string]interface{}{
			"topic":       NormalizeText(ch.Topic),
			"purpose":     NormalizeText(ch.Purpose),
			"is_private":  ch.IsPrivate,
			"is_archived": ch.IsArchived,
			"num_members": ch.NumMembers,
		},
	}
}

// NormalizeUser reshapes an extracted user into a user.observed event.
func NormalizeUser(u extract.User) Event {
	name := u.DisplayName
	if name == "" {
		name = u.RealName
	}
	if name == "" {
		name = u.Name
	}
	return Event{
		ID:     fmt.Sprintf("slack-user-%s", u.ID),
		Source: SourceSlack,
		Type:   TypeUserObserved,
		Actor:  Actor{ID: u.ID, Name: name},
		Target: Target{
			ID:   u.ID,
			Kind: "user",
			Name: name,
		},
		OccurredAt: u.UpdatedAt,
		Metadata: map[string]interface{}{
			"team_id":  u.TeamID,
			"email":    u.Email,
			"is_bot":   u.IsBot,
			"is_admin": u.IsAdmin,
			"deleted":  u.Deleted,
		},
	}
}

// NormalizeMembership reshapes a channel membership into a member.joined event.
func NormalizeMembership(m extract.Membership) Event {
	return Event{
		ID:     fmt.Sprintf("slack-member-%s-%s", m.ChannelID, m.UserID),
		Source: SourceSlack,
		Type:   TypeMemberJoined,
		Actor:  Actor{ID: m.UserID},
		Target: Target{
			ID:   m.ChannelID,
			Kind: "channel",
			Name: m.ChannelName,
		},
		Metadata: map[string]interface{}{
			"channel_id": m.ChannelID,
		},
	}
}

// NormalizeFile reshapes an extracted file listing entry into a file.shared event.
func NormalizeFile(f extract.File) Event {
	return Event{
		ID:     fmt.Sprintf("slack-file-%s", f.ID),
		Source: SourceSlack,
		Type:   TypeFileShared,
		Actor:  Actor{ID: f.UserID},
		Target: Target{
			ID:   f.ID,
			Kind: "file",
			Name: f.Name,
		},
		OccurredAt: f.CreatedAt,
		Metadata: map[string]interface{}{
			"filetype":  f.Filetype,
			"mimetype":  f.Mimetype,
			"size":      f.Size,
			"title":     f.Title,
			"permalink": f.Permalink,
			"channels":  f.Channels,
		},
	}
}

// NormalizeText applies Unicode NFC normalization so downstream consumers see
// a canonical representation regardless of how the text was composed.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}
