package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/connector/internal/extract"
)

func TestNormalizeMessage_Envelope(t *testing.T) {
	msg := extract.Message{
		ChannelID:   "C1",
		ChannelName: "general",
		UserID:      "U1",
		UserName:    "Ada",
		Text:        "deployed the new billing flow",
		Timestamp:   "1700000000.000100",
		TeamID:      "T1",
		Permalink:   "https://example.slack.com/archives/C1/p1700000000000100",
	}

	events := NormalizeMessage(msg)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "slack-C1-1700000000.000100", ev.ID)
	assert.Equal(t, SourceSlack, ev.Source)
	assert.Equal(t, TypeMessagePosted, ev.Type)
	assert.Equal(t, Actor{ID: "U1", Name: "Ada"}, ev.Actor)
	assert.Equal(t, Target{ID: "C1", Kind: "channel", Name: "general"}, ev.Target)
	assert.Equal(t, time.Unix(1700000000, 100000).UTC(), ev.OccurredAt)
	assert.Equal(t, "https://example.slack.com/archives/C1/p1700000000000100", ev.Metadata["permalink"])
}

func TestNormalizeMessage_ThreadReply(t *testing.T) {
	msg := extract.Message{
		ChannelID:       "C1",
		UserID:          "U2",
		Text:            "looks good",
		Timestamp:       "1700000001.000100",
		ThreadTimestamp: "1700000000.000100",
		IsThreadReply:   true,
	}

	events := NormalizeMessage(msg)
	require.Len(t, events, 1)
	assert.Equal(t, TypeMessageReplied, events[0].Type)
	assert.Equal(t, "1700000000.000100", events[0].Metadata["thread_ts"])
}

func TestNormalizeMessage_ReactionsAndFiles(t *testing.T) {
	msg := extract.Message{
		ChannelID: "C1",
		UserID:    "U1",
		Text:      "shipping it",
		Timestamp: "1700000002.000100",
		Reactions: []extract.Reaction{
			{Name: "rocket", Count: 2, Users: []string{"U2", "U3"}},
		},
		Files: []extract.FileRef{
			{ID: "F1", Name: "release-notes.pdf", Filetype: "pdf", Size: 1024},
		},
	}

	events := NormalizeMessage(msg)
	require.Len(t, events, 4)

	reactions := events[1:3]
	assert.Equal(t, TypeReactionAdded, reactions[0].Type)
	assert.Equal(t, "U2", reactions[0].Actor.ID)
	assert.Equal(t, "slack-C1-1700000002.000100", reactions[0].Target.ID)
	assert.Equal(t, "message", reactions[0].Target.Kind)
	assert.NotEqual(t, reactions[0].ID, reactions[1].ID)

	fileEvent := events[3]
	assert.Equal(t, TypeFileShared, fileEvent.Type)
	assert.Equal(t, "slack-file-F1", fileEvent.ID)
	assert.Equal(t, "pdf", fileEvent.Metadata["filetype"])
}

func TestNormalizeMessage_DeterministicIDs(t *testing.T) {
	msg := extract.Message{ChannelID: "C1", UserID: "U1", Text: "x", Timestamp: "1700000003.000100"}

	first := NormalizeMessage(msg)
	second := NormalizeMessage(msg)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestNormalizeMembership(t *testing.T) {
	ev := NormalizeMembership(extract.Membership{ChannelID: "C1", ChannelName: "general", UserID: "U5"})
	assert.Equal(t, "slack-member-C1-U5", ev.ID)
	assert.Equal(t, TypeMemberJoined, ev.Type)
	assert.Equal(t, "U5", ev.Actor.ID)
	assert.Equal(t, "general", ev.Target.Name)
}

func TestNormalizeChannelAndUser(t *testing.T) {
	created := time.Unix(1690000000, 0).UTC()
	chEvent := NormalizeChannel(extract.Channel{
		ID: "C2", Name: "ops", Creator: "U9", CreatedAt: created, IsPrivate: true, NumMembers: 7,
	})
	assert.Equal(t, "slack-channel-C2", chEvent.ID)
	assert.Equal(t, TypeChannelObserved, chEvent.Type)
	assert.Equal(t, created, chEvent.OccurredAt)
	assert.Equal(t, true, chEvent.Metadata["is_private"])

	userEvent := NormalizeUser(extract.User{ID: "U9", Name: "grace", RealName: "Grace Hopper"})
	assert.Equal(t, "slack-user-U9", userEvent.ID)
	assert.Equal(t, "Grace Hopper", userEvent.Actor.Name)
}

func TestNormalizeText_NFC(t *testing.T) {
	// "e" followed by a combining acute accent folds into the composed rune.
	decomposed := "cafe\u0301"
	assert.Equal(t, "caf\u00e9", NormalizeText(decomposed))
	assert.Equal(t, "", NormalizeText(""))
}
