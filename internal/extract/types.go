package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message is a flat record for one Slack message, enriched with channel and
// user names resolved during extraction.
type Message struct {
	ChannelID       string
	ChannelName     string
	UserID          string
	UserName        string
	Text            string
	Timestamp       string
	ThreadTimestamp string
	ParentUserID    string
	Permalink       string
	TeamID          string
	BotID           string
	IsBot           bool
	IsThreadReply   bool
	EditedAt        *time.Time
	EditedUserID    string
	ReplyCount      int
	ReplyUsers      []string
	Files           []FileRef
	Reactions       []Reaction
}

// Reaction represents a reaction applied to a Slack message.
type Reaction struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// FileRef captures metadata for a file attached to a message.
type FileRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Filetype   string `json:"filetype"`
	URLPrivate string `json:"url_private"`
	Permalink  string `json:"permalink"`
	Size       int    `json:"size"`
}

// Channel is a flat record for one Slack conversation.
type Channel struct {
	ID         string
	Name       string
	Topic      string
	Purpose    string
	Creator    string
	CreatedAt  time.Time
	IsPrivate  bool
	IsArchived bool
	NumMembers int
}

// User is a flat record for one workspace member.
type User struct {
	ID          string
	TeamID      string
	Name        string
	RealName    string
	DisplayName string
	Email       string
	IsBot       bool
	IsAdmin     bool
	Deleted     bool
	UpdatedAt   time.Time
}

// Membership records that a user belongs to a channel.
type Membership struct {
	ChannelID   string
	ChannelName string
	UserID      string
}

// File is a flat record for one uploaded file from files.list.
type File struct {
	ID         string
	Name       string
	Title      string
	Filetype   string
	Mimetype   string
	UserID     string
	Size       int
	URLPrivate string
	Permalink  string
	Channels   []string
	CreatedAt  time.Time
}

// EventTime converts the message timestamp into time.Time. Invalid timestamps
// return the zero time.
func (m Message) EventTime() time.Time {
	return ParseSlackTimestamp(m.Timestamp)
}

// ParseSlackTimestamp converts a "seconds.microseconds" Slack timestamp to UTC time.
func ParseSlackTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	parts := strings.Split(ts, ".")
	sec, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nsec int64
	if len(parts) > 1 {
		frac := parts[1]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		for len(frac) < 9 {
			frac += "0"
		}
		nsec, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			nsec = 0
		}
	}
	return time.Unix(sec, nsec).UTC()
}

// ToSlackTimestamp formats a time as a Slack "seconds.microseconds" timestamp.
func ToSlackTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
