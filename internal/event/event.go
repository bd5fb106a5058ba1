package event

import (
	"fmt"
	"time"
)

// Source identifies the connector that produced an event.
const SourceSlack = "slack"

// Type classifies a normalized event.
type Type string

const (
	TypeMessagePosted   Type = "message.posted"
	TypeMessageReplied  Type = "message.replied"
	TypeReactionAdded   Type = "reaction.added"
	TypeFileShared      Type = "file.shared"
	TypeMemberJoined    Type = "member.joined"
	TypeChannelObserved Type = "channel.observed"
	TypeUserObserved    Type = "user.observed"
)

// Actor identifies who performed the action behind an event.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Target identifies what the action was performed on.
type Target struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

// Event is the uniform envelope all connector records are normalized into for
// downstream consumption.
type Event struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Type       Type                   `json:"type"`
	Actor      Actor                  `json:"actor"`
	Target     Target                 `json:"target"`
	Text       string                 `json:"text,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MessageEventID returns the deterministic identifier for a message event, so
// re-syncing the same history never produces duplicate events.
func MessageEventID(channelID, timestamp string) string {
	return fmt.Sprintf("slack-%s-%s", channelID, timestamp)
}
