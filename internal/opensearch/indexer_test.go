package opensearch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/connector/internal/event"
)

func TestBuildBulkBody(t *testing.T) {
	events := []event.Event{
		{
			ID:         "slack-C1-1700000000.000100",
			Source:     event.SourceSlack,
			Type:       event.TypeMessagePosted,
			Actor:      event.Actor{ID: "U1", Name: "Ada"},
			Target:     event.Target{ID: "C1", Kind: "channel", Name: "general"},
			Text:       "hello",
			OccurredAt: time.Unix(1700000000, 0).UTC(),
		},
		{
			ID:     "slack-member-C1-U2",
			Source: event.SourceSlack,
			Type:   event.TypeMemberJoined,
			Actor:  event.Actor{ID: "U2"},
			Target: event.Target{ID: "C1", Kind: "channel"},
		},
	}

	body, err := buildBulkBody("slack-events", events)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	require.Len(t, lines, 4)

	var action map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "slack-events", action["index"]["_index"])
	assert.Equal(t, "slack-C1-1700000000.000100", action["index"]["_id"])

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "message.posted", doc["type"])
	assert.Equal(t, "hello", doc["text"])

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &action))
	assert.Equal(t, "slack-member-C1-U2", action["index"]["_id"])
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")

	_, err = NewClient(&Config{Endpoint: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}
