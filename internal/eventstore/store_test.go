package eventstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/connector/internal/event"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "connector.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleEvents() []event.Event {
	base := time.Unix(1700000000, 0).UTC()
	return []event.Event{
		{
			ID:         "slack-C1-1700000000.000100",
			Source:     event.SourceSlack,
			Type:       event.TypeMessagePosted,
			Actor:      event.Actor{ID: "U1", Name: "Ada"},
			Target:     event.Target{ID: "C1", Kind: "channel", Name: "general"},
			Text:       "shipping the new flow",
			OccurredAt: base,
			Metadata:   map[string]interface{}{"team": "T1"},
		},
		{
			ID:         "slack-C1-1700000001.000100",
			Source:     event.SourceSlack,
			Type:       event.TypeMessageReplied,
			Actor:      event.Actor{ID: "U2", Name: "Grace"},
			Target:     event.Target{ID: "C1", Kind: "channel", Name: "general"},
			Text:       "looks good",
			OccurredAt: base.Add(time.Second),
		},
		{
			ID:     "slack-member-C1-U2",
			Source: event.SourceSlack,
			Type:   event.TypeMemberJoined,
			Actor:  event.Actor{ID: "U2"},
			Target: event.Target{ID: "C1", Kind: "channel"},
		},
	}
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Re-inserting the same deterministic IDs adds nothing.
	inserted, err = store.Insert(ctx, sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	counts, err := store.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[string(event.TypeMessagePosted)])
	assert.Equal(t, int64(1), counts[string(event.TypeMessageReplied)])
	assert.Equal(t, int64(1), counts[string(event.TypeMemberJoined)])
}

func TestStore_RecentOrdersByOccurrence(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, sampleEvents())
	require.NoError(t, err)

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "slack-C1-1700000001.000100", recent[0].ID)
	assert.Equal(t, "slack-C1-1700000000.000100", recent[1].ID)
	assert.Equal(t, event.Actor{ID: "U1", Name: "Ada"}, recent[1].Actor)
	assert.Equal(t, "T1", recent[1].Metadata["team"])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), recent[1].OccurredAt)
}

func TestStore_InsertEmptyBatch(t *testing.T) {
	store := testStore(t)
	inserted, err := store.Insert(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}
