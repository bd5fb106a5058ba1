package checkpoint

import (
	"context"
	"sync"
	"time"
)

// Entity names the extractor a checkpoint belongs to.
type Entity string

const (
	EntityMessages Entity = "messages"
	EntityChannels Entity = "channels"
	EntityUsers    Entity = "users"
	EntityMembers  Entity = "members"
	EntityFiles    Entity = "files"
)

// Checkpoint records where pagination stopped for one entity type within one
// scope (a channel ID, or empty for workspace-wide extractors). Cursor resumes
// an interrupted page loop; LastEventTS bounds the next incremental sync.
type Checkpoint struct {
	Entity      Entity
	Scope       string
	Cursor      string
	LastEventTS string
	UpdatedAt   time.Time
}

// Store persists checkpoints between sync invocations.
type Store interface {
	Get(ctx context.Context, entity Entity, scope string) (*Checkpoint, error)
	Put(ctx context.Context, cp Checkpoint) error
	Delete(ctx context.Context, entity Entity, scope string) error
	List(ctx context.Context) ([]Checkpoint, error)
}

// MemoryStore keeps checkpoints in an in-process map. State is lost on
// restart; use the SQLite store when syncs must resume across processes.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]Checkpoint)}
}

func key(entity Entity, scope string) string {
	return string(entity) + "\x00" + scope
}

// Get returns the checkpoint for an entity/scope, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, entity Entity, scope string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[key(entity, scope)]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// Put inserts or replaces a checkpoint.
func (s *MemoryStore) Put(ctx context.Context, cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[key(cp.Entity, cp.Scope)] = cp
	return nil
}

// Delete removes a checkpoint if present.
func (s *MemoryStore) Delete(ctx context.Context, entity Entity, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, key(entity, scope))
	return nil
}

// List returns all stored checkpoints.
func (s *MemoryStore) List(ctx context.Context) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		result = append(result, cp)
	}
	return result, nil
}
