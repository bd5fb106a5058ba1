package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/olusolaa/connector/internal/checkpoint"
	"github.com/olusolaa/connector/internal/event"
	"github.com/olusolaa/connector/internal/syncer"
)

// SyncRunner triggers sync runs; satisfied by *syncer.Service.
type SyncRunner interface {
	Sync(ctx context.Context) (*syncer.Run, error)
	Status() (bool, *syncer.Run)
}

// EventReader reads persisted events; satisfied by the SQLite event store.
type EventReader interface {
	Recent(ctx context.Context, limit int) ([]event.Event, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSyncTrigger starts a sync run in the background and returns immediately.
func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if running, _ := s.syncer.Status(); running {
		writeJSONError(w, http.StatusConflict, "sync already in progress")
		return
	}

	go func() {
		// Detached from the request context so the run outlives the HTTP call.
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()
		if _, err := s.syncer.Sync(ctx); err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
			s.logger.Printf("background sync failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	running, lastRun := s.syncer.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":  running,
		"last_run": lastRun,
	})
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := s.checkpoints.List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}
	if checkpoints == nil {
		checkpoints = []checkpoint.Checkpoint{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"checkpoints": checkpoints})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}

	counts, err := s.events.CountByType(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"by_type": counts,
	})
}
