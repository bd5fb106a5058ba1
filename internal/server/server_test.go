package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/connector/internal/checkpoint"
	"github.com/olusolaa/connector/internal/config"
	"github.com/olusolaa/connector/internal/event"
	"github.com/olusolaa/connector/internal/syncer"
)

type stubRunner struct {
	mu      sync.Mutex
	running bool
	lastRun *syncer.Run
	synced  chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{synced: make(chan struct{}, 10)}
}

func (r *stubRunner) Sync(ctx context.Context) (*syncer.Run, error) {
	r.mu.Lock()
	run := &syncer.Run{ID: "run-1", StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC()}
	r.lastRun = run
	r.mu.Unlock()
	r.synced <- struct{}{}
	return run, nil
}

func (r *stubRunner) Status() (bool, *syncer.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.lastRun
}

type stubEvents struct {
	recent []event.Event
	counts map[string]int64
}

func (s *stubEvents) Recent(ctx context.Context, limit int) ([]event.Event, error) {
	if limit < len(s.recent) {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func (s *stubEvents) CountByType(ctx context.Context) (map[string]int64, error) {
	return s.counts, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ServerHost:            "localhost",
		ServerPort:            8080,
		ServerReadTimeout:     30 * time.Second,
		ServerWriteTimeout:    30 * time.Second,
		ServerIdleTimeout:     120 * time.Second,
		ServerShutdownTimeout: 5 * time.Second,
		SyncInterval:          30 * time.Minute,
	}
}

func testServer(t *testing.T, runner SyncRunner, events EventReader, auth Authenticator) *Server {
	t.Helper()
	return New(testConfig(), runner, checkpoint.NewMemoryStore(), events, auth, log.New(io.Discard, "", 0))
}

func doRequest(t *testing.T, handler http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, newStubRunner(), nil, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSyncTrigger(t *testing.T) {
	runner := newStubRunner()
	srv := testServer(t, runner, nil, nil)
	handler := srv.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-runner.synced:
	case <-time.After(2 * time.Second):
		t.Fatal("background sync was not triggered")
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/sync", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSyncTrigger_ConflictWhileRunning(t *testing.T) {
	runner := newStubRunner()
	runner.running = true
	srv := testServer(t, runner, nil, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSyncStatus(t *testing.T) {
	runner := newStubRunner()
	_, err := runner.Sync(context.Background())
	require.NoError(t, err)

	srv := testServer(t, runner, nil, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/sync/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Running bool        `json:"running"`
		LastRun *syncer.Run `json:"last_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Running)
	require.NotNil(t, body.LastRun)
	assert.Equal(t, "run-1", body.LastRun.ID)
}

func TestCheckpoints(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), checkpoint.Checkpoint{
		Entity: checkpoint.EntityMessages,
		Scope:  "C1",
		Cursor: "cursor-1",
	}))

	srv := New(testConfig(), newStubRunner(), store, nil, nil, log.New(io.Discard, "", 0))
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/checkpoints", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Checkpoints, 1)
	assert.Equal(t, "cursor-1", body.Checkpoints[0].Cursor)
}

func TestRecentEvents(t *testing.T) {
	events := &stubEvents{
		recent: []event.Event{
			{ID: "slack-C1-1.2", Type: event.TypeMessagePosted},
			{ID: "slack-C1-1.1", Type: event.TypeMessagePosted},
		},
	}
	srv := testServer(t, newStubRunner(), events, nil)
	handler := srv.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/events/recent?limit=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []event.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Events, 1)

	rec = doRequest(t, handler, http.MethodGet, "/api/events/recent?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/events/recent?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentEvents_NoStore(t *testing.T) {
	srv := testServer(t, newStubRunner(), nil, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/events/recent", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	events := &stubEvents{counts: map[string]int64{
		"message.posted": 10,
		"member.joined":  3,
	}}
	srv := testServer(t, newStubRunner(), events, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total  int64            `json:"total"`
		ByType map[string]int64 `json:"by_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(13), body.Total)
	assert.Equal(t, int64(10), body.ByType["message.posted"])
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestSharedSecretAuth(t *testing.T) {
	auth := &sharedSecretAuth{secret: []byte("test-secret")}
	srv := testServer(t, newStubRunner(), nil, auth)
	handler := srv.Handler()

	// No token.
	rec := doRequest(t, handler, http.MethodGet, "/api/sync/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong secret.
	rec = doRequest(t, handler, http.MethodGet, "/api/sync/status", map[string]string{
		"Authorization": "Bearer " + signedToken(t, "other-secret"),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	rec = doRequest(t, handler, http.MethodGet, "/api/sync/status", map[string]string{
		"Authorization": "Bearer " + signedToken(t, "test-secret"),
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health check stays open.
	rec = doRequest(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAuthenticator_Modes(t *testing.T) {
	ctx := context.Background()

	auth, err := NewAuthenticator(ctx, &config.Config{AuthMode: "none"})
	require.NoError(t, err)
	assert.NoError(t, auth.Authenticate(ctx, ""))

	auth, err = NewAuthenticator(ctx, &config.Config{AuthMode: "secret", AuthSharedSecret: "s"})
	require.NoError(t, err)
	assert.Error(t, auth.Authenticate(ctx, ""))

	_, err = NewAuthenticator(ctx, &config.Config{AuthMode: "bogus"})
	assert.Error(t, err)
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	runner := newStubRunner()
	runner.running = true

	sched := NewScheduler(runner, time.Minute, log.New(io.Discard, "", 0))
	sched.mu.Lock()
	sched.enabled = true
	sched.mu.Unlock()

	sched.tick(context.Background())
	select {
	case <-runner.synced:
		t.Fatal("tick should not trigger a sync while one is running")
	default:
	}

	runner.mu.Lock()
	runner.running = false
	runner.mu.Unlock()

	sched.tick(context.Background())
	select {
	case <-runner.synced:
	default:
		t.Fatal("tick should trigger a sync when idle")
	}
}

func TestScheduler_StateAndStop(t *testing.T) {
	sched := NewScheduler(newStubRunner(), time.Minute, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	state := sched.State()
	assert.True(t, state.Enabled)
	assert.Equal(t, time.Minute, state.Interval)
	assert.False(t, state.NextRunAt.IsZero())

	sched.Stop()
	assert.False(t, sched.State().Enabled)
}
