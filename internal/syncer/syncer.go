package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/olusolaa/connector/internal/checkpoint"
	"github.com/olusolaa/connector/internal/event"
	"github.com/olusolaa/connector/internal/extract"
	"github.com/olusolaa/connector/internal/metrics"
	"github.com/olusolaa/connector/internal/sink"
	"github.com/olusolaa/connector/internal/slackapi"
)

// ErrSyncInProgress is returned when a sync is requested while one is running.
var ErrSyncInProgress = fmt.Errorf("sync already in progress")

// EventStore persists normalized events; satisfied by the SQLite event store.
type EventStore interface {
	Insert(ctx context.Context, events []event.Event) (int, error)
}

// Options selects what a sync run covers.
type Options struct {
	// Channels restricts the run to specific channel IDs. Empty means every
	// channel the bot can list.
	Channels       []string
	PageSize       int
	IncludeThreads bool
	IncludeFiles   bool
	IncludeMembers bool
}

// Run reports the outcome of one sync invocation.
type Run struct {
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Channels      int            `json:"channels"`
	EventsEmitted int            `json:"events_emitted"`
	EventsStored  int            `json:"events_stored"`
	Skipped       int            `json:"skipped"`
	Errors        []string       `json:"errors,omitempty"`
	ByEntity      map[string]int `json:"by_entity"`
}

// Service orchestrates extraction, normalization, persistence and delivery.
// Extractors run sequentially: Slack's rate limits make concurrency across
// entity types counterproductive, and sequential order keeps checkpoints simple.
type Service struct {
	client      *slackapi.Client
	checkpoints checkpoint.Store
	store       EventStore
	out         sink.Sink
	rules       *extract.Rules
	logger      *log.Logger
	opts        Options

	mu      sync.Mutex
	running bool
	lastRun *Run
}

// New builds a sync service. store and out may be nil when persistence or
// delivery is not configured.
func New(client *slackapi.Client, checkpoints checkpoint.Store, store EventStore, out sink.Sink, rules *extract.Rules, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if rules == nil {
		rules = extract.DefaultRules()
	}
	if checkpoints == nil {
		checkpoints = checkpoint.NewMemoryStore()
	}
	return &Service{
		client:      client,
		checkpoints: checkpoints,
		store:       store,
		out:         out,
		rules:       rules,
		logger:      logger,
		opts:        opts,
	}
}

// Status reports whether a sync is running and the most recent run report.
func (s *Service) Status() (bool, *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastRun
}

// Sync performs one full pass over all configured entities. Extractor failures
// are recorded in the run report; the run continues with the next channel or
// entity so one bad conversation cannot starve the rest.
func (s *Service) Sync(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		ByEntity:  make(map[string]int),
	}

	tracer := otel.Tracer("connector/syncer")
	ctx, span := tracer.Start(ctx, "sync.run",
		trace.WithAttributes(attribute.String("run.id", run.ID)))

	s.logger.Printf("sync run %s started", run.ID)

	channels := s.syncChannels(ctx, run)
	run.Channels = len(channels)

	s.syncUsers(ctx, run)

	for _, ch := range channels {
		if ctx.Err() != nil {
			run.Errors = append(run.Errors, ctx.Err().Error())
			break
		}
		s.syncMessages(ctx, run, ch)
		if s.opts.IncludeMembers {
			s.syncMembers(ctx, run, ch)
		}
		if s.opts.IncludeFiles {
			s.syncFiles(ctx, run, ch)
		}
	}

	run.FinishedAt = time.Now().UTC()
	duration := run.FinishedAt.Sub(run.StartedAt)
	metrics.RecordRun(ctx, duration, len(run.Errors) > 0)
	span.End()

	s.logger.Printf("sync run %s finished: channels=%d emitted=%d stored=%d skipped=%d errors=%d duration=%v",
		run.ID, run.Channels, run.EventsEmitted, run.EventsStored, run.Skipped, len(run.Errors), duration)

	s.mu.Lock()
	s.running = false
	s.lastRun = run
	s.mu.Unlock()

	return run, nil
}

// deliver persists a batch and fans it out to sinks.
func (s *Service) deliver(ctx context.Context, run *Run, entity string, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	run.EventsEmitted += len(events)
	run.ByEntity[entity] += len(events)
	metrics.RecordEvents(ctx, entity, len(events))

	if s.store != nil {
		stored, err := s.store.Insert(ctx, events)
		if err != nil {
			return fmt.Errorf("event store: %w", err)
		}
		run.EventsStored += stored
	}
	if s.out != nil {
		if err := s.out.Write(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordError(run *Run, entity string, err error) {
	msg := fmt.Sprintf("%s: %v", entity, err)
	run.Errors = append(run.Errors, msg)
	s.logger.Printf("sync error: %s", msg)
}

// syncChannels discovers the channels to process and emits channel.observed
// events for each.
func (s *Service) syncChannels(ctx context.Context, run *Run) []extract.Channel {
	extractor := extract.NewChannelsExtractor(s.client, s.rules, s.opts.PageSize, s.logger)

	if len(s.opts.Channels) > 0 {
		channels, err := extractor.Resolve(ctx, s.opts.Channels)
		if err != nil {
			s.recordError(run, string(checkpoint.EntityChannels), err)
			return nil
		}
		events := make([]event.Event, 0, len(channels))
		for _, ch := range channels {
			events = append(events, event.NormalizeChannel(ch))
		}
		if err := s.deliver(ctx, run, string(checkpoint.EntityChannels), events); err != nil {
			s.recordError(run, string(checkpoint.EntityChannels), err)
		}
		return channels
	}

	var channels []extract.Channel
	err := extractor.Extract(ctx, extract.Resume{}, func(batch []extract.Channel, next extract.Resume) error {
		metrics.RecordPage(ctx, string(checkpoint.EntityChannels))
		channels = append(channels, batch...)

		events := make([]event.Event, 0, len(batch))
		for _, ch := range batch {
			events = append(events, event.NormalizeChannel(ch))
		}
		return s.deliver(ctx, run, string(checkpoint.EntityChannels), events)
	})
	if err != nil {
		s.recordError(run, string(checkpoint.EntityChannels), err)
	}
	return channels
}

func (s *Service) syncUsers(ctx context.Context, run *Run) {
	extractor := extract.NewUsersExtractor(s.client, s.logger)
	err := extractor.Extract(ctx, func(batch []extract.User) error {
		metrics.RecordPage(ctx, string(checkpoint.EntityUsers))
		events := make([]event.Event, 0, len(batch))
		for _, u := range batch {
			events = append(events, event.NormalizeUser(u))
		}
		return s.deliver(ctx, run, string(checkpoint.EntityUsers), events)
	})
	if err != nil {
		s.recordError(run, string(checkpoint.EntityUsers), err)
	}
}

// syncMessages walks one channel's history. The checkpoint cursor is advanced
// after every delivered page; the last event timestamp only advances once the
// whole walk completes, because history pages arrive newest first.
func (s *Service) syncMessages(ctx context.Context, run *Run, ch extract.Channel) {
	entity := checkpoint.EntityMessages
	resume := extract.Resume{}

	cp, err := s.checkpoints.Get(ctx, entity, ch.ID)
	if err != nil {
		s.recordError(run, string(entity), err)
		return
	}
	if cp != nil {
		resume.Cursor = cp.Cursor
		resume.Oldest = cp.LastEventTS
	}

	extractor := extract.NewMessagesExtractor(s.client, s.rules, s.opts.PageSize, s.opts.IncludeThreads, s.logger)

	var newest string
	skipped, err := extractor.Extract(ctx, ch, resume, func(batch []extract.Message, next extract.Resume) error {
		metrics.RecordPage(ctx, string(entity))

		var events []event.Event
		for _, msg := range batch {
			if msg.Timestamp > newest {
				newest = msg.Timestamp
			}
			events = append(events, event.NormalizeMessage(msg)...)
		}
		if err := s.deliver(ctx, run, string(entity), events); err != nil {
			return err
		}

		// Page delivered; persist the cursor so an interrupted run resumes here.
		return s.checkpoints.Put(ctx, checkpoint.Checkpoint{
			Entity:      entity,
			Scope:       ch.ID,
			Cursor:      next.Cursor,
			LastEventTS: resume.Oldest,
		})
	})
	run.Skipped += skipped
	metrics.RecordSkipped(ctx, string(entity), skipped)
	if err != nil {
		s.recordError(run, string(entity), err)
		return
	}

	last := resume.Oldest
	if newest > last {
		last = newest
	}
	if err := s.checkpoints.Put(ctx, checkpoint.Checkpoint{
		Entity:      entity,
		Scope:       ch.ID,
		Cursor:      "",
		LastEventTS: last,
	}); err != nil {
		s.recordError(run, string(entity), err)
	}
}

func (s *Service) syncMembers(ctx context.Context, run *Run, ch extract.Channel) {
	entity := checkpoint.EntityMembers
	extractor := extract.NewMembersExtractor(s.client, s.opts.PageSize, s.logger)

	err := extractor.Extract(ctx, ch, extract.Resume{}, func(batch []extract.Membership, next extract.Resume) error {
		metrics.RecordPage(ctx, string(entity))
		events := make([]event.Event, 0, len(batch))
		for _, m := range batch {
			events = append(events, event.NormalizeMembership(m))
		}
		return s.deliver(ctx, run, string(entity), events)
	})
	if err != nil {
		s.recordError(run, string(entity), err)
	}
}

func (s *Service) syncFiles(ctx context.Context, run *Run, ch extract.Channel) {
	entity := checkpoint.EntityFiles
	resume := extract.Resume{}

	cp, err := s.checkpoints.Get(ctx, entity, ch.ID)
	if err != nil {
		s.recordError(run, string(entity), err)
		return
	}
	if cp != nil {
		resume.Cursor = cp.Cursor
	}

	extractor := extract.NewFilesExtractor(s.client, s.opts.PageSize, s.logger)
	err = extractor.Extract(ctx, ch, resume, func(batch []extract.File, next extract.Resume) error {
		metrics.RecordPage(ctx, string(entity))
		events := make([]event.Event, 0, len(batch))
		for _, f := range batch {
			events = append(events, event.NormalizeFile(f))
		}
		if err := s.deliver(ctx, run, string(entity), events); err != nil {
			return err
		}
		return s.checkpoints.Put(ctx, checkpoint.Checkpoint{
			Entity: entity,
			Scope:  ch.ID,
			Cursor: next.Cursor,
		})
	})
	if err != nil {
		s.recordError(run, string(entity), err)
	}
}
