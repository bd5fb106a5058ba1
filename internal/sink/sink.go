package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/olusolaa/connector/internal/event"
)

// Sink receives batches of normalized events. Sinks must tolerate seeing the
// same event twice: syncs resume from checkpoints and may replay the last page.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []event.Event) error
	Close() error
}

// Fanout writes every batch to all configured sinks. A failing sink does not
// stop the others; the first error is returned after all sinks ran.
type Fanout struct {
	sinks []Sink
}

// NewFanout constructs a Fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Name() string {
	return "fanout"
}

func (f *Fanout) Write(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Write(ctx, events); err != nil {
			log.Printf("sink %s failed to write %d events: %v", s.Name(), len(events), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sink %s: %w", s.Name(), err)
			}
		}
	}
	return firstErr
}

func (f *Fanout) Close() error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sink %s: %w", s.Name(), err)
		}
	}
	return firstErr
}

// encodeJSONL renders events as newline-delimited JSON, one event per line.
func encodeJSONL(events []event.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
	}
	return buf.Bytes(), nil
}
