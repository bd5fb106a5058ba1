package sink

import (
	"context"

	"github.com/olusolaa/connector/internal/event"
)

// EventIndexer is implemented by the OpenSearch indexer.
type EventIndexer interface {
	IndexEvents(ctx context.Context, events []event.Event) error
}

// OpenSearchSink adapts an EventIndexer to the Sink interface.
type OpenSearchSink struct {
	indexer EventIndexer
}

func NewOpenSearchSink(indexer EventIndexer) *OpenSearchSink {
	return &OpenSearchSink{indexer: indexer}
}

func (s *OpenSearchSink) Name() string {
	return "opensearch"
}

func (s *OpenSearchSink) Write(ctx context.Context, events []event.Event) error {
	return s.indexer.IndexEvents(ctx, events)
}

func (s *OpenSearchSink) Close() error {
	return nil
}
