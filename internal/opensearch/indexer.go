package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/olusolaa/connector/internal/event"
)

const defaultBatchSize = 500

// Indexer bulk-indexes normalized events. Documents use the event ID as _id,
// so replayed batches overwrite rather than duplicate.
type Indexer struct {
	client    *Client
	index     string
	batchSize int
}

func NewIndexer(client *Client, index string) *Indexer {
	return &Indexer{
		client:    client,
		index:     index,
		batchSize: defaultBatchSize,
	}
}

// EnsureIndex creates the events index with its mapping if it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	operation := func() error {
		if err := i.client.WaitForRateLimit(ctx); err != nil {
			return err
		}

		existsReq := opensearchapi.IndicesExistsReq{Indices: []string{i.index}}
		// A 404 surfaces as an error; a non-nil response means the index exists.
		resp, err := i.client.GetClient().Indices.Exists(ctx, existsReq)
		if err == nil && resp != nil {
			return nil
		}

		mapping := `{
			"mappings": {
				"properties": {
					"source":      {"type": "keyword"},
					"type":        {"type": "keyword"},
					"actor":       {"properties": {"id": {"type": "keyword"}, "name": {"type": "keyword"}}},
					"target":      {"properties": {"id": {"type": "keyword"}, "kind": {"type": "keyword"}, "name": {"type": "keyword"}}},
					"text":        {"type": "text"},
					"occurred_at": {"type": "date"}
				}
			}
		}`
		createReq := opensearchapi.IndicesCreateReq{
			Index: i.index,
			Body:  strings.NewReader(mapping),
		}
		if _, err := i.client.GetClient().Indices.Create(ctx, createReq); err != nil {
			// Another writer may have created it between the exists check and now.
			if strings.Contains(err.Error(), "resource_already_exists_exception") {
				return nil
			}
			return fmt.Errorf("failed to create index %s: %w", i.index, err)
		}
		return nil
	}

	return i.client.ExecuteWithRetry(ctx, operation, fmt.Sprintf("EnsureIndex[%s]", i.index))
}

// IndexEvents bulk-indexes events in batches.
func (i *Indexer) IndexEvents(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	for start := 0; start < len(events); start += i.batchSize {
		end := start + i.batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := i.indexBatch(ctx, events[start:end], start); err != nil {
			return err
		}
	}

	log.Printf("Indexed %d events into %s", len(events), i.index)
	return nil
}

func (i *Indexer) indexBatch(ctx context.Context, events []event.Event, offset int) error {
	operation := func() error {
		if err := i.client.WaitForRateLimit(ctx); err != nil {
			return err
		}

		bulkBody, err := buildBulkBody(i.index, events)
		if err != nil {
			return err
		}

		req := opensearchapi.BulkReq{
			Body: strings.NewReader(bulkBody),
		}
		resp, err := i.client.GetClient().Bulk(ctx, req)
		if err != nil {
			return fmt.Errorf("bulk request failed: %w", err)
		}
		if resp != nil && resp.Errors {
			return fmt.Errorf("bulk response reported item errors for batch at offset %d", offset)
		}
		return nil
	}

	return i.client.ExecuteWithRetry(ctx, operation, fmt.Sprintf("BulkIndex[%d docs]", len(events)))
}

func buildBulkBody(indexName string, events []event.Event) (string, error) {
	var bulkBody strings.Builder
	bulkBody.Grow(len(events) * 300)

	for _, ev := range events {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": indexName,
				"_id":    ev.ID,
			},
		}
		actionJSON, err := json.Marshal(action)
		if err != nil {
			return "", fmt.Errorf("failed to marshal bulk action for event %s: %w", ev.ID, err)
		}

		docJSON, err := json.Marshal(ev)
		if err != nil {
			return "", fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
		}

		bulkBody.Write(actionJSON)
		bulkBody.WriteString("\n")
		bulkBody.Write(docJSON)
		bulkBody.WriteString("\n")
	}

	return bulkBody.String(), nil
}
