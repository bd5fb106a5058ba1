package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/connector/internal/event"
)

func testEvents(n int) []event.Event {
	events := make([]event.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, event.Event{
			ID:         fmt.Sprintf("slack-C1-170000000%d.000100", i),
			Source:     event.SourceSlack,
			Type:       event.TypeMessagePosted,
			Actor:      event.Actor{ID: "U1", Name: "Ada"},
			Target:     event.Target{ID: "C1", Kind: "channel", Name: "general"},
			Text:       fmt.Sprintf("message %d", i),
			OccurredAt: time.Unix(int64(1700000000+i), 0).UTC(),
		})
	}
	return events
}

func decodeJSONL(t *testing.T, r io.Reader) []event.Event {
	t.Helper()
	var events []event.Event
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var ev event.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestJSONLSink_AppendsBatches(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewJSONLSink(dir)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, testEvents(2)))
	require.NoError(t, sink.Write(ctx, testEvents(3)))
	require.NoError(t, sink.Write(ctx, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	events := decodeJSONL(t, f)
	assert.Len(t, events, 5)
	assert.Equal(t, "slack-C1-1700000000.000100", events[0].ID)
	assert.Equal(t, event.TypeMessagePosted, events[0].Type)
}

func TestNewJSONLSink_RequiresDirectory(t *testing.T) {
	_, err := NewJSONLSink("")
	assert.Error(t, err)
}

// setupFakeS3 creates a fake S3 server and returns a client configured to use it.
func setupFakeS3(t *testing.T) (*s3.Client, *httptest.Server) {
	t.Helper()

	backend := s3mem.New()
	faker := gofakes3.New(backend)
	server := httptest.NewServer(faker.Server())

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(server.URL)
		o.UsePathStyle = true
	})

	return client, server
}

func TestS3Sink_UploadsJSONL(t *testing.T) {
	client, server := setupFakeS3(t)
	defer server.Close()

	ctx := context.Background()
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("connector-test")})
	require.NoError(t, err)

	sink := NewS3SinkWithClient(client, "connector-test", "slack")
	require.NoError(t, sink.Write(ctx, testEvents(3)))

	list, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String("connector-test"),
		Prefix: aws.String("slack/events/"),
	})
	require.NoError(t, err)
	require.Len(t, list.Contents, 1)

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("connector-test"),
		Key:    list.Contents[0].Key,
	})
	require.NoError(t, err)
	defer func() { _ = obj.Body.Close() }()

	events := decodeJSONL(t, obj.Body)
	require.Len(t, events, 3)
	assert.Equal(t, "message 0", events[0].Text)
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink("", "prefix", "us-east-1")
	assert.Error(t, err)
}

type failingSink struct{ name string }

func (f *failingSink) Name() string { return f.name }
func (f *failingSink) Write(ctx context.Context, events []event.Event) error {
	return errors.New("boom")
}
func (f *failingSink) Close() error { return nil }

type recordingSink struct {
	name    string
	batches [][]event.Event
}

func (r *recordingSink) Name() string { return r.name }
func (r *recordingSink) Write(ctx context.Context, events []event.Event) error {
	r.batches = append(r.batches, events)
	return nil
}
func (r *recordingSink) Close() error { return nil }

func TestFanout_ContinuesPastFailingSink(t *testing.T) {
	rec := &recordingSink{name: "rec"}
	fanout := NewFanout(&failingSink{name: "bad"}, rec)

	err := fanout.Write(context.Background(), testEvents(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, rec.batches, 1)
}
