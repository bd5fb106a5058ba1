package sink

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/olusolaa/connector/internal/event"
)

// S3Sink uploads each event batch as one JSONL object. Keys are partitioned by
// date so downstream batch jobs can scan a day at a time.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3 client from the default AWS credential chain.
func NewS3Sink(bucket, prefix, region string) (*S3Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3SinkWithClient injects a pre-built client, used by tests.
func NewS3SinkWithClient(client *s3.Client, bucket, prefix string) *S3Sink {
	normalizedPrefix := prefix
	if normalizedPrefix != "" && !strings.HasSuffix(normalizedPrefix, "/") {
		normalizedPrefix += "/"
	}
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: normalizedPrefix,
	}
}

func (s *S3Sink) Name() string {
	return "s3"
}

func (s *S3Sink) Write(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	data, err := encodeJSONL(events)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("%sevents/%s/%s-%s.jsonl",
		s.prefix, now.Format("2006-01-02"), now.Format("150405"), uuid.NewString())

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}

	log.Printf("Uploaded %d events to s3://%s/%s", len(events), s.bucket, key)
	return nil
}

func (s *S3Sink) Close() error {
	return nil
}
