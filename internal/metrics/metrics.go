package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncMetricsOnce       sync.Once
	syncRunCounter        metric.Int64Counter
	pagesFetchedCounter   metric.Int64Counter
	eventsEmittedCounter  metric.Int64Counter
	itemsSkippedCounter   metric.Int64Counter
	syncDurationHistogram metric.Float64Histogram
)

func initSyncMetrics() {
	syncMetricsOnce.Do(func() {
		meter := otel.Meter("connector/syncer")

		var err error
		syncRunCounter, err = meter.Int64Counter(
			"connector.sync.runs.total",
			metric.WithDescription("Total sync runs by outcome"),
		)
		if err != nil {
			log.Printf("observability: failed to create sync run counter: %v", err)
		}

		pagesFetchedCounter, err = meter.Int64Counter(
			"connector.sync.pages.total",
			metric.WithDescription("Total Slack API pages fetched by entity"),
		)
		if err != nil {
			log.Printf("observability: failed to create page counter: %v", err)
		}

		eventsEmittedCounter, err = meter.Int64Counter(
			"connector.sync.events.total",
			metric.WithDescription("Total normalized events emitted by entity"),
		)
		if err != nil {
			log.Printf("observability: failed to create event counter: %v", err)
		}

		itemsSkippedCounter, err = meter.Int64Counter(
			"connector.sync.skipped.total",
			metric.WithDescription("Total source items skipped during normalization"),
		)
		if err != nil {
			log.Printf("observability: failed to create skip counter: %v", err)
		}

		syncDurationHistogram, err = meter.Float64Histogram(
			"connector.sync.duration",
			metric.WithDescription("Sync run duration (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Printf("observability: failed to create duration histogram: %v", err)
		}
	})
}

// RecordPage counts one fetched API page for an entity.
func RecordPage(ctx context.Context, entity string) {
	initSyncMetrics()
	if pagesFetchedCounter != nil {
		pagesFetchedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
	}
}

// RecordEvents counts normalized events emitted for an entity.
func RecordEvents(ctx context.Context, entity string, count int) {
	initSyncMetrics()
	if eventsEmittedCounter != nil && count > 0 {
		eventsEmittedCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("entity", entity)))
	}
}

// RecordSkipped counts items dropped by filters or mapping failures.
func RecordSkipped(ctx context.Context, entity string, count int) {
	initSyncMetrics()
	if itemsSkippedCounter != nil && count > 0 {
		itemsSkippedCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("entity", entity)))
	}
}

// RecordRun counts one finished sync run and its duration.
func RecordRun(ctx context.Context, duration time.Duration, hadError bool) {
	initSyncMetrics()
	outcome := "success"
	if hadError {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if syncRunCounter != nil {
		syncRunCounter.Add(ctx, 1, attrs)
	}
	if syncDurationHistogram != nil {
		syncDurationHistogram.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}
