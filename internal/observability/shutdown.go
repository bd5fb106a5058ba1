package observability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// flushTimeout bounds provider shutdown when the caller's context carries no deadline.
const flushTimeout = 5 * time.Second

// ShutdownFunc flushes buffered telemetry and stops the providers.
type ShutdownFunc func(context.Context) error

// newShutdownFunc combines tracer and meter shutdown into one handler. Either
// provider may be nil. Both providers are always attempted; failures are
// logged and joined.
func newShutdownFunc(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider, logger *log.Logger) ShutdownFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(ctx context.Context) error {
		ctx, cancel := withFlushDeadline(ctx)
		defer cancel()

		var errs []error
		if tp != nil {
			if err := tp.Shutdown(ctx); err != nil {
				logger.Printf("otel tracer provider shutdown failed: %v", err)
				errs = append(errs, fmt.Errorf("tracer provider: %w", err))
			}
		}
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				logger.Printf("otel meter provider shutdown failed: %v", err)
				errs = append(errs, fmt.Errorf("meter provider: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}

func withFlushDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, flushTimeout)
}
