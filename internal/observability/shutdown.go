package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 5 * time.Second

// ShutdownFunc flushes and stops the installed providers
type ShutdownFunc func(context.Context) error

type provider struct {
	name     string
	shutdown func(context.Context) error
}

// NewShutdownFunc stops the tracer provider, then the meter provider.
// Either may be nil.
func NewShutdownFunc(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider, logger *zap.Logger) ShutdownFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	var providers []provider
	if tp != nil {
		providers = append(providers, provider{name: "tracer provider", shutdown: tp.Shutdown})
	}
	if mp != nil {
		providers = append(providers, provider{name: "meter provider", shutdown: mp.Shutdown})
	}

	return func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
			defer cancel()
		}

		var errs []error
		for _, p := range providers {
			if err := p.shutdown(ctx); err != nil {
				logger.Warn("shutdown failed", zap.String("component", p.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			}
		}
		return errors.Join(errs...)
	}
}
