package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GaugeName is the observable gauge reporting cumulative searches.
const GaugeName = "prodsearch.searches.total"

// RegisterGauge registers an observable gauge on meter that reports the
// store's cumulative totals per strategy at collection time.
func RegisterGauge(meter metric.Meter, store *Store) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(
		GaugeName,
		metric.WithDescription("Cumulative searches by strategy (rich, simple, vector, unavailable)"),
		metric.WithUnit("{searches}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search gauge: %w", err)
	}

	reg, err := meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		totals := map[string]int64{}
		for _, strategy := range Strategies {
			totals[string(strategy)] = 0
		}
		if store != nil {
			byStrategy, err := store.TotalsByStrategy(ctx)
			if err != nil {
				return err
			}
			for strategy, count := range byStrategy {
				totals[string(strategy)] = count
			}
		}
		for strategy, count := range totals {
			observer.ObserveInt64(gauge, count, metric.WithAttributes(attribute.String("strategy", strategy)))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register search gauge callback: %w", err)
	}
	return reg, nil
}
