package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ca-srg/prodsearch/internal/types"
)

func collectGauge(t *testing.T, reader *metric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name != GaugeName {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				t.Fatalf("Expected Gauge[int64], got %T", m.Data)
			}
			results := make(map[string]int64)
			for _, dp := range gauge.DataPoints {
				if v, ok := dp.Attributes.Value("strategy"); ok {
					results[v.AsString()] = dp.Value
				}
			}
			return results
		}
	}
	t.Fatalf("Metric %q not found in collected metrics", GaugeName)
	return nil
}

func TestRegisterGaugeReportsCumulativeTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	reg, err := RegisterGauge(provider.Meter("prodsearch/metrics"), store)
	if err != nil {
		t.Fatalf("RegisterGauge failed: %v", err)
	}
	defer func() { _ = reg.Unregister() }()

	first := collectGauge(t, reader)
	for _, strategy := range Strategies {
		if first[string(strategy)] != 0 {
			t.Errorf("Strategy %s: expected 0, got %d", strategy, first[string(strategy)])
		}
	}

	_ = store.Increment(ctx, SurfaceHTTP, types.StrategyRich)
	_ = store.Increment(ctx, SurfaceMCP, types.StrategyRich)
	_ = store.Increment(ctx, SurfaceHTTP, types.StrategyVector)

	second := collectGauge(t, reader)
	expected := map[string]int64{"rich": 2, "simple": 0, "vector": 1, "unavailable": 0}
	for strategy, want := range expected {
		if second[strategy] != want {
			t.Errorf("Strategy %s: expected %d, got %d", strategy, want, second[strategy])
		}
	}
}

func TestRegisterGaugeWithoutStoreReportsZeros(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	if _, err := RegisterGauge(provider.Meter("prodsearch/metrics"), nil); err != nil {
		t.Fatalf("RegisterGauge failed: %v", err)
	}

	results := collectGauge(t, reader)
	if len(results) != len(Strategies) {
		t.Errorf("Expected %d data points, got %d", len(Strategies), len(results))
	}
}
