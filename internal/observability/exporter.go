package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// signal is one OTLP data stream and the HTTP path it is posted to
type signal string

const (
	signalTraces  signal = "/v1/traces"
	signalMetrics signal = "/v1/metrics"
)

// collectorTarget is where one signal is exported
type collectorTarget struct {
	// URL for http/protobuf, host:port for grpc
	Address  string
	Insecure bool
}

// resolveTarget derives the exporter address for sig from the configured endpoint.
// For http/protobuf the signal path is appended unless the endpoint already ends
// with it; query strings are kept.
func resolveTarget(cfg *Config, sig signal) (collectorTarget, error) {
	raw := strings.TrimSpace(cfg.ExporterEndpoint)
	if raw == "" {
		return collectorTarget{}, fmt.Errorf("endpoint cannot be empty")
	}

	switch cfg.ExporterProtocol {
	case protocolGRPC:
		if !strings.Contains(raw, "://") {
			return collectorTarget{Address: raw, Insecure: true}, nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return collectorTarget{}, err
		}
		if u.Host == "" {
			return collectorTarget{}, fmt.Errorf("endpoint must include host")
		}
		switch u.Scheme {
		case "http", "grpc":
			return collectorTarget{Address: u.Host, Insecure: true}, nil
		case "https", "grpcs":
			return collectorTarget{Address: u.Host}, nil
		default:
			return collectorTarget{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	default:
		u, err := url.Parse(raw)
		if err != nil {
			return collectorTarget{}, fmt.Errorf("parse endpoint: %w", err)
		}
		path := strings.TrimSuffix(u.Path, "/")
		if !strings.HasSuffix(path, string(sig)) {
			path += string(sig)
		}
		u.Path = path
		return collectorTarget{Address: u.String(), Insecure: u.Scheme == "http"}, nil
	}
}

func newSpanExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	target, err := resolveTarget(cfg, signalTraces)
	if err != nil {
		return nil, fmt.Errorf("observability: invalid trace endpoint: %w", err)
	}

	switch cfg.ExporterProtocol {
	case protocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target.Address)}
		if target.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case defaultExporterProtocol:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(target.Address)}
		if target.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("observability: unsupported exporter protocol %q", cfg.ExporterProtocol)
	}
}

func newMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	target, err := resolveTarget(cfg, signalMetrics)
	if err != nil {
		return nil, fmt.Errorf("observability: invalid metric endpoint: %w", err)
	}

	switch cfg.ExporterProtocol {
	case protocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target.Address)}
		if target.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case defaultExporterProtocol:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(target.Address)}
		if target.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("observability: unsupported exporter protocol %q", cfg.ExporterProtocol)
	}
}
