package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/types"
)

const (
	defaultServiceName      = "prodsearch"
	defaultExporterProtocol = "http/protobuf"
	protocolGRPC            = "grpc"
	resourceServiceNameKey  = "service.name"
	defaultExportInterval   = 60 * time.Second
)

// Config is the OpenTelemetry subset of the service configuration
type Config struct {
	Enabled              bool
	ServiceName          string
	Environment          string
	ExporterEndpoint     string
	ExporterProtocol     string
	ResourceAttributes   map[string]string
	TracesSampler        string
	TracesSamplerArg     float64
	MetricExportInterval time.Duration
}

// LoadConfig extracts and validates the OTel settings from the service configuration
func LoadConfig(cfg *types.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil root configuration provided")
	}

	attrs, err := parseResourceAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to parse resource attributes: %w", err)
	}

	c := &Config{
		Enabled:            cfg.OTelEnabled,
		ServiceName:        strings.TrimSpace(cfg.OTelServiceName),
		Environment:        cfg.Environment,
		ExporterEndpoint:   strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		ExporterProtocol:   strings.ToLower(strings.TrimSpace(cfg.OTelExporterOTLPProtocol)),
		ResourceAttributes: attrs,
		TracesSampler:      strings.ToLower(strings.TrimSpace(cfg.OTelTracesSampler)),
		TracesSamplerArg:   cfg.OTelTracesSamplerArg,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate fills defaults and, when enabled, checks the exporter settings
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("observability: config is nil")
	}

	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.ExporterProtocol == "" {
		c.ExporterProtocol = defaultExporterProtocol
	}
	if c.TracesSampler == "" {
		c.TracesSampler = "always_on"
	}
	if c.MetricExportInterval <= 0 {
		c.MetricExportInterval = defaultExportInterval
	}
	if c.ResourceAttributes == nil {
		c.ResourceAttributes = make(map[string]string)
	}
	if _, ok := c.ResourceAttributes[resourceServiceNameKey]; !ok {
		c.ResourceAttributes[resourceServiceNameKey] = c.ServiceName
	}

	if !c.Enabled {
		return nil
	}

	switch c.ExporterProtocol {
	case defaultExporterProtocol:
		u, err := url.Parse(c.ExporterEndpoint)
		if err != nil {
			return fmt.Errorf("observability: invalid OTLP exporter endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("observability: OTLP endpoint %q needs an http or https scheme for http/protobuf", c.ExporterEndpoint)
		}
		if u.Host == "" {
			return fmt.Errorf("observability: OTLP endpoint %q has no host", c.ExporterEndpoint)
		}
	case protocolGRPC:
		target, err := resolveTarget(c, signalTraces)
		if err != nil {
			return fmt.Errorf("observability: invalid OTLP exporter endpoint for grpc: %w", err)
		}
		if !strings.Contains(target.Address, ":") {
			return fmt.Errorf("observability: OTLP endpoint should be host:port for grpc")
		}
	default:
		return fmt.Errorf("observability: unsupported OTLP exporter protocol %q", c.ExporterProtocol)
	}

	if c.TracesSampler == "traceidratio" && (c.TracesSamplerArg <= 0 || c.TracesSamplerArg > 1) {
		return fmt.Errorf("observability: traceidratio sampler needs an argument in (0, 1]")
	}
	if c.TracesSamplerArg < 0 {
		return fmt.Errorf("observability: traces sampler argument must be non-negative")
	}
	return nil
}

// parseResourceAttributes reads OTEL_RESOURCE_ATTRIBUTES style key=value,key=value pairs
func parseResourceAttributes(input string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("resource attribute key cannot be empty")
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}

// Init installs the global tracer and meter providers described by rootCfg.
// With OTel disabled the providers are still installed and spans are never sampled.
func Init(ctx context.Context, rootCfg *types.Config, logger *zap.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("observability")
	noop := func(context.Context) error { return nil }

	otelCfg, err := LoadConfig(rootCfg)
	if err != nil {
		return noop, err
	}

	res, err := buildResource(ctx, otelCfg)
	if err != nil {
		return noop, err
	}

	tp, err := installTracer(ctx, otelCfg, res)
	if err != nil {
		return noop, err
	}

	mp, err := installMeter(ctx, otelCfg, res)
	if err != nil {
		_ = NewShutdownFunc(tp, nil, logger)(ctx)
		return noop, err
	}

	logger.Info("OpenTelemetry initialized",
		zap.Bool("enabled", otelCfg.Enabled),
		zap.String("service", otelCfg.ServiceName),
		zap.String("protocol", otelCfg.ExporterProtocol),
		zap.String("endpoint", otelCfg.ExporterEndpoint),
		zap.String("sampler", otelCfg.TracesSampler),
	)
	return NewShutdownFunc(tp, mp, logger), nil
}
