package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	opensearch "github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Authentication modes
const (
	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthAPIKey = "apikey"
	AuthSigV4  = "sigv4"
)

type Client struct {
	client      *opensearchapi.Client
	rateLimiter *rate.Limiter
	config      *Config
	logger      *zap.Logger
	metrics     *PerformanceMetrics
}

type Config struct {
	Endpoint          string
	Index             string
	Region            string
	Auth              string
	Username          string
	Password          string
	APIKey            string
	InsecureSkipTLS   bool
	RateLimit         float64
	RateBurst         int
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
	MaxConnections    int
	MaxIdleConns      int
	IdleConnTimeout   time.Duration
}

// NewClient builds an OpenSearch client for the configured auth mode.
// Transport-level retries are disabled; callers own the retry policy.
func NewClient(ctx context.Context, cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipTLS,
		},
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectionTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   max(cfg.MaxIdleConns/2, 1),
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	clientConfig := opensearch.Config{
		Addresses:    []string{cfg.Endpoint},
		Transport:    transport,
		DisableRetry: true,
	}

	switch cfg.Auth {
	case AuthBasic:
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	case AuthAPIKey:
		clientConfig.Header = http.Header{"Authorization": []string{"ApiKey " + cfg.APIKey}}
	case AuthSigV4:
		awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		signer, err := requestsigner.NewSignerWithService(awsConfig, "es")
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS signer: %w", err)
		}
		clientConfig.Signer = signer
	}

	osClient, err := opensearchapi.NewClient(opensearchapi.Config{Client: clientConfig})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &Client{
		client:      osClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		config:      cfg,
		logger:      logger.Named("opensearch"),
		metrics:     &PerformanceMetrics{},
	}, nil
}

// Index returns the default product index
func (c *Client) Index() string {
	return c.config.Index
}

func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	resp, err := c.client.Cluster.Health(ctx, &opensearchapi.ClusterHealthReq{})
	if err != nil {
		c.logger.Warn("health check failed", zap.Error(err))
		return fmt.Errorf("health check failed: %w", err)
	}

	if resp != nil {
		c.logger.Debug("health check successful", zap.String("status", resp.Status))
	}
	return nil
}

func (c *Client) WaitForRateLimit(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// PerformanceMetrics holds per-client request statistics
type PerformanceMetrics struct {
	mu              sync.Mutex
	RequestCount    int64
	SuccessCount    int64
	ErrorCount      int64
	TotalDuration   time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsSnapshot is a copy of PerformanceMetrics safe to read without locking
type MetricsSnapshot struct {
	RequestCount    int64
	SuccessCount    int64
	ErrorCount      int64
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// RecordRequest records request metrics
func (c *Client) RecordRequest(duration time.Duration, success bool) {
	m := c.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestCount++
	m.TotalDuration += duration
	m.LastRequestTime = time.Now()

	if success {
		m.SuccessCount++
	} else {
		m.ErrorCount++
	}
	m.AverageLatency = m.TotalDuration / time.Duration(m.RequestCount)
}

// GetMetrics returns current performance metrics
func (c *Client) GetMetrics() MetricsSnapshot {
	m := c.metrics
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		RequestCount:    m.RequestCount,
		SuccessCount:    m.SuccessCount,
		ErrorCount:      m.ErrorCount,
		AverageLatency:  m.AverageLatency,
		LastRequestTime: m.LastRequestTime,
	}
}

// LogMetrics logs current performance metrics
func (c *Client) LogMetrics() {
	s := c.GetMetrics()
	c.logger.Info("client metrics",
		zap.Int64("requests", s.RequestCount),
		zap.Int64("success", s.SuccessCount),
		zap.Int64("errors", s.ErrorCount),
		zap.Duration("avg_latency", s.AverageLatency),
	)
}
