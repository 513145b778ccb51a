package opensearch

import (
	"fmt"
	"time"

	"github.com/ca-srg/prodsearch/internal/types"
)

func NewConfigFromTypes(cfg *types.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Config{
		Endpoint:          cfg.OpenSearchEndpoint,
		Index:             cfg.OpenSearchIndex,
		Region:            cfg.OpenSearchRegion,
		Auth:              cfg.OpenSearchAuth,
		Username:          cfg.OpenSearchUsername,
		Password:          cfg.OpenSearchPassword,
		APIKey:            cfg.OpenSearchAPIKey,
		InsecureSkipTLS:   cfg.OpenSearchInsecureSkipTLS,
		RateLimit:         cfg.OpenSearchRateLimit,
		RateBurst:         cfg.OpenSearchRateBurst,
		ConnectionTimeout: cfg.OpenSearchConnectionTimeout,
		RequestTimeout:    cfg.OpenSearchRequestTimeout,
		MaxConnections:    cfg.OpenSearchMaxConnections,
		MaxIdleConns:      cfg.OpenSearchMaxIdleConns,
		IdleConnTimeout:   cfg.OpenSearchIdleConnTimeout,
	}, nil
}

// Validate checks required fields and clamps the rest to safe ranges
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Index == "" {
		return fmt.Errorf("index is required")
	}

	switch c.Auth {
	case "":
		c.Auth = AuthNone
	case AuthNone:
	case AuthBasic:
		if c.Username == "" {
			return fmt.Errorf("username is required for basic auth")
		}
	case AuthAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("api key is required for apikey auth")
		}
	case AuthSigV4:
		if c.Region == "" {
			return fmt.Errorf("region is required for sigv4 auth")
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Auth)
	}

	if c.RateLimit <= 0 {
		c.RateLimit = 10.0
	}
	if c.RateLimit > 1000 {
		c.RateLimit = 1000.0
	}

	if c.RateBurst <= 0 {
		c.RateBurst = 20
	}
	if c.RateBurst > 10000 {
		c.RateBurst = 10000
	}

	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.ConnectionTimeout > 300*time.Second {
		c.ConnectionTimeout = 300 * time.Second
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.RequestTimeout > 600*time.Second {
		c.RequestTimeout = 600 * time.Second
	}

	if c.MaxConnections <= 0 {
		c.MaxConnections = 100
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}

	return nil
}
