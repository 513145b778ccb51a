package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ca-srg/prodsearch/internal/types"
	"github.com/joho/godotenv"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

// Supported OpenSearch authentication modes
const (
	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthAPIKey = "apikey"
	AuthSigV4  = "sigv4"
)

// Supported LLM providers
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// Supported image URL resolution modes
const (
	ImageURLPublic  = "public"
	ImageURLPresign = "presign"
)

// Load reads an optional .env file, then environment variables, and validates the result
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	config.Environment = strings.ToLower(strings.TrimSpace(config.Environment))
	if config.Environment == "" {
		config.Environment = "local"
	}

	// Worker pool bounds
	if config.WorkerPoolSize < 1 {
		config.WorkerPoolSize = 1
	}
	if config.WorkerPoolSize > 512 {
		config.WorkerPoolSize = 512
	}
	// Callers beyond the queue are rejected instead of blocking
	if config.WorkerQueueSize < 1 {
		config.WorkerQueueSize = 128
	}
	if config.WorkerQueueSize > 10000 {
		config.WorkerQueueSize = 10000
	}

	// Every external call must stay bounded
	config.LLMTimeout = clampDuration(config.LLMTimeout, time.Second, 2*time.Minute, 20*time.Second)
	config.SearchTimeout = clampDuration(config.SearchTimeout, time.Second, time.Minute, 10*time.Second)
	config.ImageTimeout = clampDuration(config.ImageTimeout, time.Second, 2*time.Minute, 15*time.Second)
	config.ImageURLPresignTTL = clampDuration(config.ImageURLPresignTTL, time.Minute, 7*24*time.Hour, 15*time.Minute)

	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}

	if config.ServerPort < 1 || config.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}

	if err := validateOpenSearchConfig(config); err != nil {
		return fmt.Errorf("OpenSearch configuration validation failed: %w", err)
	}

	if err := validateLLMConfig(config); err != nil {
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}

	config.ImageURLMode = strings.ToLower(strings.TrimSpace(config.ImageURLMode))
	switch config.ImageURLMode {
	case ImageURLPublic, ImageURLPresign:
	case "":
		config.ImageURLMode = ImageURLPublic
	default:
		return fmt.Errorf("IMAGE_URL_MODE must be %q or %q", ImageURLPublic, ImageURLPresign)
	}

	if config.ImageVectorizerAPI != "" {
		if _, err := parseHTTPURL(config.ImageVectorizerAPI); err != nil {
			return fmt.Errorf("invalid IMAGE_VC_API: %w", err)
		}
	}

	return nil
}

// validateOpenSearchConfig validates OpenSearch-specific configuration
func validateOpenSearchConfig(config *Config) error {
	if config.OpenSearchEndpoint == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT is required")
	}
	if _, err := parseHTTPURL(config.OpenSearchEndpoint); err != nil {
		return fmt.Errorf("invalid OPENSEARCH_ENDPOINT: %w", err)
	}

	if config.OpenSearchIndex == "" {
		return fmt.Errorf("OPENSEARCH_INDEX cannot be empty")
	}

	config.OpenSearchAuth = strings.ToLower(strings.TrimSpace(config.OpenSearchAuth))
	switch config.OpenSearchAuth {
	case "", AuthNone:
		config.OpenSearchAuth = AuthNone
	case AuthBasic:
		if config.OpenSearchUsername == "" {
			return fmt.Errorf("OPENSEARCH_USERNAME is required when OPENSEARCH_AUTH=basic")
		}
	case AuthAPIKey:
		// the key may arrive later from Secrets Manager
	case AuthSigV4:
		if config.OpenSearchRegion == "" {
			return fmt.Errorf("OPENSEARCH_REGION is required when OPENSEARCH_AUTH=sigv4")
		}
	default:
		return fmt.Errorf("unsupported OPENSEARCH_AUTH %q", config.OpenSearchAuth)
	}

	// Validate rate limiting configuration
	if config.OpenSearchRateLimit <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT must be greater than 0")
	}
	if config.OpenSearchRateLimit > 1000 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT cannot exceed 1000 requests/second")
	}
	if config.OpenSearchRateBurst <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_BURST must be greater than 0")
	}

	// Validate timeout values
	if config.OpenSearchConnectionTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_CONNECTION_TIMEOUT must be greater than 0")
	}
	if config.OpenSearchRequestTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate connection pool settings
	if config.OpenSearchMaxConnections <= 0 {
		return fmt.Errorf("OPENSEARCH_MAX_CONNECTIONS must be greater than 0")
	}
	if config.OpenSearchMaxIdleConns <= 0 {
		return fmt.Errorf("OPENSEARCH_MAX_IDLE_CONNS must be greater than 0")
	}
	if config.OpenSearchMaxIdleConns > config.OpenSearchMaxConnections {
		return fmt.Errorf("OPENSEARCH_MAX_IDLE_CONNS cannot exceed OPENSEARCH_MAX_CONNECTIONS")
	}

	return nil
}

// validateLLMConfig validates the chat provider selection
func validateLLMConfig(config *Config) error {
	config.LLMProvider = strings.ToLower(strings.TrimSpace(config.LLMProvider))
	switch config.LLMProvider {
	case ProviderOpenAI:
		if config.OpenAIModel == "" {
			return fmt.Errorf("OPENAI_MODEL cannot be empty")
		}
		if config.OpenAIBaseURL != "" {
			if _, err := parseHTTPURL(config.OpenAIBaseURL); err != nil {
				return fmt.Errorf("invalid OPENAI_BASE_URL: %w", err)
			}
		}
	case ProviderBedrock:
		if config.ChatModel == "" {
			return fmt.Errorf("CHAT_MODEL cannot be empty")
		}
		if config.BedrockRegion == "" {
			return fmt.Errorf("BEDROCK_REGION cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", config.LLMProvider)
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(parsedURL.Scheme, "http") {
		return nil, fmt.Errorf("scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("must include a valid host")
	}
	return parsedURL, nil
}

func clampDuration(v, lo, hi, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
