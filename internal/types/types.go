package types

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	ErrorTypeNetworkTimeout ErrorType = "network_timeout"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeUnknown        ErrorType = "unknown"
	// OpenSearch specific error types
	ErrorTypeOpenSearchConnection ErrorType = "opensearch_connection"
	ErrorTypeOpenSearchQuery      ErrorType = "opensearch_query"
	ErrorTypeOpenSearchResponse   ErrorType = "opensearch_response"
)

// Config represents the service configuration
type Config struct {
	// Runtime
	Environment string `json:"environment" env:"PRODSEARCH_ENV,default=local"`
	LogLevel    string `json:"log_level" env:"LOG_LEVEL"`

	// HTTP server configuration
	ServerHost            string        `json:"server_host" env:"SERVER_HOST,default=0.0.0.0"`
	ServerPort            int           `json:"server_port" env:"SERVER_PORT,default=8000"`
	ServerReadTimeout     time.Duration `json:"server_read_timeout" env:"SERVER_READ_TIMEOUT,default=30s"`
	ServerWriteTimeout    time.Duration `json:"server_write_timeout" env:"SERVER_WRITE_TIMEOUT,default=90s"`
	ServerIdleTimeout     time.Duration `json:"server_idle_timeout" env:"SERVER_IDLE_TIMEOUT,default=120s"`
	ServerShutdownTimeout time.Duration `json:"server_shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT,default=30s"`
	MaxUploadBytes        int           `json:"max_upload_bytes" env:"MAX_UPLOAD_BYTES,default=10485760"`
	MCPEnabled            bool          `json:"mcp_enabled" env:"MCP_ENABLED,default=true"`

	// OpenSearch configuration
	OpenSearchEndpoint          string        `json:"opensearch_endpoint" env:"OPENSEARCH_ENDPOINT,required=true"`
	OpenSearchIndex             string        `json:"opensearch_index" env:"OPENSEARCH_INDEX,default=products"`
	OpenSearchAuth              string        `json:"opensearch_auth" env:"OPENSEARCH_AUTH,default=none"`
	OpenSearchUsername          string        `json:"opensearch_username" env:"OPENSEARCH_USERNAME"`
	OpenSearchPassword          string        `json:"-" env:"OPENSEARCH_PASSWORD"`
	OpenSearchAPIKey            string        `json:"-" env:"OPENSEARCH_API_KEY"`
	OpenSearchRegion            string        `json:"opensearch_region" env:"OPENSEARCH_REGION,default=us-east-1"`
	OpenSearchInsecureSkipTLS   bool          `json:"opensearch_insecure_skip_tls" env:"OPENSEARCH_INSECURE_SKIP_TLS,default=false"`
	OpenSearchRateLimit         float64       `json:"opensearch_rate_limit" env:"OPENSEARCH_RATE_LIMIT,default=10.0"`
	OpenSearchRateBurst         int           `json:"opensearch_rate_burst" env:"OPENSEARCH_RATE_BURST,default=20"`
	OpenSearchConnectionTimeout time.Duration `json:"opensearch_connection_timeout" env:"OPENSEARCH_CONNECTION_TIMEOUT,default=30s"`
	OpenSearchRequestTimeout    time.Duration `json:"opensearch_request_timeout" env:"OPENSEARCH_REQUEST_TIMEOUT,default=60s"`
	OpenSearchMaxConnections    int           `json:"opensearch_max_connections" env:"OPENSEARCH_MAX_CONNECTIONS,default=100"`
	OpenSearchMaxIdleConns      int           `json:"opensearch_max_idle_conns" env:"OPENSEARCH_MAX_IDLE_CONNS,default=10"`
	OpenSearchIdleConnTimeout   time.Duration `json:"opensearch_idle_conn_timeout" env:"OPENSEARCH_IDLE_CONN_TIMEOUT,default=90s"`

	// LLM configuration
	LLMProvider             string        `json:"llm_provider" env:"LLM_PROVIDER,default=openai"`
	OpenAIAPIKey            string        `json:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL           string        `json:"openai_base_url" env:"OPENAI_BASE_URL"`
	OpenAIModel             string        `json:"openai_model" env:"OPENAI_MODEL,default=gpt-4"`
	BedrockRegion           string        `json:"bedrock_region" env:"BEDROCK_REGION,default=us-east-1"`
	ChatModel               string        `json:"chat_model" env:"CHAT_MODEL,default=anthropic.claude-3-5-sonnet-20240620-v1:0"`
	QueryEnhancementEnabled bool          `json:"query_enhancement_enabled" env:"QUERY_ENHANCEMENT_ENABLED,default=true"`
	PromptsFile             string        `json:"prompts_file" env:"PROMPTS_FILE"`
	LLMTimeout              time.Duration `json:"llm_timeout" env:"LLM_TIMEOUT,default=20s"`

	// Image classification / embedding collaborator
	ImageVectorizerAPI string        `json:"image_vectorizer_api" env:"IMAGE_VC_API"`
	ImageTimeout       time.Duration `json:"image_timeout" env:"IMAGE_TIMEOUT,default=15s"`

	// Image URL resolution
	ImageURLRegion     string        `json:"image_url_region" env:"IMAGE_URL_REGION,default=us-east-2"`
	ImageURLMode       string        `json:"image_url_mode" env:"IMAGE_URL_MODE,default=public"`
	ImageURLPresignTTL time.Duration `json:"image_url_presign_ttl" env:"IMAGE_URL_PRESIGN_TTL,default=15m"`

	// Secrets Manager overlay
	SecretsManagerSecretID string `json:"secrets_manager_secret_id" env:"SECRETS_MANAGER_SECRET_ID"`
	SecretsManagerRegion   string `json:"secrets_manager_region" env:"SECRETS_MANAGER_REGION,default=us-east-1"`

	// Execution model
	WorkerPoolSize  int           `json:"worker_pool_size" env:"WORKER_POOL_SIZE,default=32"`
	WorkerQueueSize int           `json:"worker_queue_size" env:"WORKER_QUEUE_SIZE,default=128"`
	SearchTimeout   time.Duration `json:"search_timeout" env:"SEARCH_TIMEOUT,default=10s"`

	// Usage statistics
	UsageStatsEnabled bool   `json:"usage_stats_enabled" env:"USAGE_STATS_ENABLED,default=true"`
	UsageDBPath       string `json:"usage_db_path" env:"USAGE_DB_PATH"`

	// OpenTelemetry configuration
	OTelEnabled              bool    `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=prodsearch"`
	OTelResourceAttributes   string  `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelExporterOTLPEndpoint string  `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelTracesSampler        string  `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

// ListenAddress returns the host:port pair the HTTP server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
