package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
)

const (
	providerName     = "bedrock"
	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 1000
)

// modelInvoker is the subset of the Bedrock runtime API the client needs
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client implements llm.ChatClient with Claude models on AWS Bedrock
type Client struct {
	client  modelInvoker
	modelID string
	region  string
	logger  *zap.Logger
}

// ChatMessage represents a chat message with role and content
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the Claude messages payload in Bedrock format
type ChatRequest struct {
	Messages         []ChatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature"`
	StopSequences    []string      `json:"stop_sequences,omitempty"`
	AnthropicVersion string        `json:"anthropic_version,omitempty"`
	System           string        `json:"system,omitempty"`
}

// ChatResponse represents the response from chat models
type ChatResponse struct {
	Content []ChatContent `json:"content"`
	Usage   ChatUsage     `json:"usage,omitempty"`
}

// ChatContent represents the content in chat response
type ChatContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ChatUsage represents token usage information
type ChatUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewClient creates a Bedrock chat client for the given model
func NewClient(awsConfig aws.Config, modelID string, logger *zap.Logger) *Client {
	return newClient(bedrockruntime.NewFromConfig(awsConfig), modelID, awsConfig.Region, logger)
}

func newClient(invoker modelInvoker, modelID, region string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:  invoker,
		modelID: modelID,
		region:  region,
		logger:  logger.Named("bedrock"),
	}
}

// Chat sends the conversation to the model and returns the first text block.
// System messages are merged into the top-level system prompt.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (string, error) {
	if req == nil || len(req.Messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	var systemPrompts []string
	sanitized := make([]ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		default:
			sanitized = append(sanitized, ChatMessage{Role: string(msg.Role), Content: msg.Content})
		}
	}
	if len(sanitized) == 0 {
		return "", fmt.Errorf("chat messages must include at least one user or assistant message")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	request := ChatRequest{
		Messages:         sanitized,
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		AnthropicVersion: anthropicVersion,
	}
	if len(systemPrompts) > 0 {
		request.System = strings.Join(systemPrompts, "\n\n")
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", classifyError(req.Operation, err)
	}

	var response ChatResponse
	if err := json.Unmarshal(result.Body, &response); err != nil {
		return "", &llm.Error{Provider: providerName, Operation: req.Operation, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	for _, content := range response.Content {
		if content.Type == "text" && strings.TrimSpace(content.Text) != "" {
			c.logger.Debug("chat completed",
				zap.String("operation", req.Operation),
				zap.Int("input_tokens", response.Usage.InputTokens),
				zap.Int("output_tokens", response.Usage.OutputTokens),
			)
			return content.Text, nil
		}
	}
	return "", &llm.Error{Provider: providerName, Operation: req.Operation, Err: llm.ErrEmptyResponse}
}

// ModelID returns the configured model
func (c *Client) ModelID() string {
	return c.modelID
}

// Region returns the AWS region of the client
func (c *Client) Region() string {
	return c.region
}

var retryableCodes = map[string]bool{
	"ThrottlingException":          true,
	"ServiceUnavailableException":  true,
	"InternalServerException":      true,
	"ModelNotReadyException":       true,
	"ModelTimeoutException":        true,
	"ServiceQuotaExceededException": false,
}

func classifyError(operation string, err error) error {
	llmErr := &llm.Error{Provider: providerName, Operation: operation, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		llmErr.Code = apiErr.ErrorCode()
		llmErr.Retryable = retryableCodes[llmErr.Code]
	}
	return llmErr
}
