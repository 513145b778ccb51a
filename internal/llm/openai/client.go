package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
)

const providerName = "openai"

// Client implements llm.ChatClient over the OpenAI-compatible chat completions API.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewClient creates an OpenAI-compatible chat client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.Named("openai"),
	}
}

// Chat implements llm.ChatClient. JSONMode requests a json_object response format.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (string, error) {
	if req == nil || len(req.Messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", parseAPIError(req.Operation, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &llm.Error{Provider: providerName, Operation: req.Operation, Err: llm.ErrEmptyResponse}
	}

	c.logger.Debug("chat completed",
		zap.String("operation", req.Operation),
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// parseAPIError maps go-openai errors to *llm.Error with a retryable hint.
func parseAPIError(operation string, err error) error {
	out := &llm.Error{Provider: providerName, Operation: operation, Err: err}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		out.Code = strconv.Itoa(apiErr.HTTPStatusCode)
		if apiErr.Type != "" {
			out.Code = apiErr.Type
		}
		out.Retryable = retryableStatus(apiErr.HTTPStatusCode)
		return out
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		out.Code = strconv.Itoa(reqErr.HTTPStatusCode)
		out.Retryable = retryableStatus(reqErr.HTTPStatusCode)
	}
	return out
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
