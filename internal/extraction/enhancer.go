package extraction

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
	"github.com/ca-srg/prodsearch/internal/prompts"
)

const (
	enhanceTemperature = 0.1
	enhanceMaxTokens   = 500
)

// Enhancer rewrites a terse shopping query into a fuller description before
// feature extraction.
type Enhancer struct {
	client  llm.ChatClient
	prompt  prompts.Prompt
	enabled bool
	logger  *zap.Logger
}

// NewEnhancer creates an Enhancer. A nil client or enabled=false makes Enhance
// return its input unchanged.
func NewEnhancer(client llm.ChatClient, prompt prompts.Prompt, enabled bool, logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		client:  client,
		prompt:  prompt,
		enabled: enabled && client != nil,
		logger:  logger.Named("enhancer"),
	}
}

// Enhance returns the rewritten query, or the original query when the model
// fails or replies with nothing usable.
func (e *Enhancer) Enhance(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if !e.enabled || query == "" {
		return query
	}

	ctx, span := extractionTracer.Start(ctx, "extraction.enhance")
	defer span.End()
	span.SetAttributes(attribute.String("query.hash", queryFingerprint(query)))

	req := llm.NewChatRequest("enhance", e.prompt.System, e.prompt.Render(query, ""))
	req.Temperature = enhanceTemperature
	req.MaxTokens = enhanceMaxTokens

	reply, err := e.client.Chat(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enhance_failed")
		e.logger.Warn("query enhancement failed, using raw query",
			zap.String("query_hash", queryFingerprint(query)),
			zap.Error(err),
		)
		return query
	}

	enhanced := strings.Trim(strings.TrimSpace(reply), `"`)
	if enhanced == "" {
		return query
	}
	e.logger.Debug("query enhanced",
		zap.String("query_hash", queryFingerprint(query)),
		zap.Int("enhanced_length", len(enhanced)),
	)
	return enhanced
}
