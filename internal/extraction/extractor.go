package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
	"github.com/ca-srg/prodsearch/internal/prompts"
	"github.com/ca-srg/prodsearch/internal/types"
)

const (
	extractTemperature = 0.1
	extractMaxTokens   = 500
	// one retry when the model replies with unusable JSON or the provider
	// reports a transient failure
	maxExtractAttempts = 2
)

// ErrMalformedOutput marks a model reply that did not yield a FeatureSet
var ErrMalformedOutput = errors.New("malformed extraction output")

// Result is the outcome of one extraction. Features is always usable.
type Result struct {
	Features types.FeatureSet
	Source   types.ExtractionSource
	// Attempts counts model calls made
	Attempts int
	// Err is the last model failure when Source is fallback
	Err error
}

// Extractor turns query text into a FeatureSet using a chat model, falling
// back to pattern matching when the model is unavailable or keeps replying
// with malformed output.
type Extractor struct {
	client llm.ChatClient
	prompt prompts.Prompt
	logger *zap.Logger
}

// NewExtractor creates an Extractor. With a nil client every call uses the fallback.
func NewExtractor(client llm.ChatClient, prompt prompts.Prompt, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{client: client, prompt: prompt, logger: logger.Named("extractor")}
}

// Extract never fails.
func (x *Extractor) Extract(ctx context.Context, query string) Result {
	ctx, span := extractionTracer.Start(ctx, "extraction.extract")
	defer span.End()

	hash := queryFingerprint(query)
	span.SetAttributes(attribute.String("query.hash", hash))

	if x.client == nil || strings.TrimSpace(query) == "" {
		span.SetAttributes(attribute.String("extraction.source", string(types.ExtractionFallback)))
		return Result{Features: Fallback(query), Source: types.ExtractionFallback}
	}

	var lastErr error
	attempts := 0
	for attempts < maxExtractAttempts {
		attempts++
		features, err := x.invoke(ctx, query)
		if err == nil {
			span.SetAttributes(
				attribute.String("extraction.source", string(types.ExtractionLLM)),
				attribute.Int("extraction.attempts", attempts),
			)
			return Result{Features: features, Source: types.ExtractionLLM, Attempts: attempts}
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		x.logger.Debug("extraction attempt failed, retrying",
			zap.String("query_hash", hash),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "extraction_fallback")
	span.SetAttributes(
		attribute.String("extraction.source", string(types.ExtractionFallback)),
		attribute.Int("extraction.attempts", attempts),
	)
	x.logger.Warn("feature extraction failed, using fallback",
		zap.String("query_hash", hash),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return Result{Features: Fallback(query), Source: types.ExtractionFallback, Attempts: attempts, Err: lastErr}
}

func retryable(err error) bool {
	if errors.Is(err, ErrMalformedOutput) {
		return true
	}
	var llmErr *llm.Error
	return errors.As(err, &llmErr) && llmErr.Retryable
}

func (x *Extractor) invoke(ctx context.Context, query string) (types.FeatureSet, error) {
	req := llm.NewChatRequest("extract", x.prompt.System, x.prompt.Render(query, ""))
	req.Temperature = extractTemperature
	req.MaxTokens = extractMaxTokens
	req.JSONMode = true

	reply, err := x.client.Chat(ctx, req)
	if err != nil {
		return types.FeatureSet{}, fmt.Errorf("extraction call failed: %w", err)
	}

	obj, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return types.FeatureSet{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	features, err := types.ParseFeatureSet(obj)
	if err != nil {
		return types.FeatureSet{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return features, nil
}
