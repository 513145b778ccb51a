package formatter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
	"github.com/ca-srg/prodsearch/internal/prompts"
	"github.com/ca-srg/prodsearch/internal/types"
)

// NoResultsMessage is shown when a search returns nothing
const NoResultsMessage = "No products found matching your criteria. Try adjusting your search terms."

const (
	formatTemperature = 0.7
	formatMaxTokens   = 1000
	// descriptions are cut to this many runes before display
	descriptionLimit = 200
)

var formatterTracer = otel.Tracer("prodsearch/formatter")

// URLResolver maps stored image URIs to displayable URLs
type URLResolver interface {
	Resolve(ctx context.Context, uri string) string
}

// Formatter renders a SearchOutcome for people
type Formatter struct {
	client   llm.ChatClient
	prompt   prompts.Prompt
	resolver URLResolver
	logger   *zap.Logger
}

// New creates a Formatter. A nil client always uses the template; a nil
// resolver leaves image URIs untouched.
func New(client llm.ChatClient, prompt prompts.Prompt, resolver URLResolver, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{client: client, prompt: prompt, resolver: resolver, logger: logger.Named("formatter")}
}

// Format never fails. Empty outcomes produce the no-results message without a
// model call; model failures produce the deterministic template.
func (f *Formatter) Format(ctx context.Context, outcome *types.SearchOutcome, rawQuery string) types.DisplayPayload {
	ctx, span := formatterTracer.Start(ctx, "formatter.format")
	defer span.End()

	if outcome == nil || len(outcome.Hits) == 0 {
		span.SetAttributes(attribute.String("formatter.kind", string(types.DisplayEmpty)))
		return types.DisplayPayload{Kind: types.DisplayEmpty, Text: NoResultsMessage}
	}

	products := f.DisplayProducts(ctx, outcome.Hits)
	if f.client != nil {
		payload, err := f.formatWithLLM(ctx, products, rawQuery)
		if err == nil {
			span.SetAttributes(attribute.String("formatter.kind", string(types.DisplayLLM)))
			return payload
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm_format_failed")
		f.logger.Warn("LLM formatting failed, using template", zap.Error(err))
	}

	span.SetAttributes(attribute.String("formatter.kind", string(types.DisplayTemplate)))
	return types.DisplayPayload{Kind: types.DisplayTemplate, Text: Template(products, rawQuery, outcome.Total)}
}

// DisplayProducts converts the first hits into their display form
func (f *Formatter) DisplayProducts(ctx context.Context, hits []types.Hit) []types.DisplayProduct {
	if len(hits) > types.MaxResults {
		hits = hits[:types.MaxResults]
	}
	products := make([]types.DisplayProduct, 0, len(hits))
	for _, h := range hits {
		p := h.Product
		imageURL := p.ImageURL
		if f.resolver != nil && imageURL != "" {
			imageURL = f.resolver.Resolve(ctx, imageURL)
		}
		products = append(products, types.DisplayProduct{
			Name:        p.Name,
			Brand:       p.Brand,
			Category:    p.Category,
			Description: TruncateDescription(p.Description, descriptionLimit),
			ImageURL:    imageURL,
			Price:       p.Price,
			Rating:      p.Rating,
			Score:       h.Score,
		})
	}
	return products
}

func (f *Formatter) formatWithLLM(ctx context.Context, products []types.DisplayProduct, rawQuery string) (types.DisplayPayload, error) {
	productJSON, err := json.Marshal(products)
	if err != nil {
		return types.DisplayPayload{}, fmt.Errorf("failed to marshal products: %w", err)
	}

	req := llm.NewChatRequest("format", f.prompt.System, f.prompt.Render(rawQuery, string(productJSON)))
	req.Temperature = formatTemperature
	req.MaxTokens = formatMaxTokens

	reply, err := f.client.Chat(ctx, req)
	if err != nil {
		return types.DisplayPayload{}, err
	}

	obj, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return types.DisplayPayload{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return types.DisplayPayload{}, fmt.Errorf("failed to parse formatted reply: %w", err)
	}
	_, hasSummary := fields["summary"]
	_, hasProducts := fields["products"]
	if !hasSummary && !hasProducts {
		return types.DisplayPayload{}, fmt.Errorf("formatted reply has neither summary nor products")
	}
	return types.DisplayPayload{Kind: types.DisplayLLM, JSON: obj}, nil
}

// TruncateDescription cuts s to limit runes, adding "..." only when it cuts
func TruncateDescription(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// Template renders products as plain text
func Template(products []types.DisplayProduct, rawQuery string, total int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d best matches for '%s' (from %d total results)\n\n", types.MaxResults, rawQuery, total)

	for i, p := range products {
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		category := p.Category
		if category == "" {
			category = "N/A"
		}
		rating := "N/A"
		if p.Rating != nil {
			rating = strconv.FormatFloat(*p.Rating, 'f', -1, 64) + "/5"
		}

		fmt.Fprintf(&sb, "#%d - %s\n", i+1, name)
		fmt.Fprintf(&sb, "   Price: $%.2f\n", p.Price)
		fmt.Fprintf(&sb, "   Rating: %s\n", rating)
		fmt.Fprintf(&sb, "   Category: %s\n", category)
		if p.Brand != "" {
			fmt.Fprintf(&sb, "   Brand: %s\n", p.Brand)
		}
		if p.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", p.Description)
		}
		fmt.Fprintf(&sb, "   Relevance Score: %.2f\n\n", p.Score)
	}

	fmt.Fprintf(&sb, "These are the %d most relevant products based on your search criteria!", types.MaxResults)
	return sb.String()
}
