package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/metrics"
	"github.com/ca-srg/prodsearch/internal/search"
)

const productSearchTool = "product_search"

var (
	mcpTracer = otel.Tracer("prodsearch/server/mcp")

	mcpMetricsOnce      sync.Once
	mcpRequestCounter   metric.Int64Counter
	mcpErrorCounter     metric.Int64Counter
	mcpLatencyHistogram metric.Float64Histogram
)

func initMCPMetrics(log *zap.Logger) {
	mcpMetricsOnce.Do(func() {
		meter := otel.Meter("prodsearch/server/mcp")

		var err error
		mcpRequestCounter, err = meter.Int64Counter(
			"prodsearch.mcp.requests.total",
			metric.WithDescription("Total MCP tool requests"),
		)
		if err != nil {
			log.Warn("failed to create MCP request counter", zap.Error(err))
		}

		mcpErrorCounter, err = meter.Int64Counter(
			"prodsearch.mcp.errors.total",
			metric.WithDescription("Total MCP tool errors"),
		)
		if err != nil {
			log.Warn("failed to create MCP error counter", zap.Error(err))
		}

		mcpLatencyHistogram, err = meter.Float64Histogram(
			"prodsearch.mcp.response_time",
			metric.WithDescription("MCP tool response time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Warn("failed to create MCP latency histogram", zap.Error(err))
		}
	})
}

func recordMCPMetrics(ctx context.Context, attrs []attribute.KeyValue, duration time.Duration, errType string) {
	if mcpRequestCounter != nil {
		mcpRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if mcpLatencyHistogram != nil {
		mcpLatencyHistogram.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
	if errType != "" && mcpErrorCounter != nil {
		errAttrs := append(append([]attribute.KeyValue{}, attrs...), attribute.String("error.type", errType))
		mcpErrorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}
}

type productSearchArgs struct {
	Query     string `json:"query"`
	ShowQuery bool   `json:"show_query,omitempty"`
}

type productSearchResult struct {
	Results    json.RawMessage        `json:"results"`
	Strategy   string                 `json:"strategy,omitempty"`
	Total      int64                  `json:"total"`
	Extraction string                 `json:"extraction,omitempty"`
	QueryUsed  map[string]interface{} `json:"query_used,omitempty"`
}

func productSearchSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {
				Type:        "string",
				Description: "Natural language product search, e.g. \"wireless headphones under $100\"",
			},
			"show_query": {
				Type:        "boolean",
				Description: "Include the OpenSearch query body that produced the results",
			},
		},
		Required: []string{"query"},
	}
}

func newMCPServer(runner Runner, version string, log *zap.Logger) *mcp.Server {
	initMCPMetrics(log)

	srv := mcp.NewServer(&mcp.Implementation{Name: "prodsearch", Version: version}, nil)
	h := &productSearchHandler{runner: runner, logger: log.Named("mcp")}
	srv.AddTool(&mcp.Tool{
		Name:        productSearchTool,
		Description: "Search the product catalog with natural language. Understands price ranges, brands, ratings and categories.",
		InputSchema: productSearchSchema(),
	}, h.handle)
	return srv
}

type productSearchHandler struct {
	runner Runner
	logger *zap.Logger
}

func (h *productSearchHandler) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := mcpTracer.Start(ctx, "mcp.product_search")
	defer span.End()

	start := time.Now()
	errType := ""
	attrs := []attribute.KeyValue{attribute.String("mcp.tool", productSearchTool)}
	defer func() {
		recordMCPMetrics(ctx, attrs, time.Since(start), errType)
	}()

	var args productSearchArgs
	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			errType = "invalid_arguments"
			span.SetStatus(codes.Error, errType)
			return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		errType = "missing_query"
		span.SetStatus(codes.Error, errType)
		return toolError("query is required"), nil
	}
	span.SetAttributes(attribute.Bool("mcp.show_query", args.ShowQuery))

	resp, err := h.runner.Run(metrics.WithSurface(ctx, metrics.SurfaceMCP), search.Request{Query: args.Query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		if errors.Is(err, search.ErrSearchUnavailable) {
			errType = "search_unavailable"
			h.logger.Warn("search unavailable", zap.Error(err))
			return toolError("search is temporarily unavailable"), nil
		}
		errType = "search_failed"
		h.logger.Error("product search failed", zap.Error(err))
		return toolError("search failed"), nil
	}
	observeOutcome(metrics.SurfaceMCP, resp)

	display, err := json.Marshal(resp.Display)
	if err != nil {
		errType = "encode_failed"
		return nil, fmt.Errorf("encode display payload: %w", err)
	}
	out := productSearchResult{Results: display}
	if resp.Outcome != nil {
		out.Strategy = string(resp.Outcome.Strategy)
		out.Total = resp.Outcome.Total
		out.Extraction = string(resp.Outcome.Extraction)
		if args.ShowQuery {
			out.QueryUsed = resp.Outcome.QueryUsed
		}
		attrs = append(attrs, attribute.String("search.strategy", out.Strategy))
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		errType = "encode_failed"
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
