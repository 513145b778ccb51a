package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/dispatch"
	"github.com/ca-srg/prodsearch/internal/extraction"
	"github.com/ca-srg/prodsearch/internal/querybuilder"
	"github.com/ca-srg/prodsearch/internal/types"
)

var (
	// ErrSearchUnavailable is returned when both the primary and the fallback
	// query fail
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrEmptyQuery is returned for blank queries
	ErrEmptyQuery = errors.New("query cannot be empty")
)

var searchTracer = otel.Tracer("prodsearch/search")

// retryableError is implemented by index errors that know whether they are transient
type retryableError interface {
	IsRetryable() bool
}

// Index executes compiled queries
type Index interface {
	Search(ctx context.Context, query *querybuilder.SearchQuery) (*types.HitSet, error)
}

// QueryEnhancer rewrites a raw query before extraction
type QueryEnhancer interface {
	Enhance(ctx context.Context, query string) string
}

// FeatureExtractor turns query text into a FeatureSet; it never fails
type FeatureExtractor interface {
	Extract(ctx context.Context, query string) extraction.Result
}

// UsageRecorder counts outcomes per strategy
type UsageRecorder interface {
	Record(ctx context.Context, strategy types.Strategy) error
}

// Options configures a Service. Enhancer and Usage are optional.
type Options struct {
	Index         Index
	Enhancer      QueryEnhancer
	Extractor     FeatureExtractor
	Pool          *dispatch.Pool
	SearchTimeout time.Duration
	Usage         UsageRecorder
	Logger        *zap.Logger
}

// Service runs the extract, build, execute pipeline for one request
type Service struct {
	index         Index
	enhancer      QueryEnhancer
	extractor     FeatureExtractor
	pool          *dispatch.Pool
	searchTimeout time.Duration
	usage         UsageRecorder
	logger        *zap.Logger
}

// NewService creates a search service
func NewService(opts Options) (*Service, error) {
	if opts.Index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		index:         opts.Index,
		enhancer:      opts.Enhancer,
		extractor:     opts.Extractor,
		pool:          opts.Pool,
		searchTimeout: opts.SearchTimeout,
		usage:         opts.Usage,
		logger:        logger.Named("search"),
	}, nil
}

// Search interprets rawQuery, runs the primary query and at most one simple
// fallback, and returns the top hits. image may be nil.
func (s *Service) Search(ctx context.Context, rawQuery string, image *types.ImageFeatures) (*types.SearchOutcome, error) {
	ctx, span := searchTracer.Start(ctx, "search.orchestrate")
	defer span.End()

	start := time.Now()
	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		span.RecordError(ErrEmptyQuery)
		span.SetStatus(codes.Error, "invalid_query")
		return nil, ErrEmptyQuery
	}

	outcome := &types.SearchOutcome{
		ID:    uuid.New(),
		Query: rawQuery,
	}
	logger := s.logger.With(zap.String("search_id", outcome.ID.String()))

	extractionInput := rawQuery
	if s.enhancer != nil {
		extractionInput = s.enhancer.Enhance(ctx, rawQuery)
	}
	extracted := s.extractor.Extract(ctx, extractionInput)
	outcome.Features = extracted.Features
	outcome.Extraction = extracted.Source

	var primary *querybuilder.SearchQuery
	if image.HasEmbedding() {
		primary = querybuilder.BuildVectorRanked(strings.Join(image.Labels, " "), image.Embedding)
	} else {
		primary = querybuilder.BuildRich(outcome.Features, rawQuery)
	}
	span.SetAttributes(
		attribute.String("search.id", outcome.ID.String()),
		attribute.String("search.extraction", string(outcome.Extraction)),
		attribute.String("search.strategy.primary", string(primary.Strategy)),
		attribute.Bool("search.image", image != nil),
	)

	hits, attempt := s.execute(ctx, primary)
	outcome.Attempts = append(outcome.Attempts, attempt)
	used := primary

	if !attempt.Succeeded() {
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "canceled")
			return nil, fmt.Errorf("search aborted: %w", ctx.Err())
		}
		logger.Warn("primary query failed, retrying with simple query",
			zap.String("strategy", string(primary.Strategy)),
			zap.Bool("retryable", attempt.Retryable),
			zap.Error(attempt.Err),
		)
		fallback := querybuilder.BuildSimple(rawQuery, &outcome.Features)
		hits, attempt = s.execute(ctx, fallback)
		outcome.Attempts = append(outcome.Attempts, attempt)
		used = fallback
	}

	if !attempt.Succeeded() {
		outcome.Strategy = types.StrategyUnavailable
		outcome.Took = time.Since(start)
		s.record(ctx, types.StrategyUnavailable)

		err := fmt.Errorf("%w: %v", ErrSearchUnavailable, attempt.Err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "search_unavailable")
		logger.Error("search unavailable",
			zap.Int("attempts", len(outcome.Attempts)),
			zap.Error(attempt.Err),
		)
		return nil, err
	}

	outcome.Strategy = used.Strategy
	outcome.QueryUsed = used.Body()
	outcome.Total = hits.Total
	outcome.MaxScore = hits.MaxScore
	outcome.Hits = append([]types.Hit(nil), hits.Hits...)
	types.SortHits(outcome.Hits)
	if len(outcome.Hits) > types.MaxResults {
		outcome.Hits = outcome.Hits[:types.MaxResults]
	}
	outcome.Took = time.Since(start)
	s.record(ctx, outcome.Strategy)

	span.SetAttributes(
		attribute.String("search.strategy", string(outcome.Strategy)),
		attribute.Int("search.attempts", len(outcome.Attempts)),
		attribute.Int64("search.results.total_hits", outcome.Total),
		attribute.Int("search.results.returned", len(outcome.Hits)),
		attribute.Float64("search.execution_ms", float64(outcome.Took.Milliseconds())),
	)
	span.SetStatus(codes.Ok, "search_completed")
	logger.Info("search completed",
		zap.String("strategy", string(outcome.Strategy)),
		zap.String("extraction", string(outcome.Extraction)),
		zap.Int("attempts", len(outcome.Attempts)),
		zap.Int64("total", outcome.Total),
		zap.Int("returned", len(outcome.Hits)),
		zap.Duration("took", outcome.Took),
	)
	return outcome, nil
}

func (s *Service) execute(ctx context.Context, query *querybuilder.SearchQuery) (*types.HitSet, types.Attempt) {
	ctx, span := searchTracer.Start(ctx, "search.execute")
	defer span.End()
	span.SetAttributes(attribute.String("search.strategy", string(query.Strategy)))

	start := time.Now()
	hits, err := dispatch.Call(ctx, s.pool, s.searchTimeout, func(ctx context.Context) (*types.HitSet, error) {
		return s.index.Search(ctx, query)
	})
	if err == nil && hits == nil {
		err = fmt.Errorf("index returned no result")
	}

	attempt := types.Attempt{Strategy: query.Strategy, Err: err, Duration: time.Since(start)}
	if err != nil {
		attempt.Error = err.Error()
		var re retryableError
		attempt.Retryable = errors.As(err, &re) && re.IsRetryable()
		span.SetAttributes(attribute.Bool("search.retryable", attempt.Retryable))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query_failed")
	}
	return hits, attempt
}

func (s *Service) record(ctx context.Context, strategy types.Strategy) {
	if s.usage == nil {
		return
	}
	if err := s.usage.Record(context.WithoutCancel(ctx), strategy); err != nil {
		s.logger.Warn("failed to record usage", zap.String("strategy", string(strategy)), zap.Error(err))
	}
}
