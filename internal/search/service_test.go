package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/dispatch"
	"github.com/ca-srg/prodsearch/internal/extraction"
	"github.com/ca-srg/prodsearch/internal/querybuilder"
	"github.com/ca-srg/prodsearch/internal/types"
)

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Search(ctx context.Context, query *querybuilder.SearchQuery) (*types.HitSet, error) {
	args := m.Called(query.Strategy)
	if hs := args.Get(0); hs != nil {
		return hs.(*types.HitSet), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubExtractor struct {
	result extraction.Result
	inputs []string
}

func (s *stubExtractor) Extract(_ context.Context, query string) extraction.Result {
	s.inputs = append(s.inputs, query)
	return s.result
}

type stubEnhancer struct{ out string }

func (s stubEnhancer) Enhance(context.Context, string) string { return s.out }

type recordingUsage struct {
	strategies []types.Strategy
}

func (r *recordingUsage) Record(_ context.Context, strategy types.Strategy) error {
	r.strategies = append(r.strategies, strategy)
	return nil
}

func rating(v float64) *float64 { return &v }

func newService(t *testing.T, index Index, extractor FeatureExtractor, usage UsageRecorder) *Service {
	t.Helper()
	pool, err := dispatch.NewPool(4, 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	svc, err := NewService(Options{
		Index:     index,
		Extractor: extractor,
		Pool:      pool,
		Usage:     usage,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return svc
}

func llmFeatures() extraction.Result {
	fs := types.NewFeatureSet()
	fs.Brands = []string{"Nike"}
	return extraction.Result{Features: fs, Source: types.ExtractionLLM, Attempts: 1}
}

func TestSearch_RichStrategySortsAndTruncates(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", types.StrategyRich).Return(&types.HitSet{
		Total:    5,
		MaxScore: 3,
		Hits: []types.Hit{
			{ID: "low", Score: 1},
			{ID: "tie-unrated", Score: 3},
			{ID: "tie-rated", Score: 3, Product: types.Product{Rating: rating(4.5)}},
		},
	}, nil).Once()
	usage := &recordingUsage{}

	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, usage)
	outcome, err := svc.Search(context.Background(), " nike shoes ", nil)
	require.NoError(t, err)

	assert.Equal(t, "nike shoes", outcome.Query)
	assert.Equal(t, types.StrategyRich, outcome.Strategy)
	assert.Equal(t, types.ExtractionLLM, outcome.Extraction)
	require.Len(t, outcome.Hits, 2)
	assert.Equal(t, "tie-rated", outcome.Hits[0].ID)
	assert.Equal(t, "tie-unrated", outcome.Hits[1].ID)
	assert.Equal(t, int64(5), outcome.Total)
	require.Len(t, outcome.Attempts, 1)
	assert.True(t, outcome.Attempts[0].Succeeded())
	assert.NotNil(t, outcome.QueryUsed["query"])
	assert.Equal(t, []types.Strategy{types.StrategyRich}, usage.strategies)
	index.AssertExpectations(t)
}

func TestSearch_FallsBackToSimpleOnce(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", types.StrategyRich).Return(nil, errors.New("parse exception")).Once()
	index.On("Search", types.StrategySimple).Return(&types.HitSet{Hits: []types.Hit{{ID: "a", Score: 1}}, Total: 1}, nil).Once()

	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, nil)
	outcome, err := svc.Search(context.Background(), "nike shoes", nil)
	require.NoError(t, err)

	assert.Equal(t, types.StrategySimple, outcome.Strategy)
	require.Len(t, outcome.Attempts, 2)
	assert.False(t, outcome.Attempts[0].Succeeded())
	assert.Equal(t, "parse exception", outcome.Attempts[0].Error)
	assert.True(t, outcome.Attempts[1].Succeeded())
	index.AssertNumberOfCalls(t, "Search", 2)
}

func TestSearch_UnavailableAfterTwoFailures(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", mock.Anything).Return(nil, errors.New("connection refused"))
	usage := &recordingUsage{}

	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, usage)
	outcome, err := svc.Search(context.Background(), "nike shoes", nil)

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrSearchUnavailable)
	index.AssertNumberOfCalls(t, "Search", 2)
	assert.Equal(t, []types.Strategy{types.StrategyUnavailable}, usage.strategies)
}

type transientError struct{ retryable bool }

func (e transientError) Error() string     { return "index overloaded" }
func (e transientError) IsRetryable() bool { return e.retryable }

func TestSearch_AttemptCarriesRetryableHint(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", types.StrategyRich).Return(nil, fmt.Errorf("wrapped: %w", transientError{retryable: true})).Once()
	index.On("Search", types.StrategySimple).Return(&types.HitSet{Total: 1, Hits: []types.Hit{{ID: "a"}}}, nil).Once()

	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, nil)
	outcome, err := svc.Search(context.Background(), "nike shoes", nil)

	require.NoError(t, err)
	require.Len(t, outcome.Attempts, 2)
	assert.True(t, outcome.Attempts[0].Retryable)
	assert.False(t, outcome.Attempts[1].Retryable)
}

func TestSearch_VectorStrategyWhenImageHasEmbedding(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", types.StrategyVector).Return(&types.HitSet{}, nil).Once()

	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, nil)
	outcome, err := svc.Search(context.Background(), "shoes like this", &types.ImageFeatures{
		Labels:    []string{"sneaker"},
		Embedding: []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyVector, outcome.Strategy)
	assert.Empty(t, outcome.Hits)
}

func TestSearch_ImageWithoutEmbeddingUsesRich(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", types.StrategyRich).Return(&types.HitSet{}, nil).Once()

	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, nil)
	outcome, err := svc.Search(context.Background(), "shoes", &types.ImageFeatures{Labels: []string{"sneaker"}})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyRich, outcome.Strategy)
}

func TestSearch_EnhancedTextFeedsExtraction(t *testing.T) {
	index := &mockIndex{}
	index.On("Search", types.StrategyRich).Return(&types.HitSet{}, nil).Once()
	extractor := &stubExtractor{result: llmFeatures()}

	pool, err := dispatch.NewPool(1, 0, nil)
	require.NoError(t, err)
	defer pool.Close()
	svc, err := NewService(Options{Index: index, Extractor: extractor, Enhancer: stubEnhancer{out: "I want Nike shoes"}, Pool: pool})
	require.NoError(t, err)

	outcome, err := svc.Search(context.Background(), "nike shoes", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"I want Nike shoes"}, extractor.inputs)
	assert.Equal(t, "nike shoes", outcome.Query)
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := newService(t, &mockIndex{}, &stubExtractor{}, nil)
	_, err := svc.Search(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_CanceledContextSkipsFallback(t *testing.T) {
	index := &mockIndex{}
	svc := newService(t, index, &stubExtractor{result: llmFeatures()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Search(ctx, "nike shoes", nil)
	assert.ErrorIs(t, err, context.Canceled)
	index.AssertNotCalled(t, "Search", mock.Anything)
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Options{Extractor: &stubExtractor{}})
	assert.Error(t, err)
	_, err = NewService(Options{Index: &mockIndex{}})
	assert.Error(t, err)
}
