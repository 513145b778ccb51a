package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
	"github.com/ca-srg/prodsearch/internal/metrics"
	"github.com/ca-srg/prodsearch/internal/observability"
	"github.com/ca-srg/prodsearch/internal/querybuilder"
	"github.com/ca-srg/prodsearch/internal/search"
	commontypes "github.com/ca-srg/prodsearch/internal/types"
)

type failingChat struct{}

func (failingChat) Chat(context.Context, *llm.ChatRequest) (string, error) {
	return "", errors.New("llm offline")
}

type fixedIndex struct {
	hits *commontypes.HitSet
	seen []commontypes.Strategy

	name          string
	healthErr     error
	healthChecks  int
	metricsLogged int
}

func (f *fixedIndex) Index() string { return f.name }

func (f *fixedIndex) HealthCheck(context.Context) error {
	f.healthChecks++
	return f.healthErr
}

func (f *fixedIndex) LogMetrics() { f.metricsLogged++ }

func (f *fixedIndex) Search(_ context.Context, q *querybuilder.SearchQuery) (*commontypes.HitSet, error) {
	f.seen = append(f.seen, q.Strategy)
	return f.hits, nil
}

func testConfig(t *testing.T) *commontypes.Config {
	t.Helper()
	return &commontypes.Config{
		Environment:       "local",
		LLMProvider:       "openai",
		OpenAIAPIKey:      "test-key",
		OpenSearchAuth:    "none",
		OpenSearchIndex:   "products",
		ImageURLMode:      "public",
		ImageURLRegion:    "us-east-2",
		WorkerPoolSize:    4,
		WorkerQueueSize:   16,
		UsageStatsEnabled: true,
		UsageDBPath:       filepath.Join(t.TempDir(), "usage.db"),
	}
}

// overrideDependencies swaps the wiring factories for fakes and restores them on cleanup
func overrideDependencies(t *testing.T, cfg *commontypes.Config, index search.Index) {
	t.Helper()
	prevLoadConfig := loadAppConfig
	prevLoadAWS := loadAWSConfig
	prevChat := newChatClient
	prevIndex := newSearchIndex
	prevObs := initObservation

	loadAppConfig = func() (*commontypes.Config, error) { return cfg, nil }
	loadAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	newChatClient = func(*commontypes.Config, aws.Config, *zap.Logger) (llm.ChatClient, error) {
		return failingChat{}, nil
	}
	newSearchIndex = func(context.Context, *commontypes.Config, *zap.Logger) (search.Index, error) {
		return index, nil
	}
	initObservation = func(context.Context, *commontypes.Config, *zap.Logger) (observability.ShutdownFunc, error) {
		return func(context.Context) error { return nil }, nil
	}

	t.Cleanup(func() {
		loadAppConfig = prevLoadConfig
		loadAWSConfig = prevLoadAWS
		newChatClient = prevChat
		newSearchIndex = prevIndex
		initObservation = prevObs
	})
}

func resetFlags() {
	queryText = ""
	queryImagePath = ""
	outputJSON = false
	showQuery = false
	statsDBPath = ""
	statsYAML = false
	statsJSON = false
}

func usageTotals(t *testing.T, path string) []metrics.Total {
	t.Helper()
	store, err := metrics.NewStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	totals, err := store.Totals(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	return totals
}
