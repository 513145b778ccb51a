package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	appconfig "github.com/ca-srg/prodsearch/internal/config"
	"github.com/ca-srg/prodsearch/internal/dispatch"
	"github.com/ca-srg/prodsearch/internal/extraction"
	"github.com/ca-srg/prodsearch/internal/formatter"
	"github.com/ca-srg/prodsearch/internal/imageurl"
	"github.com/ca-srg/prodsearch/internal/imagevec"
	"github.com/ca-srg/prodsearch/internal/llm"
	"github.com/ca-srg/prodsearch/internal/llm/bedrock"
	llmopenai "github.com/ca-srg/prodsearch/internal/llm/openai"
	"github.com/ca-srg/prodsearch/internal/logger"
	"github.com/ca-srg/prodsearch/internal/metrics"
	"github.com/ca-srg/prodsearch/internal/observability"
	"github.com/ca-srg/prodsearch/internal/opensearch"
	"github.com/ca-srg/prodsearch/internal/prompts"
	"github.com/ca-srg/prodsearch/internal/search"
	commontypes "github.com/ca-srg/prodsearch/internal/types"
)

type appConfigLoader func() (*commontypes.Config, error)
type awsConfigLoader func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error)
type chatClientFactory func(cfg *commontypes.Config, awsCfg aws.Config, log *zap.Logger) (llm.ChatClient, error)
type indexFactory func(ctx context.Context, cfg *commontypes.Config, log *zap.Logger) (search.Index, error)

var (
	loadAppConfig   appConfigLoader   = appconfig.Load
	loadAWSConfig   awsConfigLoader   = awsconfig.LoadDefaultConfig
	newChatClient   chatClientFactory = defaultChatClient
	newSearchIndex  indexFactory      = defaultSearchIndex
	openUsageStore                    = openDefaultUsageStore
	initObservation                   = observability.Init
)

// app holds everything one process needs to serve searches
type app struct {
	cfg      *commontypes.Config
	logger   *zap.Logger
	pool     *dispatch.Pool
	index    search.Index
	pipeline *search.Pipeline
	usage    *metrics.Store
	gauge    metric.Registration
	shutdown observability.ShutdownFunc
}

// buildApp loads configuration and wires the search pipeline
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.SecretsManagerSecretID != "" {
		smCfg := awsCfg.Copy()
		smCfg.Region = cfg.SecretsManagerRegion
		cfg, err = appconfig.ResolveSecrets(ctx, cfg, secretsmanager.NewFromConfig(smCfg))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve secrets: %w", err)
		}
	}
	if err := appconfig.ValidateCredentials(cfg); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	a.shutdown, err = initObservation(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a.pool, err = dispatch.NewPool(cfg.WorkerPoolSize, cfg.WorkerQueueSize, log)
	if err != nil {
		return nil, err
	}

	promptSet, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	chat, err := newChatClient(cfg, awsCfg, log)
	if err != nil {
		return nil, err
	}
	pooledChat := llm.NewPooledClient(chat, a.pool, cfg.LLMTimeout)

	index, err := newSearchIndex(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.index = index

	resolver, err := imageurl.NewFromConfig(cfg.ImageURLMode, cfg.ImageURLRegion, awsCfg, cfg.ImageURLPresignTTL, log)
	if err != nil {
		return nil, err
	}

	var usage search.UsageRecorder
	if cfg.UsageStatsEnabled {
		a.usage, err = openUsageStore(cfg.UsageDBPath)
		if err != nil {
			return nil, err
		}
		a.gauge, err = metrics.RegisterGauge(otel.Meter("prodsearch/metrics"), a.usage)
		if err != nil {
			log.Warn("usage gauge not registered", zap.Error(err))
		}
		usage = metrics.NewRecorder(a.usage, log)
	}

	service, err := search.NewService(search.Options{
		Index:         index,
		Enhancer:      extraction.NewEnhancer(pooledChat, promptSet.Enhance, cfg.QueryEnhancementEnabled, log),
		Extractor:     extraction.NewExtractor(pooledChat, promptSet.Extract, log),
		Pool:          a.pool,
		SearchTimeout: cfg.SearchTimeout,
		Usage:         usage,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	var analyzer search.ImageAnalyzer
	if cfg.ImageVectorizerAPI != "" {
		analyzer = imagevec.NewClient(cfg.ImageVectorizerAPI, cfg.ImageTimeout, log)
	}

	a.pipeline = search.NewPipeline(
		service,
		analyzer,
		formatter.New(pooledChat, promptSet.Format, resolver, log),
		a.pool,
		cfg.ImageTimeout,
		log,
	)

	log.Info("prodsearch wired",
		zap.String("environment", cfg.Environment),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("opensearch_index", indexName(cfg, index)),
		zap.Bool("image_analysis", analyzer != nil),
		zap.Bool("usage_stats", a.usage != nil),
		zap.Int("worker_pool_size", cfg.WorkerPoolSize),
	)
	ok = true
	return a, nil
}

type namedIndex interface {
	Index() string
}

// indexName prefers the name the client actually targets
func indexName(cfg *commontypes.Config, index search.Index) string {
	if n, ok := index.(namedIndex); ok && n.Index() != "" {
		return n.Index()
	}
	return cfg.OpenSearchIndex
}

// Close releases resources in reverse wiring order
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.gauge != nil {
		errs = append(errs, a.gauge.Unregister())
	}
	if a.usage != nil {
		errs = append(errs, a.usage.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func defaultChatClient(cfg *commontypes.Config, awsCfg aws.Config, log *zap.Logger) (llm.ChatClient, error) {
	switch cfg.LLMProvider {
	case appconfig.ProviderBedrock:
		bedrockCfg := awsCfg.Copy()
		bedrockCfg.Region = cfg.BedrockRegion
		return bedrock.NewClient(bedrockCfg, cfg.ChatModel, log), nil
	case appconfig.ProviderOpenAI:
		return llmopenai.NewClient(&llmopenai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  log,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

func defaultSearchIndex(ctx context.Context, cfg *commontypes.Config, log *zap.Logger) (search.Index, error) {
	osCfg, err := opensearch.NewConfigFromTypes(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch config: %w", err)
	}
	client, err := opensearch.NewClient(ctx, osCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}
	return client, nil
}

func openDefaultUsageStore(path string) (*metrics.Store, error) {
	if path == "" {
		var err error
		path, err = metrics.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return metrics.NewStore(path)
}
