package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/dispatch"
	"github.com/ca-srg/prodsearch/internal/imagevec"
	"github.com/ca-srg/prodsearch/internal/types"
)

// ImageAnalyzer extracts labels and an embedding from an uploaded image
type ImageAnalyzer interface {
	Analyze(ctx context.Context, upload imagevec.Upload) (*types.ImageFeatures, error)
}

// ResultFormatter renders an outcome for display
type ResultFormatter interface {
	Format(ctx context.Context, outcome *types.SearchOutcome, rawQuery string) types.DisplayPayload
}

// Request is one end-to-end product search
type Request struct {
	Query string
	// Image is optional; non-image uploads are ignored
	Image *imagevec.Upload
}

// Response carries the display payload and the outcome behind it
type Response struct {
	Outcome *types.SearchOutcome
	Display types.DisplayPayload
	Image   *types.ImageFeatures
}

// Pipeline runs image analysis, search and formatting in sequence
type Pipeline struct {
	service      *Service
	analyzer     ImageAnalyzer
	formatter    ResultFormatter
	pool         *dispatch.Pool
	imageTimeout time.Duration
	logger       *zap.Logger
}

// NewPipeline creates a Pipeline. analyzer may be nil when no image service is configured.
func NewPipeline(service *Service, analyzer ImageAnalyzer, formatter ResultFormatter, pool *dispatch.Pool, imageTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		service:      service,
		analyzer:     analyzer,
		formatter:    formatter,
		pool:         pool,
		imageTimeout: imageTimeout,
		logger:       logger.Named("pipeline"),
	}
}

// Run executes the request. Image analysis failures degrade to a text-only
// search; search failures are returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	resp := &Response{}
	resp.Image = p.analyze(ctx, req.Image)

	outcome, err := p.service.Search(ctx, req.Query, resp.Image)
	if err != nil {
		return nil, err
	}
	resp.Outcome = outcome
	resp.Display = p.formatter.Format(ctx, outcome, outcome.Query)
	return resp, nil
}

func (p *Pipeline) analyze(ctx context.Context, upload *imagevec.Upload) *types.ImageFeatures {
	if upload == nil || p.analyzer == nil {
		return nil
	}
	if !upload.IsImage() {
		p.logger.Debug("ignoring non-image upload", zap.String("content_type", upload.ContentType))
		return nil
	}

	features, err := dispatch.Call(ctx, p.pool, p.imageTimeout, func(ctx context.Context) (*types.ImageFeatures, error) {
		return p.analyzer.Analyze(ctx, *upload)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("image analysis failed, continuing with text search", zap.Error(err))
		}
		return nil
	}
	return features
}
