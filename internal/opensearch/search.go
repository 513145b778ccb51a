package opensearch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ca-srg/prodsearch/internal/querybuilder"
	"github.com/ca-srg/prodsearch/internal/types"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"go.uber.org/zap"
)

// Search executes a compiled query against the configured index.
// Every call is a single request; failures are returned as *SearchError.
func (c *Client) Search(ctx context.Context, query *querybuilder.SearchQuery) (*types.HitSet, error) {
	if query == nil {
		return nil, NewSearchError(types.ErrorTypeValidation, "query cannot be nil")
	}

	startTime := time.Now()
	result, err := c.search(ctx, query)
	duration := time.Since(startTime)
	c.RecordRequest(duration, err == nil)

	if err != nil {
		c.logger.Warn("search failed",
			zap.String("strategy", string(query.Strategy)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("search completed",
		zap.String("strategy", string(query.Strategy)),
		zap.Duration("duration", duration),
		zap.Int("hits", len(result.Hits)),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

func (c *Client) search(ctx context.Context, query *querybuilder.SearchQuery) (*types.HitSet, error) {
	if err := c.WaitForRateLimit(ctx); err != nil {
		return nil, ClassifyConnectionError(fmt.Errorf("rate limit wait: %w", err))
	}

	bodyJSON, err := query.JSON()
	if err != nil {
		return nil, NewSearchError(types.ErrorTypeValidation, fmt.Sprintf("failed to marshal search body: %v", err))
	}

	req := &opensearchapi.SearchReq{
		Indices: []string{c.config.Index},
		Body:    bytes.NewReader(bodyJSON),
	}

	searchResp, err := c.client.Search(ctx, req)
	if err != nil {
		if status := responseStatus(searchResp); status >= 300 {
			searchErr := ClassifyHTTPError(status, err.Error())
			searchErr.Query = string(query.Strategy)
			searchErr.Err = err
			return nil, searchErr
		}
		return nil, ClassifyConnectionError(err)
	}
	if searchResp == nil {
		return nil, NewSearchError(types.ErrorTypeOpenSearchResponse, "received nil response from OpenSearch")
	}

	result := &types.HitSet{
		Total:    int64(searchResp.Hits.Total.Value),
		MaxScore: float64(searchResp.Hits.MaxScore),
		Hits:     make([]types.Hit, 0, len(searchResp.Hits.Hits)),
	}
	for _, hit := range searchResp.Hits.Hits {
		result.Hits = append(result.Hits, types.Hit{
			ID:      hit.ID,
			Index:   hit.Index,
			Score:   float64(hit.Score),
			Source:  hit.Source,
			Product: types.DecodeProduct(hit.Source),
		})
	}
	return result, nil
}

// responseStatus returns the HTTP status of a failed search, or 0 when the
// request never produced a response
func responseStatus(resp *opensearchapi.SearchResp) int {
	if resp == nil {
		return 0
	}
	if inspect := resp.Inspect(); inspect.Response != nil {
		return inspect.Response.StatusCode
	}
	return 0
}
