package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ca-srg/prodsearch/internal/querybuilder"
	"github.com/ca-srg/prodsearch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const searchResponse = `{
	"took": 3,
	"timed_out": false,
	"_shards": {"total": 1, "successful": 1, "skipped": 0, "failed": 0},
	"hits": {
		"total": {"value": 42, "relation": "eq"},
		"max_score": 7.5,
		"hits": [
			{"_index": "products", "_id": "p1", "_score": 7.5, "_source": {"name": "Air Zoom", "brand": "Nike", "price": 120, "rating": 4.7}},
			{"_index": "products", "_id": "p2", "_score": 6.1, "_source": {"name": "Pegasus", "brand": "Nike", "price": 99.5}}
		]
	}
}`

type capturedRequest struct {
	path   string
	body   map[string]interface{}
	header http.Header
}

func newTestServer(t *testing.T, status int, response string, calls *int32, captured *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_search") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":{"number":"2.11.0","distribution":"opensearch"}}`))
			return
		}
		atomic.AddInt32(calls, 1)
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			captured.path = r.URL.Path
			captured.header = r.Header.Clone()
			_ = json.Unmarshal(raw, &captured.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestSearch_DecodesHits(t *testing.T) {
	var calls int32
	var captured capturedRequest
	server := newTestServer(t, http.StatusOK, searchResponse, &calls, &captured)
	client := newTestClient(t, &Config{Endpoint: server.URL, Index: "products"})

	result, err := client.Search(context.Background(), querybuilder.BuildSimple("nike", nil))
	require.NoError(t, err)

	assert.Equal(t, "/products/_search", captured.path)
	assert.EqualValues(t, 2, captured.body["size"])
	assert.Equal(t, int64(42), result.Total)
	assert.InDelta(t, 7.5, result.MaxScore, 0.001)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "p1", result.Hits[0].ID)
	assert.Equal(t, "Air Zoom", result.Hits[0].Product.Name)
	require.NotNil(t, result.Hits[0].Product.Rating)
	assert.Nil(t, result.Hits[1].Product.Rating)

	metrics := client.GetMetrics()
	assert.Equal(t, int64(1), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.SuccessCount)
}

func TestSearch_RejectedQueryIsClassified(t *testing.T) {
	var calls int32
	body := `{"error":{"root_cause":[{"type":"parsing_exception","reason":"unknown query [nested]"}],"type":"parsing_exception","reason":"unknown query [nested]"},"status":400}`
	server := newTestServer(t, http.StatusBadRequest, body, &calls, nil)
	client := newTestClient(t, &Config{Endpoint: server.URL, Index: "products"})

	_, err := client.Search(context.Background(), querybuilder.BuildRich(types.NewFeatureSet(), "x"))
	require.Error(t, err)

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, types.ErrorTypeOpenSearchQuery, searchErr.Type)
	assert.Equal(t, http.StatusBadRequest, searchErr.StatusCode)
	assert.Equal(t, "rich", searchErr.Query)
	assert.Equal(t, int64(1), client.GetMetrics().ErrorCount)
}

func TestSearch_DoesNotRetryServerErrors(t *testing.T) {
	var calls int32
	server := newTestServer(t, http.StatusServiceUnavailable, `{"error":"unavailable","status":503}`, &calls, nil)
	client := newTestClient(t, &Config{Endpoint: server.URL, Index: "products"})

	_, err := client.Search(context.Background(), querybuilder.BuildSimple("x", nil))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_APIKeyHeader(t *testing.T) {
	var calls int32
	var captured capturedRequest
	server := newTestServer(t, http.StatusOK, searchResponse, &calls, &captured)
	client := newTestClient(t, &Config{Endpoint: server.URL, Index: "products", Auth: AuthAPIKey, APIKey: "secret"})

	_, err := client.Search(context.Background(), querybuilder.BuildSimple("x", nil))
	require.NoError(t, err)
	assert.Equal(t, "ApiKey secret", captured.header.Get("Authorization"))
}

func TestSearch_BasicAuth(t *testing.T) {
	var calls int32
	var captured capturedRequest
	server := newTestServer(t, http.StatusOK, searchResponse, &calls, &captured)
	client := newTestClient(t, &Config{Endpoint: server.URL, Index: "products", Auth: AuthBasic, Username: "u", Password: "p"})

	_, err := client.Search(context.Background(), querybuilder.BuildSimple("x", nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(captured.header.Get("Authorization"), "Basic "))
}

func TestSearch_ConnectionFailure(t *testing.T) {
	client := newTestClient(t, &Config{Endpoint: "http://127.0.0.1:1", Index: "products"})

	_, err := client.Search(context.Background(), querybuilder.BuildSimple("x", nil))
	require.Error(t, err)

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Zero(t, searchErr.StatusCode)
}

func TestSearch_NilQuery(t *testing.T) {
	client := newTestClient(t, &Config{Endpoint: "http://127.0.0.1:1", Index: "products"})
	_, err := client.Search(context.Background(), nil)
	require.Error(t, err)
}
