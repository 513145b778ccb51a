package querybuilder

import (
	"testing"

	"github.com/ca-srg/prodsearch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptScore(t *testing.T, q *SearchQuery) map[string]interface{} {
	t.Helper()
	query, ok := q.Body()["query"].(Clause)
	require.True(t, ok)
	ss, ok := query["script_score"].(map[string]interface{})
	require.True(t, ok, "script_score missing")
	return ss
}

func TestBuildVectorRanked_ScriptAndProjection(t *testing.T) {
	vector := []float32{0.1, 0.2, 0.3}
	q := BuildVectorRanked("running shoe", vector)

	assert.Equal(t, types.StrategyVector, q.Strategy)
	body := q.Body()
	assert.Equal(t, 2, body["size"])
	assert.Equal(t, []string{"name", "category", "description", "price", "rating", "image_url"}, body["_source"])

	ss := scriptScore(t, q)
	script, ok := ss["script"].(Clause)
	require.True(t, ok)
	assert.Equal(t, "cosineSimilarity(params.query_value, doc[params.field]) + 1.0", script["source"])
	params := script["params"].(map[string]interface{})
	assert.Equal(t, "image_embedding", params["field"])
	assert.Equal(t, vector, params["query_value"])
}

func TestBuildVectorRanked_TypeFilterPerTerm(t *testing.T) {
	q := BuildVectorRanked("Running Shoe", []float32{1})

	require.Len(t, q.Filter, 2)
	typeFilter := findClauses(q.Filter, "bool", "")
	require.Len(t, typeFilter, 1)
	should := typeFilter[0]["should"].([]Clause)
	assert.Len(t, should, 8)

	wildcards := findClauses(should, "wildcard", "name")
	require.Len(t, wildcards, 2)
	assert.Equal(t, "*running*", wildcards[0]["value"])
	assert.Equal(t, true, wildcards[0]["case_insensitive"])

	exists := findClauses(q.Filter, "exists", "field")
	require.Len(t, exists, 1)
	assert.Equal(t, "image_embedding", exists[0]["value"])
}

func TestBuildVectorRanked_EmptyTypeOnlyRequiresEmbedding(t *testing.T) {
	q := BuildVectorRanked("", []float32{1})
	require.Len(t, q.Filter, 1)
	_, ok := q.Filter[0]["exists"]
	assert.True(t, ok)
	assert.Empty(t, q.Should)
}

func TestBuildVectorRanked_CopiesVector(t *testing.T) {
	vector := []float32{0.5}
	q := BuildVectorRanked("bag", vector)
	vector[0] = 9

	params := q.Script["params"].(map[string]interface{})
	assert.Equal(t, []float32{0.5}, params["query_value"])
}
