package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func hit(id string, score float64, rating, views *float64) Hit {
	return Hit{ID: id, Score: score, Product: Product{Rating: rating, ViewCount: views}}
}

func ids(hits []Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ID)
	}
	return out
}

func TestSortHits_ScoreDescending(t *testing.T) {
	hits := []Hit{hit("a", 1.0, nil, nil), hit("b", 3.0, nil, nil), hit("c", 2.0, nil, nil)}
	SortHits(hits)
	assert.Equal(t, []string{"b", "c", "a"}, ids(hits))
}

func TestSortHits_TiedScoreUsesRating(t *testing.T) {
	hits := []Hit{
		hit("a", 1.0, nil, nil),
		hit("b", 1.0, floatPtr(3.5), nil),
		hit("c", 1.0, floatPtr(4.8), nil),
	}
	SortHits(hits)
	assert.Equal(t, []string{"c", "b", "a"}, ids(hits))
}

func TestSortHits_TiedRatingUsesViewCountWithMissingLast(t *testing.T) {
	hits := []Hit{
		hit("a", 1.0, floatPtr(4), nil),
		hit("b", 1.0, floatPtr(4), floatPtr(10)),
		hit("c", 1.0, floatPtr(4), floatPtr(250)),
	}
	SortHits(hits)
	assert.Equal(t, []string{"c", "b", "a"}, ids(hits))
}

func TestDecodeProduct_ToleratesLooseSource(t *testing.T) {
	source := json.RawMessage(`{
		"name": "Air Zoom",
		"brand": ["Nike"],
		"price": "129.99",
		"rating": 4.6,
		"tags": ["running", ""],
		"attributes": [{"name": "color", "value": "blue"}]
	}`)

	p := DecodeProduct(source)
	assert.Equal(t, "Air Zoom", p.Name)
	assert.Equal(t, "Nike", p.Brand)
	assert.Equal(t, 129.99, p.Price)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 4.6, *p.Rating)
	assert.Nil(t, p.ViewCount)
	assert.Equal(t, []string{"running"}, p.Tags)
	assert.Len(t, p.Attributes, 1)
}

func TestDisplayPayload_MarshalJSON(t *testing.T) {
	llm := DisplayPayload{Kind: DisplayLLM, JSON: json.RawMessage(`{"summary":"ok"}`)}
	out, err := json.Marshal(map[string]interface{}{"results": llm})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":{"summary":"ok"}}`, string(out))

	text := DisplayPayload{Kind: DisplayEmpty, Text: "nothing"}
	out, err = json.Marshal(map[string]interface{}{"results": text})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":"nothing"}`, string(out))
}

func TestImageFeatures_HasEmbedding(t *testing.T) {
	var nilFeatures *ImageFeatures
	assert.False(t, nilFeatures.HasEmbedding())
	assert.False(t, (&ImageFeatures{Labels: []string{"shoe"}}).HasEmbedding())
	assert.True(t, (&ImageFeatures{Embedding: []float32{0.1}}).HasEmbedding())
}
