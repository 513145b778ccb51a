package querybuilder

import (
	"strings"

	"github.com/ca-srg/prodsearch/internal/types"
)

// BuildSimple compiles the raw query into a flat fuzzy text query. It is the
// fallback when the index rejects the rich or vector query. When fs is given,
// its price and rating bounds are kept as filters.
func BuildSimple(rawQuery string, fs *types.FeatureSet) *SearchQuery {
	q := &SearchQuery{
		Strategy:       types.StrategySimple,
		Size:           ResultSize,
		Sort:           defaultSort(),
		TrackTotalHits: true,
	}

	raw := strings.TrimSpace(rawQuery)
	if raw == "" {
		q.Should = []Clause{matchAll()}
	} else {
		q.Should = []Clause{
			{"multi_match": map[string]interface{}{
				"query":     raw,
				"fields":    []string{"name^3", "description^2", "category^1.5", "brand^2", "tags^1.5"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			}},
			{"match_phrase": map[string]interface{}{
				FieldName: map[string]interface{}{"query": raw, "boost": 2.0},
			}},
		}
	}
	q.MinimumShouldMatch = 1
	q.Filter = featureFilters(fs)

	return q
}
