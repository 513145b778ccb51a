package querybuilder

import (
	"strings"

	"github.com/ca-srg/prodsearch/internal/types"
)

// cosineScript keeps scores non-negative by shifting cosine similarity by one
const cosineScript = "cosineSimilarity(params.query_value, doc[params.field]) + 1.0"

// vectorSource is the reduced projection returned by vector-ranked queries
var vectorSource = []string{FieldName, FieldCategory, FieldDescription, FieldPrice, FieldRating, FieldImageURL}

// BuildVectorRanked ranks documents carrying an image embedding by cosine
// similarity to vector. When imageType is non-empty, candidates must also
// match one of its terms on name, category or description.
func BuildVectorRanked(imageType string, vector []float32) *SearchQuery {
	q := &SearchQuery{
		Strategy: types.StrategyVector,
		Size:     ResultSize,
		Source:   append([]string(nil), vectorSource...),
	}

	terms := strings.Fields(lower(imageType))
	if len(terms) > 0 {
		should := make([]Clause, 0, len(terms)*4)
		for _, term := range terms {
			should = append(should,
				Clause{"match": map[string]interface{}{
					FieldName: map[string]interface{}{"query": term, "fuzziness": "AUTO"},
				}},
				Clause{"match": map[string]interface{}{
					FieldCategoryText: map[string]interface{}{"query": term, "fuzziness": "AUTO"},
				}},
				Clause{"match": map[string]interface{}{
					FieldDescription: map[string]interface{}{"query": term, "fuzziness": "AUTO"},
				}},
				Clause{"wildcard": map[string]interface{}{
					FieldName: map[string]interface{}{"value": "*" + term + "*", "case_insensitive": true},
				}},
			)
		}
		q.Filter = append(q.Filter, Clause{"bool": map[string]interface{}{
			"should":               should,
			"minimum_should_match": 1,
		}})
	}
	q.Filter = append(q.Filter, Clause{"exists": map[string]interface{}{"field": FieldEmbedding}})

	q.Script = Clause{
		"source": cosineScript,
		"params": map[string]interface{}{
			"field":       FieldEmbedding,
			"query_value": append([]float32(nil), vector...),
		},
	}

	return q
}
