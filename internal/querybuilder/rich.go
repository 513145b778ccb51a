package querybuilder

import (
	"strings"

	"github.com/ca-srg/prodsearch/internal/types"
)

// Boosts used by the rich strategy
const (
	mainTextBoost      = 2.0
	nameKeywordBoost   = 3.0
	brandTermBoost     = 2.0
	brandNameBoost     = 1.5
	tagBoost           = 1.5
	tagDescBoost       = 1.2
	attributeBoost     = 2.0
	attributeTextBoost = 1.0
)

// BuildRich compiles a FeatureSet and the raw user query into a filtered,
// boosted bool query. It never fails; when no scoring clause applies the
// query degrades to a single match_all.
func BuildRich(fs types.FeatureSet, rawQuery string) *SearchQuery {
	q := &SearchQuery{
		Strategy:       types.StrategyRich,
		Size:           ResultSize,
		Sort:           defaultSort(),
		TrackTotalHits: true,
	}

	// main text: product name wins over description keywords
	searchText := strings.TrimSpace(fs.ProductName)
	if searchText == "" {
		searchText = joinNonEmpty(fs.DescriptionKeywords)
	}
	if searchText != "" {
		q.Should = append(q.Should,
			Clause{"multi_match": map[string]interface{}{
				"query":  searchText,
				"fields": []string{"name^3", "description^2", FieldCategoryText},
				"type":   "best_fields",
				"boost":  mainTextBoost,
			}},
			Clause{"match": map[string]interface{}{
				FieldNameKeyword: map[string]interface{}{"query": searchText, "boost": nameKeywordBoost},
			}},
		)
	}

	if raw := strings.TrimSpace(rawQuery); raw != "" {
		q.Should = append(q.Should, Clause{"multi_match": map[string]interface{}{
			"query":    raw,
			"fields":   []string{"name^2", FieldDescription, FieldCategoryText, FieldTags},
			"type":     "cross_fields",
			"operator": "or",
		}})
	}

	// category is a hard constraint
	if category := strings.TrimSpace(fs.Category); category != "" {
		q.Filter = append(q.Filter, Clause{"bool": map[string]interface{}{
			"should": []Clause{
				{"term": map[string]interface{}{FieldCategory: lower(category)}},
				{"match": map[string]interface{}{
					FieldCategoryText: map[string]interface{}{"query": category, "fuzziness": "AUTO"},
				}},
			},
			"minimum_should_match": 1,
		}})
	}

	for _, brand := range fs.Brands {
		brand = strings.TrimSpace(brand)
		if brand == "" {
			continue
		}
		q.Should = append(q.Should,
			Clause{"term": map[string]interface{}{
				FieldBrand: map[string]interface{}{"value": lower(brand), "boost": brandTermBoost},
			}},
			Clause{"match": map[string]interface{}{
				FieldName: map[string]interface{}{"query": brand, "boost": brandNameBoost},
			}},
		)
	}

	q.Filter = append(q.Filter, featureFilters(&fs)...)

	for _, tag := range fs.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		q.Should = append(q.Should,
			Clause{"match": map[string]interface{}{
				FieldTags: map[string]interface{}{"query": tag, "boost": tagBoost, "fuzziness": "AUTO"},
			}},
			Clause{"match": map[string]interface{}{
				FieldDescription: map[string]interface{}{"query": tag, "boost": tagDescBoost, "fuzziness": "AUTO"},
			}},
		)
	}

	for _, attr := range fs.Attributes {
		name, value := strings.TrimSpace(attr.Name), strings.TrimSpace(attr.Value)
		if name == "" || value == "" {
			continue
		}
		q.Should = append(q.Should,
			Clause{"nested": map[string]interface{}{
				"path": FieldAttributes,
				"query": Clause{"bool": map[string]interface{}{
					"must": []Clause{
						{"term": map[string]interface{}{"attributes.name": name}},
						{"match": map[string]interface{}{
							"attributes.value": map[string]interface{}{"query": value, "fuzziness": "AUTO"},
						}},
					},
				}},
				"boost":           attributeBoost,
				"ignore_unmapped": true,
			}},
			Clause{"multi_match": map[string]interface{}{
				"query":  name + " " + value,
				"fields": []string{FieldDescription, FieldName, FieldTags},
				"boost":  attributeTextBoost,
			}},
		)
	}

	if len(q.Should) == 0 {
		q.Should = append(q.Should, matchAll())
	}
	q.MinimumShouldMatch = 1

	return q
}
