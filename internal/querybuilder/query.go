package querybuilder

import (
	"encoding/json"
	"strings"

	"github.com/ca-srg/prodsearch/internal/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Clause is one OpenSearch query clause
type Clause = map[string]interface{}

// Index field names shared by the builders
const (
	FieldName         = "name"
	FieldNameKeyword  = "name.keyword"
	FieldDescription  = "description"
	FieldCategory     = "category"
	FieldCategoryText = "category.text"
	FieldBrand        = "brand"
	FieldTags         = "tags"
	FieldPrice        = "price"
	FieldRating       = "rating"
	FieldViewCount    = "view_count"
	FieldImageURL     = "image_url"
	FieldAttributes   = "attributes"
	FieldEmbedding    = "image_embedding"
)

// ResultSize is the fixed page size of every query
const ResultSize = types.MaxResults

// SearchQuery is a compiled bool query ready to be rendered into a request body.
// It is not modified after a builder returns it.
type SearchQuery struct {
	Strategy           types.Strategy
	Must               []Clause
	Should             []Clause
	Filter             []Clause
	MinimumShouldMatch int
	Size               int
	Sort               []Clause
	TrackTotalHits     bool
	Source             []string
	// Script, when set, ranks the bool query's matches through script_score
	Script Clause
}

// Body renders the OpenSearch search request body
func (q *SearchQuery) Body() map[string]interface{} {
	boolQuery := map[string]interface{}{}
	if len(q.Must) > 0 {
		boolQuery["must"] = q.Must
	}
	if len(q.Should) > 0 {
		boolQuery["should"] = q.Should
		if q.MinimumShouldMatch > 0 {
			boolQuery["minimum_should_match"] = q.MinimumShouldMatch
		}
	}
	if len(q.Filter) > 0 {
		boolQuery["filter"] = q.Filter
	}

	query := Clause{"bool": boolQuery}
	if q.Script != nil {
		query = Clause{
			"script_score": map[string]interface{}{
				"query":  query,
				"script": q.Script,
			},
		}
	}

	body := map[string]interface{}{
		"query": query,
		"size":  q.Size,
	}
	if len(q.Sort) > 0 {
		body["sort"] = q.Sort
	}
	if q.TrackTotalHits {
		body["track_total_hits"] = true
	}
	if len(q.Source) > 0 {
		body["_source"] = q.Source
	}
	return body
}

// JSON renders Body as JSON
func (q *SearchQuery) JSON() ([]byte, error) {
	return json.Marshal(q.Body())
}

// defaultSort orders by score, then rating and view count with missing values last
func defaultSort() []Clause {
	return []Clause{
		{"_score": map[string]interface{}{"order": "desc"}},
		{FieldRating: map[string]interface{}{"order": "desc", "missing": "_last"}},
		{FieldViewCount: map[string]interface{}{"order": "desc", "missing": "_last"}},
	}
}

func matchAll() Clause {
	return Clause{"match_all": map[string]interface{}{}}
}

// priceRangeFilter returns nil when the range carries no bound
func priceRangeFilter(pr *types.PriceRange) Clause {
	if pr == nil || (pr.Min == nil && pr.Max == nil) {
		return nil
	}
	bounds := map[string]interface{}{}
	if pr.Min != nil {
		bounds["gte"] = *pr.Min
	}
	if pr.Max != nil {
		bounds["lte"] = *pr.Max
	}
	return Clause{"range": map[string]interface{}{FieldPrice: bounds}}
}

func ratingFilter(minRating *float64) Clause {
	if minRating == nil {
		return nil
	}
	return Clause{"range": map[string]interface{}{FieldRating: map[string]interface{}{"gte": *minRating}}}
}

// featureFilters returns the price and rating filters shared by rich and simple queries
func featureFilters(fs *types.FeatureSet) []Clause {
	if fs == nil {
		return nil
	}
	var filters []Clause
	if c := priceRangeFilter(fs.PriceRange); c != nil {
		filters = append(filters, c)
	}
	if c := ratingFilter(fs.RatingMin); c != nil {
		filters = append(filters, c)
	}
	return filters
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// joinNonEmpty joins trimmed, non-empty items with single spaces
func joinNonEmpty(items []string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}
