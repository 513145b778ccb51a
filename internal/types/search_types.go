package types

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxResults is the fixed number of products returned per request
const MaxResults = 2

// Product is the decoded view of an indexed product document
type Product struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Brand       string      `json:"brand,omitempty"`
	Price       float64     `json:"price"`
	Rating      *float64    `json:"rating,omitempty"`
	ViewCount   *float64    `json:"view_count,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// DecodeProduct builds a Product from a raw _source document, tolerating
// numbers encoded as strings and brands encoded as lists
func DecodeProduct(source json.RawMessage) Product {
	var doc map[string]interface{}
	if err := json.Unmarshal(source, &doc); err != nil {
		return Product{}
	}

	p := Product{
		Name:        scalarString(doc["name"]),
		Description: scalarString(doc["description"]),
		Category:    scalarString(doc["category"]),
		ImageURL:    scalarString(doc["image_url"]),
	}
	switch b := doc["brand"].(type) {
	case []interface{}:
		if len(b) > 0 {
			p.Brand = scalarString(b[0])
		}
	default:
		p.Brand = scalarString(b)
	}
	if v, ok := numberValue(doc["price"]); ok {
		p.Price = v
	}
	if v, ok := numberValue(doc["rating"]); ok {
		p.Rating = &v
	}
	if v, ok := numberValue(doc["view_count"]); ok {
		p.ViewCount = &v
	}
	if tags, ok := doc["tags"].([]interface{}); ok {
		for _, t := range tags {
			if s := scalarString(t); s != "" {
				p.Tags = append(p.Tags, s)
			}
		}
	}
	if attrs, ok := doc["attributes"].([]interface{}); ok {
		for _, a := range attrs {
			if attr, ok := attributeFromValue(a); ok {
				p.Attributes = append(p.Attributes, attr)
			}
		}
	}
	return p
}

// Hit is one ranked document returned by the index
type Hit struct {
	ID      string          `json:"id"`
	Index   string          `json:"index"`
	Score   float64         `json:"score"`
	Source  json.RawMessage `json:"source,omitempty"`
	Product Product         `json:"product"`
}

// HitSet is the ranked page of hits with the engine's totals
type HitSet struct {
	Hits     []Hit   `json:"hits"`
	Total    int64   `json:"total"`
	MaxScore float64 `json:"max_score"`
}

// SortHits orders hits by score, rating and view count, all descending.
// Missing rating or view count sorts after present values.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c := compareOptional(a.Product.Rating, b.Product.Rating); c != 0 {
			return c > 0
		}
		return compareOptional(a.Product.ViewCount, b.Product.ViewCount) > 0
	})
}

// compareOptional returns 1 when a ranks before b, -1 when after, 0 when tied
func compareOptional(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a > *b:
		return 1
	case *a < *b:
		return -1
	default:
		return 0
	}
}

// ExtractionSource records which extractor produced the FeatureSet
type ExtractionSource string

const (
	ExtractionLLM      ExtractionSource = "llm"
	ExtractionFallback ExtractionSource = "fallback"
)

// Strategy names the query builder used for an execution
type Strategy string

const (
	StrategyRich        Strategy = "rich"
	StrategySimple      Strategy = "simple"
	StrategyVector      Strategy = "vector"
	StrategyUnavailable Strategy = "unavailable"
)

// Attempt is the result of one index execution
type Attempt struct {
	Strategy Strategy      `json:"strategy"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`

	// Retryable is set when the index classified the failure as transient
	Retryable bool `json:"retryable,omitempty"`
}

// Succeeded reports whether the attempt returned hits without error
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// ImageFeatures is what the image collaborator reported for an upload
type ImageFeatures struct {
	Labels    []string  `json:"labels"`
	Embedding []float32 `json:"-"`
}

// HasEmbedding reports whether vector ranking can be used
func (f *ImageFeatures) HasEmbedding() bool {
	return f != nil && len(f.Embedding) > 0
}

// SearchOutcome is the packaged result of one orchestrated search
type SearchOutcome struct {
	ID         uuid.UUID              `json:"id"`
	Query      string                 `json:"query"`
	Features   FeatureSet             `json:"features"`
	Extraction ExtractionSource       `json:"extraction"`
	QueryUsed  map[string]interface{} `json:"query_used"`
	Strategy   Strategy               `json:"strategy"`
	Attempts   []Attempt              `json:"attempts"`
	Hits       []Hit                  `json:"hits"`
	Total      int64                  `json:"total"`
	MaxScore   float64                `json:"max_score"`
	Took       time.Duration          `json:"took"`
}

// DisplayKind tells how a DisplayPayload was produced
type DisplayKind string

const (
	DisplayLLM      DisplayKind = "llm"
	DisplayTemplate DisplayKind = "template"
	DisplayEmpty    DisplayKind = "empty"
)

// DisplayProduct is the trimmed product view handed to the formatter
type DisplayProduct struct {
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Price       float64  `json:"price"`
	Rating      *float64 `json:"rating,omitempty"`
	Score       float64  `json:"score"`
}

// DisplayPayload is the user-facing rendering of a search outcome
type DisplayPayload struct {
	Kind DisplayKind
	JSON json.RawMessage
	Text string
}

// MarshalJSON emits the LLM object verbatim, or the text as a JSON string
func (p DisplayPayload) MarshalJSON() ([]byte, error) {
	if p.Kind == DisplayLLM && len(p.JSON) > 0 {
		return p.JSON, nil
	}
	return json.Marshal(p.Text)
}

// String returns a printable form of the payload
func (p DisplayPayload) String() string {
	if p.Kind == DisplayLLM {
		return string(p.JSON)
	}
	return p.Text
}
