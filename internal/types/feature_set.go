package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Intent is the kind of request the user is making
type Intent string

const (
	IntentSearch    Intent = "search"
	IntentCompare   Intent = "compare"
	IntentRecommend Intent = "recommend"
	IntentBrowse    Intent = "browse"
)

// ParseIntent maps free text to a known intent, defaulting to search
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentCompare:
		return IntentCompare
	case IntentRecommend:
		return IntentRecommend
	case IntentBrowse:
		return IntentBrowse
	default:
		return IntentSearch
	}
}

// PriceRange holds optional inclusive price bounds
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Attribute is a structured product descriptor such as color or memory size
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FeatureSet is the normalized interpretation of a user's product query.
// List fields are never nil once built by ParseFeatureSet or NewFeatureSet.
type FeatureSet struct {
	ProductName         string      `json:"product_name,omitempty"`
	Category            string      `json:"category,omitempty"`
	Brands              []string    `json:"brand"`
	PriceRange          *PriceRange `json:"price_range,omitempty"`
	Attributes          []Attribute `json:"attributes"`
	Tags                []string    `json:"tags"`
	RatingMin           *float64    `json:"rating_min,omitempty"`
	DescriptionKeywords []string    `json:"description_keywords"`
	Intent              Intent      `json:"intent"`
}

// NewFeatureSet returns an empty FeatureSet with search intent
func NewFeatureSet() FeatureSet {
	return FeatureSet{
		Brands:              []string{},
		Attributes:          []Attribute{},
		Tags:                []string{},
		DescriptionKeywords: []string{},
		Intent:              IntentSearch,
	}
}

// IsEmpty reports whether no field carries a usable value
func (f FeatureSet) IsEmpty() bool {
	return f.ProductName == "" && f.Category == "" && len(f.Brands) == 0 &&
		f.PriceRange == nil && len(f.Attributes) == 0 && len(f.Tags) == 0 &&
		f.RatingMin == nil && len(f.DescriptionKeywords) == 0
}

// rawFeatureSet mirrors the loosely typed JSON an extraction model produces
type rawFeatureSet struct {
	ProductName         json.RawMessage `json:"product_name"`
	Category            json.RawMessage `json:"category"`
	Brand               json.RawMessage `json:"brand"`
	PriceRange          json.RawMessage `json:"price_range"`
	Attributes          json.RawMessage `json:"attributes"`
	Tags                json.RawMessage `json:"tags"`
	RatingMin           json.RawMessage `json:"rating_min"`
	DescriptionKeywords json.RawMessage `json:"description_keywords"`
	Intent              json.RawMessage `json:"intent"`
}

// ParseFeatureSet decodes untrusted extraction output into a normalized FeatureSet.
// Fields of the wrong shape are coerced where possible and dropped otherwise; only
// a payload that is not a JSON object is an error.
func ParseFeatureSet(data []byte) (FeatureSet, error) {
	var raw rawFeatureSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return FeatureSet{}, fmt.Errorf("feature set is not a JSON object: %w", err)
	}

	fs := NewFeatureSet()
	fs.ProductName = coerceString(raw.ProductName)
	fs.Category = coerceString(raw.Category)
	fs.Brands = coerceStringList(raw.Brand)
	fs.PriceRange = coercePriceRange(raw.PriceRange)
	fs.Attributes = coerceAttributes(raw.Attributes)
	fs.Tags = coerceStringList(raw.Tags)
	fs.DescriptionKeywords = coerceStringList(raw.DescriptionKeywords)
	fs.Intent = ParseIntent(coerceString(raw.Intent))

	if v, ok := coerceNumber(raw.RatingMin); ok && v > 0 {
		fs.RatingMin = &v
	}
	return fs, nil
}

// UnmarshalJSON makes FeatureSet accept the same loose shapes as ParseFeatureSet
func (f *FeatureSet) UnmarshalJSON(data []byte) error {
	fs, err := ParseFeatureSet(data)
	if err != nil {
		return err
	}
	*f = fs
	return nil
}

// NormalizeText applies NFKC normalization and trims surrounding whitespace
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func coerceString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return scalarString(v)
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return NormalizeText(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func coerceStringList(raw json.RawMessage) []string {
	out := []string{}
	if isNull(raw) {
		return out
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return out
	}
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := scalarString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return numberValue(v)
}

func numberValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "$"))
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coercePriceRange(raw json.RawMessage) *PriceRange {
	if isNull(raw) {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	pr := &PriceRange{}
	if v, ok := numberValue(m["min"]); ok {
		pr.Min = &v
	}
	if v, ok := numberValue(m["max"]); ok {
		pr.Max = &v
	}
	if pr.Min == nil && pr.Max == nil {
		return nil
	}
	return pr
}

func coerceAttributes(raw json.RawMessage) []Attribute {
	out := []Attribute{}
	if isNull(raw) {
		return out
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return out
	}
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if attr, ok := attributeFromValue(item); ok {
				out = append(out, attr)
			}
		}
	case map[string]interface{}:
		// object form {"color": "red"}; keys sorted for a stable clause order
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name := NormalizeText(k)
			value := scalarString(t[k])
			if name != "" && value != "" {
				out = append(out, Attribute{Name: name, Value: value})
			}
		}
	}
	return out
}

func attributeFromValue(v interface{}) (Attribute, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		attr := Attribute{Name: scalarString(t["name"]), Value: scalarString(t["value"])}
		return attr, attr.Name != "" && attr.Value != ""
	case []interface{}:
		if len(t) != 2 {
			return Attribute{}, false
		}
		attr := Attribute{Name: scalarString(t[0]), Value: scalarString(t[1])}
		return attr, attr.Name != "" && attr.Value != ""
	default:
		return Attribute{}, false
	}
}
