package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeatureSet_BrandAcceptsStringAndList(t *testing.T) {
	single, err := ParseFeatureSet([]byte(`{"brand": "Nike"}`))
	require.NoError(t, err)
	list, err := ParseFeatureSet([]byte(`{"brand": ["Nike", "", "Adidas"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Nike"}, single.Brands)
	assert.Equal(t, []string{"Nike", "Adidas"}, list.Brands)
}

func TestParseFeatureSet_DefaultsListsAndIntent(t *testing.T) {
	fs, err := ParseFeatureSet([]byte(`{}`))
	require.NoError(t, err)

	assert.NotNil(t, fs.Brands)
	assert.NotNil(t, fs.Attributes)
	assert.NotNil(t, fs.Tags)
	assert.NotNil(t, fs.DescriptionKeywords)
	assert.Equal(t, IntentSearch, fs.Intent)
	assert.Nil(t, fs.PriceRange)
	assert.Nil(t, fs.RatingMin)
	assert.True(t, fs.IsEmpty())
}

func TestParseFeatureSet_CoercesLooseTypes(t *testing.T) {
	payload := `{
		"product_name": 501,
		"category": " clothing ",
		"price_range": {"min": "$20", "max": 100},
		"rating_min": "4.5",
		"tags": "running",
		"attributes": [{"name": "color", "value": "red"}, {"name": "", "value": "x"}, ["size", 10]],
		"intent": "COMPARE"
	}`

	fs, err := ParseFeatureSet([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "501", fs.ProductName)
	assert.Equal(t, "clothing", fs.Category)
	require.NotNil(t, fs.PriceRange)
	assert.Equal(t, 20.0, *fs.PriceRange.Min)
	assert.Equal(t, 100.0, *fs.PriceRange.Max)
	require.NotNil(t, fs.RatingMin)
	assert.Equal(t, 4.5, *fs.RatingMin)
	assert.Equal(t, []string{"running"}, fs.Tags)
	assert.Equal(t, []Attribute{{Name: "color", Value: "red"}, {Name: "size", Value: "10"}}, fs.Attributes)
	assert.Equal(t, IntentCompare, fs.Intent)
}

func TestParseFeatureSet_AttributeObjectForm(t *testing.T) {
	fs, err := ParseFeatureSet([]byte(`{"attributes": {"ram": "16GB", "color": "black"}}`))
	require.NoError(t, err)

	assert.Equal(t, []Attribute{{Name: "color", Value: "black"}, {Name: "ram", Value: "16GB"}}, fs.Attributes)
}

func TestParseFeatureSet_NonPositiveRatingIsAbsent(t *testing.T) {
	fs, err := ParseFeatureSet([]byte(`{"rating_min": 0}`))
	require.NoError(t, err)
	assert.Nil(t, fs.RatingMin)
}

func TestParseFeatureSet_PriceRangeWithoutBoundsIsNil(t *testing.T) {
	fs, err := ParseFeatureSet([]byte(`{"price_range": {"min": null, "max": "n/a"}}`))
	require.NoError(t, err)
	assert.Nil(t, fs.PriceRange)
}

func TestParseFeatureSet_RejectsNonObject(t *testing.T) {
	_, err := ParseFeatureSet([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)
}

func TestFeatureSet_UnmarshalJSONNormalizes(t *testing.T) {
	var fs FeatureSet
	require.NoError(t, json.Unmarshal([]byte(`{"brand": "Ｎｉｋｅ"}`), &fs))
	assert.Equal(t, []string{"Nike"}, fs.Brands)
	assert.NotNil(t, fs.Tags)
}

func TestParseIntent_UnknownDefaultsToSearch(t *testing.T) {
	assert.Equal(t, IntentSearch, ParseIntent("buy"))
	assert.Equal(t, IntentBrowse, ParseIntent(" browse "))
	assert.Equal(t, IntentRecommend, ParseIntent("Recommend"))
}
