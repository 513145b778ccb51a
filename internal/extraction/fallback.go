package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ca-srg/prodsearch/internal/types"
)

// minKeywordRunes is the shortest word kept as a description keyword, exclusive
const minKeywordRunes = 3

type pricePattern struct {
	re *regexp.Regexp
	// single-number patterns set only the upper bound
	upperOnly bool
}

// Checked in order; the first match wins.
var pricePatterns = []pricePattern{
	{re: regexp.MustCompile(`under \$?(\d+(?:\.\d+)?)`), upperOnly: true},
	{re: regexp.MustCompile(`below \$?(\d+(?:\.\d+)?)`), upperOnly: true},
	{re: regexp.MustCompile(`less than \$?(\d+(?:\.\d+)?)`), upperOnly: true},
	{re: regexp.MustCompile(`\$?(\d+(?:\.\d+)?)-\$?(\d+(?:\.\d+)?)`)},
	{re: regexp.MustCompile(`between \$?(\d+(?:\.\d+)?) and \$?(\d+(?:\.\d+)?)`)},
}

// Fallback derives a FeatureSet from the query text alone. It recognizes a
// price bound and keeps longer words as description keywords.
func Fallback(query string) types.FeatureSet {
	fs := types.NewFeatureSet()
	query = types.NormalizeText(query)
	fs.PriceRange = fallbackPriceRange(strings.ToLower(query))

	for _, word := range strings.Fields(query) {
		if utf8.RuneCountInString(word) > minKeywordRunes {
			fs.DescriptionKeywords = append(fs.DescriptionKeywords, word)
		}
	}
	return fs
}

func fallbackPriceRange(lower string) *types.PriceRange {
	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if p.upperOnly {
			hi, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil
			}
			return &types.PriceRange{Max: &hi}
		}
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo != nil || errHi != nil {
			return nil
		}
		return &types.PriceRange{Min: &lo, Max: &hi}
	}
	return nil
}
