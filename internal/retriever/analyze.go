package retriever

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Analysis is the structured reading of a free-text appraisal query:
// recognized brands, category keywords, and an explicit price range when
// one is written out.
type Analysis struct {
	OriginalQuery string     `json:"original_query"`
	Brands        []string   `json:"brands,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	PriceRange    *PriceBand `json:"price_range,omitempty"`
}

// PriceBand is an inclusive price filter. Max is +Inf for open-ended
// "over N" queries.
type PriceBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// HasBrand reports whether at least one known brand was recognized.
func (a Analysis) HasBrand() bool { return len(a.Brands) > 0 }

// HasCategory reports whether at least one category keyword matched.
func (a Analysis) HasCategory() bool { return len(a.Categories) > 0 }

// knownBrands is the recognition list for brand extraction. Matching is
// case-insensitive substring, so multi-word brands work inside longer
// queries.
var knownBrands = []string{
	"Chanel", "Louis Vuitton", "Gucci", "Hermes", "Hermès", "Prada", "Dior",
	"Balenciaga", "Fendi", "Celine", "Céline", "Burberry", "Valentino",
	"Bottega Veneta", "Saint Laurent", "Yves Saint Laurent", "YSL",
	"Givenchy", "Versace", "Jimmy Choo", "Alexander McQueen",
	"Loewe", "Christian Louboutin", "Miu Miu", "Tiffany", "Cartier",
	"Rolex", "Omega", "Patek Philippe", "Audemars Piguet", "TAG Heuer",
	"Breitling", "Hublot", "IWC", "Jaeger-LeCoultre", "Longines",
	"Montblanc", "Bvlgari", "Bulgari", "Van Cleef & Arpels", "Chopard",
}

// categoryKeywords maps canonical categories to the words that imply them.
var categoryKeywords = map[string][]string{
	"bag":       {"bag", "handbag", "purse", "tote", "clutch", "backpack", "satchel", "crossbody"},
	"wallet":    {"wallet", "cardholder", "card case", "coin purse"},
	"watch":     {"watch", "timepiece", "chronograph", "wristwatch"},
	"jewelry":   {"jewelry", "jewellery", "necklace", "bracelet", "ring", "earring", "brooch"},
	"shoes":     {"shoes", "sneakers", "heels", "boots", "sandals", "loafers", "pumps"},
	"clothing":  {"clothing", "dress", "jacket", "coat", "shirt", "blouse", "sweater", "t-shirt", "jeans", "pants", "skirt"},
	"accessory": {"accessory", "scarf", "belt", "sunglasses", "glasses", "hat", "gloves", "keychain"},
}

var (
	priceRangeRe = regexp.MustCompile(`\$?(\d+(?:[.,]\d+)?)\s*(?:-|to)\s*\$?(\d+(?:[.,]\d+)?)`)
	priceUnderRe = regexp.MustCompile(`(?:under|below)\s+\$?(\d+(?:[.,]\d+)?)`)
	priceOverRe  = regexp.MustCompile(`(?:over|above)\s+\$?(\d+(?:[.,]\d+)?)`)
)

// Analyze extracts brands, categories, and an explicit price range from a
// free-text query.
func Analyze(query string) Analysis {
	return Analysis{
		OriginalQuery: query,
		Brands:        extractBrands(query),
		Categories:    extractCategories(query),
		PriceRange:    extractPriceRange(query),
	}
}

func extractBrands(query string) []string {
	lowered := strings.ToLower(query)
	var found []string
	for _, brand := range knownBrands {
		if strings.Contains(lowered, strings.ToLower(brand)) {
			found = append(found, brand)
		}
	}
	return found
}

func extractCategories(query string) []string {
	lowered := strings.ToLower(query)
	var found []string
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				found = append(found, category)
				break
			}
		}
	}
	// Map iteration order is random; keep output deterministic.
	sort.Strings(found)
	return found
}

func extractPriceRange(query string) *PriceBand {
	lowered := strings.ToLower(query)

	if m := priceRangeRe.FindStringSubmatch(lowered); m != nil {
		a, errA := parsePrice(m[1])
		b, errB := parsePrice(m[2])
		if errA == nil && errB == nil {
			return &PriceBand{Min: math.Min(a, b), Max: math.Max(a, b)}
		}
	}
	if m := priceUnderRe.FindStringSubmatch(lowered); m != nil {
		if v, err := parsePrice(m[1]); err == nil {
			return &PriceBand{Min: 0, Max: v}
		}
	}
	if m := priceOverRe.FindStringSubmatch(lowered); m != nil {
		if v, err := parsePrice(m[1]); err == nil {
			return &PriceBand{Min: v, Max: math.Inf(1)}
		}
	}
	return nil
}

func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
