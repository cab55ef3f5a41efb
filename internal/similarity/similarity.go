// Package similarity scores attribute-level similarity between a candidate
// listing and a target item. The score is a weighted sum over brand, model,
// size, material and color; it drives both comparable filtering and the
// per-comparable weight in price aggregation.
package similarity

import (
	"fmt"
	"math"
	"strings"

	"github.com/nightowl2626/LuxPricer/internal/listing"
)

// Config holds the attribute weights. Weights must sum to 1.0.
type Config struct {
	BrandWeight    float64
	ModelWeight    float64
	SizeWeight     float64
	MaterialWeight float64
	ColorWeight    float64

	// Minimum substring lengths for material/color containment checks, to
	// avoid trivial matches like "a" ⊂ "calfskin".
	MaterialMinLen int
	ColorMinLen    int
}

// DefaultConfig returns the production weighting: brand and model carry 65%
// of the score, secondary attributes the rest.
func DefaultConfig() Config {
	return Config{
		BrandWeight:    0.35,
		ModelWeight:    0.30,
		SizeWeight:     0.15,
		MaterialWeight: 0.10,
		ColorWeight:    0.10,
		MaterialMinLen: 4,
		ColorMinLen:    3,
	}
}

// Validate checks that the weights sum to 1.0 within floating-point
// tolerance.
func (c Config) Validate() error {
	sum := c.BrandWeight + c.ModelWeight + c.SizeWeight + c.MaterialWeight + c.ColorWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("similarity weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// Attributes is the view of an item the scorer compares. Both listings and
// target items project onto it.
type Attributes struct {
	Brand    string
	Model    string
	Sizes    []string
	Material string
	Color    string
}

// FromListing projects a listing onto the comparable attribute set.
func FromListing(l *listing.Listing) Attributes {
	return Attributes{
		Brand:    l.Brand,
		Model:    l.Model,
		Sizes:    l.Sizes,
		Material: l.Material,
		Color:    l.Color,
	}
}

// FromTarget projects a target item onto the comparable attribute set.
func FromTarget(t *listing.TargetItem) Attributes {
	return Attributes{
		Brand:    t.Brand,
		Model:    t.Model,
		Sizes:    t.Sizes,
		Material: t.Material,
		Color:    t.Color,
	}
}

// Score computes the weighted similarity between two items in [0,1].
//
// Brand acts as a hard gate: cross-brand pairs score 0 regardless of other
// attribute overlap, because cross-brand comparables are never valid price
// references. A missing brand on either side also scores 0.
func Score(cfg Config, a, b Attributes) float64 {
	brandA := listing.NormalizeName(a.Brand)
	brandB := listing.NormalizeName(b.Brand)
	if brandA == "" || brandB == "" || brandA != brandB {
		return 0
	}

	total := cfg.BrandWeight
	total += cfg.ModelWeight * modelScore(a.Model, b.Model)
	total += cfg.SizeWeight * sizeScore(a.Sizes, b.Sizes)
	total += cfg.MaterialWeight * containmentScore(a.Material, b.Material, cfg.MaterialMinLen)
	total += cfg.ColorWeight * containmentScore(a.Color, b.Color, cfg.ColorMinLen)
	return total
}

// modelScore is the token-set Jaccard similarity of the two model names,
// boosted to 1.0 on exact match and scaled by a length-ratio factor so a
// short label compared against a long free-text name is penalized.
func modelScore(a, b string) float64 {
	ma := listing.NormalizeName(a)
	mb := listing.NormalizeName(b)
	if ma == "" || mb == "" {
		return 0
	}
	if ma == mb {
		return 1.0
	}

	tokensA := tokenSet(ma)
	tokensB := tokenSet(mb)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0
	}

	shorter, longer := len(tokensA), len(tokensB)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	lengthRatio := float64(shorter) / float64(longer)

	return (float64(intersection) / float64(union)) * (0.5 + 0.5*lengthRatio)
}

// sizeScore is binary: 1.0 when any size token matches, 0.5 when both sides
// omit size, 0.0 otherwise.
func sizeScore(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.5
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	for _, sa := range a {
		for _, sb := range b {
			if listing.NormalizeName(sa) == listing.NormalizeName(sb) {
				return 1.0
			}
		}
	}
	return 0
}

// containmentScore checks substring containment in either direction, with a
// minimum-length guard. A missing value on either side is neutral (0.5).
func containmentScore(a, b string, minLen int) float64 {
	va := listing.NormalizeName(a)
	vb := listing.NormalizeName(b)
	if va == "" || vb == "" {
		return 0.5
	}
	if len(va) < minLen || len(vb) < minLen {
		return 0
	}
	if strings.Contains(va, vb) || strings.Contains(vb, va) {
		return 1.0
	}
	return 0
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
