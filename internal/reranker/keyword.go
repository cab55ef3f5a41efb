package reranker

import (
	"context"
	"strings"

	"github.com/nightowl2626/LuxPricer/internal/retriever"
)

// Default keyword boost weights.
const (
	DefaultBrandBoost    = 0.2
	DefaultModelBoost    = 0.15
	DefaultMaterialBoost = 0.1
)

// KeywordStrategy boosts candidates whose brand, model, or material
// appear literally in the query. A brand appearing as a standalone query
// token earns half the brand boost again; the model boost scales with the
// fraction of model tokens present in the query.
type KeywordStrategy struct {
	brandBoost    float64
	modelBoost    float64
	materialBoost float64
}

var _ Strategy = (*KeywordStrategy)(nil)

// KeywordOption is a functional option for configuring KeywordStrategy.
type KeywordOption func(*KeywordStrategy)

// WithBrandBoost overrides the brand match boost.
func WithBrandBoost(w float64) KeywordOption {
	return func(s *KeywordStrategy) { s.brandBoost = w }
}

// WithModelBoost overrides the model match boost.
func WithModelBoost(w float64) KeywordOption {
	return func(s *KeywordStrategy) { s.modelBoost = w }
}

// WithMaterialBoost overrides the material match boost.
func WithMaterialBoost(w float64) KeywordOption {
	return func(s *KeywordStrategy) { s.materialBoost = w }
}

// NewKeywordStrategy creates a keyword match strategy with default boosts.
func NewKeywordStrategy(opts ...KeywordOption) *KeywordStrategy {
	s := &KeywordStrategy{
		brandBoost:    DefaultBrandBoost,
		modelBoost:    DefaultModelBoost,
		materialBoost: DefaultMaterialBoost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Strategy.
func (s *KeywordStrategy) Name() string { return "keyword" }

// Boosts implements Strategy.
func (s *KeywordStrategy) Boosts(_ context.Context, query string, candidates []retriever.Candidate) ([]float64, error) {
	lowered := strings.ToLower(query)
	queryTokens := map[string]bool{}
	for _, tok := range strings.Fields(lowered) {
		queryTokens[tok] = true
	}

	boosts := make([]float64, len(candidates))
	for i, c := range candidates {
		var boost float64

		if brand := strings.ToLower(c.Listing.Brand); brand != "" && strings.Contains(lowered, brand) {
			boost += s.brandBoost
			if queryTokens[brand] {
				boost += s.brandBoost / 2
			}
		}

		if model := strings.ToLower(c.Listing.Model); model != "" && strings.Contains(lowered, model) {
			boost += s.modelBoost
			modelTokens := strings.Fields(model)
			matched := 0
			for _, tok := range modelTokens {
				if queryTokens[tok] {
					matched++
				}
			}
			if matched > 0 {
				boost += s.modelBoost * float64(matched) / float64(len(modelTokens))
			}
		}

		if material := strings.ToLower(c.Listing.Material); material != "" && strings.Contains(lowered, material) {
			boost += s.materialBoost
		}

		boosts[i] = boost
	}
	return boosts, nil
}
