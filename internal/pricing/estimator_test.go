package pricing

import (
	"errors"
	"math"
	"testing"
)

func comparableSet(n int, price, sim float64) []Comparable {
	out := make([]Comparable, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Comparable{
			Price:          price,
			ConditionScore: 4,
			Reliability:    0.95,
			Similarity:     sim,
		})
	}
	return out
}

func TestEstimateInsufficientData(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	candidates := comparableSet(3, 5000, 0.9)
	candidates = append(candidates, Comparable{Price: 4800, ConditionScore: 3, Reliability: 0.75, Similarity: 0.05})

	_, err := est.Estimate(4, candidates, nil)
	if err == nil {
		t.Fatal("expected error with only 3 qualifying comparables")
	}
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %T: %v", err, err)
	}
	if insufficient.Considered != 4 || insufficient.Qualified != 3 {
		t.Errorf("diagnostics = considered %d qualified %d, want 4/3",
			insufficient.Considered, insufficient.Qualified)
	}
	if insufficient.Required != 5 {
		t.Errorf("required = %d, want 5", insufficient.Required)
	}
	if insufficient.MaxSimilarity != 0.9 {
		t.Errorf("max similarity = %v, want 0.9", insufficient.MaxSimilarity)
	}
}

func TestEstimateExactMatches(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	// Five highly reliable exact matches around 12000, same condition as
	// the target.
	candidates := []Comparable{
		{Price: 11800, ConditionScore: 4, Reliability: 0.95, Similarity: 0.92},
		{Price: 12000, ConditionScore: 4, Reliability: 0.95, Similarity: 0.90},
		{Price: 12200, ConditionScore: 4, Reliability: 0.95, Similarity: 0.88},
		{Price: 11900, ConditionScore: 4, Reliability: 0.75, Similarity: 0.85},
		{Price: 12100, ConditionScore: 4, Reliability: 0.75, Similarity: 0.82},
	}

	got, err := est.Estimate(4, candidates, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %q, want %q", got.Confidence, ConfidenceHigh)
	}
	if got.ExactMatchCount != 5 {
		t.Errorf("exact match count = %d, want 5", got.ExactMatchCount)
	}
	if got.ExactMatchRange == nil {
		t.Fatal("expected exact match range")
	}
	if got.ExactMatchRange.Min != 11800 || got.ExactMatchRange.Max != 12200 {
		t.Errorf("exact match range = [%v, %v], want [11800, 12200]",
			got.ExactMatchRange.Min, got.ExactMatchRange.Max)
	}
	// Same condition on both sides: neutral condition factor.
	if got.ConditionFactor != 1.0 {
		t.Errorf("condition factor = %v, want 1.0", got.ConditionFactor)
	}
	// Default trend score 0.5 maps to the middle of [0.85, 1.15].
	if got.TrendFactor != 1.0 {
		t.Errorf("trend factor = %v, want 1.0", got.TrendFactor)
	}
	if got.EstimatedPrice <= 0 {
		t.Fatalf("estimated price = %v, want > 0", got.EstimatedPrice)
	}
	// Tight cluster: estimate stays close to the weighted mean.
	if got.EstimatedPrice < 11500 || got.EstimatedPrice > 12500 {
		t.Errorf("estimated price = %v, outside plausible band", got.EstimatedPrice)
	}
	if got.PriceRange.Min >= got.EstimatedPrice || got.PriceRange.Max <= got.EstimatedPrice {
		t.Errorf("price range [%v, %v] does not bracket estimate %v",
			got.PriceRange.Min, got.PriceRange.Max, got.EstimatedPrice)
	}
}

func TestEstimateConditionFactorClamped(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	// Comparables in fair condition (score 1), target brand new (score 5):
	// raw ratio 5.0 must clamp to the configured ceiling.
	candidates := make([]Comparable, 5)
	for i := range candidates {
		candidates[i] = Comparable{Price: 1000, ConditionScore: 1, Reliability: 0.8, Similarity: 0.5}
	}

	got, err := est.Estimate(5, candidates, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.ConditionFactor != 1.3 {
		t.Errorf("condition factor = %v, want clamp at 1.3", got.ConditionFactor)
	}

	// Reverse direction clamps at the floor.
	for i := range candidates {
		candidates[i].ConditionScore = 5
	}
	got, err = est.Estimate(1, candidates, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.ConditionFactor != 0.7 {
		t.Errorf("condition factor = %v, want clamp at 0.7", got.ConditionFactor)
	}
}

func TestEstimateTrendFactor(t *testing.T) {
	est := NewEstimator(DefaultConfig())
	candidates := comparableSet(5, 2000, 0.6)

	tests := []struct {
		name  string
		trend *float64
		want  float64
	}{
		{"nil uses neutral default", nil, 1.0},
		{"hot market", ptr(1.0), 1.15},
		{"cold market", ptr(0.0), 0.85},
		{"clamped above one", ptr(1.8), 1.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := est.Estimate(4, candidates, tt.trend)
			if err != nil {
				t.Fatalf("Estimate: %v", err)
			}
			if math.Abs(got.TrendFactor-tt.want) > 1e-9 {
				t.Errorf("trend factor = %v, want %v", got.TrendFactor, tt.want)
			}
		})
	}
}

func TestEstimateVariancePenalty(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	// Widely dispersed prices shade the estimate down and demote
	// confidence.
	candidates := []Comparable{
		{Price: 500, ConditionScore: 3, Reliability: 0.8, Similarity: 0.85},
		{Price: 900, ConditionScore: 3, Reliability: 0.8, Similarity: 0.85},
		{Price: 2500, ConditionScore: 3, Reliability: 0.8, Similarity: 0.85},
		{Price: 4800, ConditionScore: 3, Reliability: 0.8, Similarity: 0.85},
		{Price: 9500, ConditionScore: 3, Reliability: 0.8, Similarity: 0.85},
	}

	got, err := est.Estimate(3, candidates, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.VarianceFactor >= 1.0 {
		t.Errorf("variance factor = %v, want < 1.0 for dispersed prices", got.VarianceFactor)
	}
	// Capped CV bounds the penalty.
	if got.VarianceFactor < 1.0-0.75*0.1-1e-9 {
		t.Errorf("variance factor = %v, below the capped floor", got.VarianceFactor)
	}
	// 5 exact matches would be high; dispersion demotes one level.
	if got.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %q, want %q after dispersion demotion", got.Confidence, ConfidenceMedium)
	}
}

func TestEstimateLowSimilarityConfidence(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	got, err := est.Estimate(3, comparableSet(6, 3000, 0.2), nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.Confidence != ConfidenceVeryLow {
		t.Errorf("confidence = %q, want %q for brand-only matches", got.Confidence, ConfidenceVeryLow)
	}
	// Very low confidence carries the widest band.
	if got.PriceRange.Min != round2(got.EstimatedPrice*0.5) {
		t.Errorf("range min = %v, want half the estimate", got.PriceRange.Min)
	}
}

func TestEstimateSkipsInvalidComparables(t *testing.T) {
	est := NewEstimator(DefaultConfig())

	candidates := comparableSet(5, 4000, 0.7)
	candidates = append(candidates,
		Comparable{Price: 0, ConditionScore: 4, Reliability: 0.9, Similarity: 0.9},
		Comparable{Price: 4100, ConditionScore: 4, Reliability: 0, Similarity: 0.9},
	)

	got, err := est.Estimate(4, candidates, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.ComparableCount != 5 {
		t.Errorf("comparable count = %d, want 5 after dropping invalid entries", got.ComparableCount)
	}
}

func TestNewEstimatorDefaults(t *testing.T) {
	est := NewEstimator(Config{MinComparables: 3})
	cfg := est.Config()
	if cfg.MinComparables != 3 {
		t.Errorf("MinComparables = %d, want explicit 3", cfg.MinComparables)
	}
	if cfg.MinSimilarity != 0.15 {
		t.Errorf("MinSimilarity = %v, want default 0.15", cfg.MinSimilarity)
	}
	if cfg.VarianceMaxCV != 0.75 {
		t.Errorf("VarianceMaxCV = %v, want default 0.75", cfg.VarianceMaxCV)
	}
}

func ptr(v float64) *float64 { return &v }
