// Package pricing turns a similarity-weighted set of comparable listings
// into a price estimate with a range and a confidence label.
//
// The estimate is a product of bounded adjustment factors over a weighted
// base price:
//
//	estimate = base × condition_factor × trend_factor × variance_factor
//
// where base is the reliability×similarity weighted average of comparable
// prices. The clamp bands and penalty constants are empirically tuned; they
// are kept as named, overridable configuration rather than derived values.
package pricing

import (
	"fmt"
	"math"
)

// Confidence labels the quality of an estimate, monotonic in comparable
// count and match quality.
type Confidence string

const (
	ConfidenceVeryLow Confidence = "very low"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

// Config holds the estimator's tunable constants.
type Config struct {
	// MinComparables is the minimum number of qualifying comparables
	// required for a valid estimate.
	MinComparables int

	// MinSimilarity is the similarity threshold below which a candidate is
	// excluded from aggregation.
	MinSimilarity float64

	// ExactMatchSimilarity marks a comparable as an exact match; exact
	// matches drive the surfaced min/max bounds and lift confidence.
	ExactMatchSimilarity float64

	// Condition factor clamp band.
	MinConditionFactor float64
	MaxConditionFactor float64

	// Trend factor band: trend score 0 maps to MinTrendFactor, 1 to
	// MaxTrendFactor. A score of 0.5 is neutral.
	MinTrendFactor float64
	MaxTrendFactor float64

	// DefaultTrendScore is substituted when no trend signal is supplied.
	DefaultTrendScore float64

	// Variance penalty: base price is shaded down by
	// min(CV, VarianceMaxCV) × VariancePenaltyScale.
	VariancePenaltyScale float64
	VarianceMaxCV        float64
}

// DefaultConfig returns the production estimator constants.
func DefaultConfig() Config {
	return Config{
		MinComparables:       5,
		MinSimilarity:        0.15,
		ExactMatchSimilarity: 0.8,
		MinConditionFactor:   0.7,
		MaxConditionFactor:   1.3,
		MinTrendFactor:       0.85,
		MaxTrendFactor:       1.15,
		DefaultTrendScore:    0.5,
		VariancePenaltyScale: 0.1,
		VarianceMaxCV:        0.75,
	}
}

// Comparable is one candidate listing's contribution to the estimate.
type Comparable struct {
	ID             string
	Price          float64
	ConditionScore int
	Reliability    float64
	Similarity     float64
}

// Range is an inclusive price band.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Estimate is the full estimation payload.
type Estimate struct {
	EstimatedPrice float64    `json:"estimated_price"`
	PriceRange     Range      `json:"price_range"`
	Confidence     Confidence `json:"confidence"`

	BasePrice       float64 `json:"base_price"`
	ConditionFactor float64 `json:"condition_factor"`
	TrendFactor     float64 `json:"trend_factor"`
	VarianceFactor  float64 `json:"variance_factor"`

	ComparableCount int `json:"comparable_count"`
	ExactMatchCount int `json:"exact_match_count"`

	// Exact-match bounds, present only when exact matches exist.
	ExactMatchRange *Range `json:"exact_match_range,omitempty"`

	MinSimilarityUsed     float64 `json:"min_similarity_used"`
	MaxSimilarityUsed     float64 `json:"max_similarity_used"`
	AvgConditionScore     float64 `json:"avg_condition_score"`
	TargetConditionScore  int     `json:"target_condition_score"`
	TrendScoreUsed        float64 `json:"trend_score_used"`
	CoefficientOfVariance float64 `json:"coefficient_of_variation"`
}

// InsufficientDataError reports that too few qualifying comparables exist
// for a defensible estimate. It carries diagnostics so callers can present
// a qualitative fallback instead of a blank value.
type InsufficientDataError struct {
	Considered    int
	Qualified     int
	Required      int
	MinSimilarity float64
	MaxSimilarity float64
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient comparable listings: %d qualified of %d considered, need %d",
		e.Qualified, e.Considered, e.Required)
}

// numericError reports a degenerate computation (zero weight sum and the
// like). Surfaced as a structured error, never as a silent zero price.
type numericError struct{ reason string }

func (e *numericError) Error() string { return "price estimation failed: " + e.reason }

// Estimator computes price estimates from comparables.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an estimator with the given configuration. Zero
// values fall back to defaults field by field.
func NewEstimator(cfg Config) *Estimator {
	def := DefaultConfig()
	if cfg.MinComparables <= 0 {
		cfg.MinComparables = def.MinComparables
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	if cfg.ExactMatchSimilarity <= 0 {
		cfg.ExactMatchSimilarity = def.ExactMatchSimilarity
	}
	if cfg.MinConditionFactor <= 0 {
		cfg.MinConditionFactor = def.MinConditionFactor
	}
	if cfg.MaxConditionFactor <= 0 {
		cfg.MaxConditionFactor = def.MaxConditionFactor
	}
	if cfg.MinTrendFactor <= 0 {
		cfg.MinTrendFactor = def.MinTrendFactor
	}
	if cfg.MaxTrendFactor <= 0 {
		cfg.MaxTrendFactor = def.MaxTrendFactor
	}
	if cfg.DefaultTrendScore <= 0 {
		cfg.DefaultTrendScore = def.DefaultTrendScore
	}
	if cfg.VariancePenaltyScale <= 0 {
		cfg.VariancePenaltyScale = def.VariancePenaltyScale
	}
	if cfg.VarianceMaxCV <= 0 {
		cfg.VarianceMaxCV = def.VarianceMaxCV
	}
	return &Estimator{cfg: cfg}
}

// Config returns the estimator's effective configuration.
func (e *Estimator) Config() Config { return e.cfg }

// Estimate computes the price estimate for a target with the given
// condition score from the candidate comparables. trendScore may be nil to
// use the configured default.
func (e *Estimator) Estimate(targetConditionScore int, candidates []Comparable, trendScore *float64) (*Estimate, error) {
	cfg := e.cfg

	// Filter to qualifying comparables, tracking similarity bounds over
	// everything considered for diagnostics.
	var (
		qualified        []Comparable
		consideredMin    = math.Inf(1)
		consideredMax    = math.Inf(-1)
		exactMatchPrices []float64
		minSimUsed       = 1.0
		maxSimUsed       = 0.0
	)
	for _, c := range candidates {
		if c.Similarity < consideredMin {
			consideredMin = c.Similarity
		}
		if c.Similarity > consideredMax {
			consideredMax = c.Similarity
		}
		if c.Similarity < cfg.MinSimilarity {
			continue
		}
		if c.Price <= 0 || c.Reliability <= 0 {
			continue
		}
		qualified = append(qualified, c)
		if c.Similarity >= cfg.ExactMatchSimilarity-1e-9 {
			exactMatchPrices = append(exactMatchPrices, c.Price)
		}
		if c.Similarity < minSimUsed {
			minSimUsed = c.Similarity
		}
		if c.Similarity > maxSimUsed {
			maxSimUsed = c.Similarity
		}
	}

	if len(qualified) < cfg.MinComparables {
		errMin, errMax := 0.0, 0.0
		if len(candidates) > 0 {
			errMin, errMax = consideredMin, consideredMax
		}
		return nil, &InsufficientDataError{
			Considered:    len(candidates),
			Qualified:     len(qualified),
			Required:      cfg.MinComparables,
			MinSimilarity: errMin,
			MaxSimilarity: errMax,
		}
	}

	// Weighted base price and average observed condition. The combined
	// weight is reliability × similarity.
	var totalWeight, priceSum, conditionSum float64
	prices := make([]float64, 0, len(qualified))
	for _, c := range qualified {
		w := c.Reliability * c.Similarity
		if w <= 1e-9 {
			continue
		}
		totalWeight += w
		priceSum += c.Price * w
		conditionSum += float64(c.ConditionScore) * w
		prices = append(prices, c.Price)
	}
	if totalWeight <= 1e-9 {
		return nil, &numericError{reason: "combined weight sum is zero"}
	}
	basePrice := priceSum / totalWeight
	avgCondition := conditionSum / totalWeight
	if basePrice <= 0 {
		return nil, &numericError{reason: "weighted base price is not positive"}
	}

	// Condition factor, clamped so an outlier condition rating cannot
	// explode the estimate.
	conditionFactor := 1.0
	if avgCondition > 1e-9 {
		conditionFactor = float64(targetConditionScore) / avgCondition
		conditionFactor = clamp(conditionFactor, cfg.MinConditionFactor, cfg.MaxConditionFactor)
	}

	// Trend factor: linear map of [0,1] onto the configured band.
	ts := cfg.DefaultTrendScore
	if trendScore != nil {
		ts = clamp(*trendScore, 0, 1)
	}
	trendFactor := cfg.MinTrendFactor + ts*(cfg.MaxTrendFactor-cfg.MinTrendFactor)

	// Variance factor: penalize dispersion among comparable prices.
	varianceFactor := 1.0
	cv := 0.0
	if len(prices) >= 2 {
		cv = stddev(prices) / basePrice
		varianceFactor = 1.0 - math.Min(cv, cfg.VarianceMaxCV)*cfg.VariancePenaltyScale
	}

	estimated := basePrice * conditionFactor * trendFactor * varianceFactor
	if estimated <= 0 || math.IsNaN(estimated) || math.IsInf(estimated, 0) {
		return nil, &numericError{reason: fmt.Sprintf("degenerate estimate %v", estimated)}
	}

	confidence := confidenceLabel(len(qualified), len(exactMatchPrices), maxSimUsed, cv)

	result := &Estimate{
		EstimatedPrice:        round2(estimated),
		PriceRange:            rangeForConfidence(estimated, confidence),
		Confidence:            confidence,
		BasePrice:             round2(basePrice),
		ConditionFactor:       round3(conditionFactor),
		TrendFactor:           round3(trendFactor),
		VarianceFactor:        round3(varianceFactor),
		ComparableCount:       len(qualified),
		ExactMatchCount:       len(exactMatchPrices),
		MinSimilarityUsed:     round3(minSimUsed),
		MaxSimilarityUsed:     round3(maxSimUsed),
		AvgConditionScore:     round2(avgCondition),
		TargetConditionScore:  targetConditionScore,
		TrendScoreUsed:        round3(ts),
		CoefficientOfVariance: round3(cv),
	}

	if len(exactMatchPrices) > 0 {
		lo, hi := exactMatchPrices[0], exactMatchPrices[0]
		for _, p := range exactMatchPrices[1:] {
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		result.ExactMatchRange = &Range{Min: round2(lo), Max: round2(hi)}
	}

	return result, nil
}

// confidenceLabel grades an estimate by exact-match count, comparable
// count, best similarity seen, and price dispersion. Wide dispersion
// demotes the label one level.
func confidenceLabel(comparables, exactMatches int, maxSim, cv float64) Confidence {
	var c Confidence
	switch {
	case exactMatches >= 3:
		c = ConfidenceHigh
	case exactMatches >= 1 || (comparables >= 8 && maxSim >= 0.6):
		c = ConfidenceMedium
	case maxSim >= 0.3:
		c = ConfidenceLow
	default:
		// Brand-only, low-similarity matches.
		c = ConfidenceVeryLow
	}
	if cv >= 0.5 {
		c = demote(c)
	}
	return c
}

func demote(c Confidence) Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// rangeForConfidence derives the general price band: tight for
// high-confidence estimates, widening as match quality degrades.
func rangeForConfidence(price float64, c Confidence) Range {
	var band float64
	switch c {
	case ConfidenceHigh:
		band = 0.15
	case ConfidenceMedium:
		band = 0.25
	case ConfidenceLow:
		band = 0.35
	default:
		band = 0.50
	}
	return Range{Min: round2(price * (1 - band)), Max: round2(price * (1 + band))}
}

func stddev(values []float64) float64 {
	n := float64(len(values))
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	// Sample standard deviation.
	return math.Sqrt(sum / (n - 1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
