// Package service orchestrates the appraisal flow: hybrid retrieval,
// reranking, attribute similarity scoring, and price estimation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nightowl2626/LuxPricer/internal/cache"
	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/pricing"
	"github.com/nightowl2626/LuxPricer/internal/reranker"
	"github.com/nightowl2626/LuxPricer/internal/retriever"
	"github.com/nightowl2626/LuxPricer/internal/similarity"
	"github.com/nightowl2626/LuxPricer/internal/trend"
)

// comparablePoolSize is how many candidates are pulled for estimation
// before similarity filtering.
const comparablePoolSize = 30

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Estimate response statuses.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
	StatusNoBrandMatch     = "no_brand_match"
)

// Retriever is the candidate retrieval dependency.
type Retriever interface {
	Search(ctx context.Context, query string, opts retriever.Options) ([]retriever.Candidate, retriever.Analysis, error)
}

// SearchRequest is a free-text comparable search.
type SearchRequest struct {
	Query    string   `json:"query"`
	TopK     int      `json:"top_k,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`

	// DisableReranker skips the reranking stage.
	DisableReranker bool `json:"disable_reranker,omitempty"`
}

// SearchResult is one scored listing in a search response.
type SearchResult struct {
	Listing        listing.Listing    `json:"listing"`
	Score          float64            `json:"score"`
	RetrievalScore float64            `json:"retrieval_score"`
	Source         string             `json:"source"`
	StrategyBoosts map[string]float64 `json:"strategy_boosts,omitempty"`
}

// SearchResponse is the search payload.
type SearchResponse struct {
	Query     string             `json:"query"`
	Results   []SearchResult     `json:"results"`
	Analysis  retriever.Analysis `json:"analysis"`
	Total     int                `json:"total"`
	ElapsedMS int64              `json:"elapsed_ms"`
}

// EstimateRequest asks for a price estimate of a target item.
type EstimateRequest struct {
	Target listing.TargetItem `json:"target"`
}

// Comparable is a qualifying listing surfaced in an estimate response.
type Comparable struct {
	ID             string  `json:"id"`
	Brand          string  `json:"brand"`
	Model          string  `json:"model"`
	Price          float64 `json:"price"`
	ConditionLabel string  `json:"condition_label,omitempty"`
	SourcePlatform string  `json:"source_platform,omitempty"`
	Similarity     float64 `json:"similarity"`
}

// EstimateResponse is the appraisal payload. Estimate is nil unless
// Status is StatusOK; Reason explains degraded statuses.
type EstimateResponse struct {
	Target      listing.TargetItem `json:"target"`
	Status      string             `json:"status"`
	Reason      string             `json:"reason,omitempty"`
	Confidence  pricing.Confidence `json:"confidence"`
	Estimate    *pricing.Estimate  `json:"estimate,omitempty"`
	Comparables []Comparable       `json:"comparables,omitempty"`
	ElapsedMS   int64              `json:"elapsed_ms"`
	Cached      bool               `json:"cached"`
}

// Appraisal is the pricing service.
type Appraisal struct {
	retriever Retriever
	reranker  reranker.Reranker
	estimator *pricing.Estimator
	simCfg    similarity.Config
	trends    trend.Provider
	estimates *cache.Cache[*EstimateResponse]
	logger    *slog.Logger
}

// Option is a functional option for configuring Appraisal.
type Option func(*Appraisal)

// WithReranker sets the reranking stage.
func WithReranker(r reranker.Reranker) Option {
	return func(a *Appraisal) { a.reranker = r }
}

// WithTrendProvider sets the market trend source.
func WithTrendProvider(p trend.Provider) Option {
	return func(a *Appraisal) { a.trends = p }
}

// WithEstimateCache enables response caching.
func WithEstimateCache(c *cache.Cache[*EstimateResponse]) Option {
	return func(a *Appraisal) { a.estimates = c }
}

// WithSimilarityConfig overrides the attribute similarity weights.
func WithSimilarityConfig(cfg similarity.Config) Option {
	return func(a *Appraisal) { a.simCfg = cfg }
}

// NewAppraisal creates the appraisal service.
func NewAppraisal(ret Retriever, est *pricing.Estimator, logger *slog.Logger, opts ...Option) *Appraisal {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Appraisal{
		retriever: ret,
		estimator: est,
		simCfg:    similarity.DefaultConfig(),
		trends:    trend.NewStatic(nil),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search retrieves and reranks comparable listings for a free-text query.
func (a *Appraisal) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	opts := retriever.Options{
		TopK:     req.TopK,
		Brand:    req.Brand,
		Category: req.Category,
	}
	if req.MinPrice != nil || req.MaxPrice != nil {
		band := retriever.PriceBand{Max: maxPriceOrInf(req.MaxPrice)}
		if req.MinPrice != nil {
			band.Min = *req.MinPrice
		}
		opts.Price = &band
	}

	candidates, analysis, err := a.retriever.Search(ctx, req.Query, opts)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", req.Query, err)
	}

	results := make([]SearchResult, 0, len(candidates))
	if a.reranker != nil && !req.DisableReranker && len(candidates) > 0 {
		scored, err := a.reranker.Rerank(ctx, req.Query, candidates, req.TopK)
		if err != nil {
			// Retrieval order is still usable.
			a.logger.Warn("reranking failed, returning retrieval order",
				slog.String("query", req.Query), slog.Any("error", err))
		} else {
			for _, s := range scored {
				results = append(results, SearchResult{
					Listing:        s.Listing,
					Score:          s.RerankScore,
					RetrievalScore: s.Candidate.Score,
					Source:         string(s.Source),
					StrategyBoosts: s.StrategyBoosts,
				})
			}
		}
	}
	if len(results) == 0 {
		for _, c := range candidates {
			results = append(results, SearchResult{
				Listing:        c.Listing,
				Score:          c.Score,
				RetrievalScore: c.Score,
				Source:         string(c.Source),
			})
		}
	}

	return &SearchResponse{
		Query:     req.Query,
		Results:   results,
		Analysis:  analysis,
		Total:     len(results),
		ElapsedMS: time.Since(start).Milliseconds(),
	}, nil
}

// Estimate appraises a target item against the comparable catalog.
func (a *Appraisal) Estimate(ctx context.Context, req EstimateRequest) (*EstimateResponse, error) {
	start := time.Now()

	if err := req.Target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var cacheKey string
	if a.estimates != nil {
		key, err := cache.Key(req)
		if err == nil {
			cacheKey = key
			if cached, ok := a.estimates.Get(cacheKey); ok {
				out := *cached
				out.Cached = true
				return &out, nil
			}
		}
	}

	comparables, err := a.gatherComparables(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	resp := a.estimate(ctx, req.Target, comparables)
	resp.ElapsedMS = time.Since(start).Milliseconds()

	if a.estimates != nil && cacheKey != "" {
		a.estimates.Set(cacheKey, resp)
	}
	return resp, nil
}

// scoredComparable pairs a candidate with its attribute similarity.
type scoredComparable struct {
	listing    listing.Listing
	similarity float64
}

// gatherComparables retrieves and reranks candidates for the target, then
// scores attribute similarity against it. When the brand-filtered pool
// comes back empty the retrieval is retried unfiltered so the response
// can say "wrong brand" instead of "nothing found".
func (a *Appraisal) gatherComparables(ctx context.Context, target listing.TargetItem) ([]scoredComparable, error) {
	query := target.QueryText()

	candidates, _, err := a.retriever.Search(ctx, query, retriever.Options{
		TopK:  comparablePoolSize,
		Brand: target.Brand,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve comparables: %w", err)
	}
	if len(candidates) == 0 {
		candidates, _, err = a.retriever.Search(ctx, query, retriever.Options{TopK: comparablePoolSize})
		if err != nil {
			return nil, fmt.Errorf("retrieve comparables: %w", err)
		}
	}

	if a.reranker != nil && len(candidates) > 0 {
		scored, err := a.reranker.Rerank(ctx, query, candidates, 0)
		if err != nil {
			a.logger.Warn("reranking failed, using retrieval order",
				slog.String("query", query), slog.Any("error", err))
		} else {
			reordered := make([]retriever.Candidate, len(scored))
			for i, s := range scored {
				reordered[i] = s.Candidate
			}
			candidates = reordered
		}
	}

	targetAttrs := similarity.FromTarget(&target)
	out := make([]scoredComparable, 0, len(candidates))
	for _, c := range candidates {
		sim := similarity.Score(a.simCfg, targetAttrs, similarity.FromListing(&c.Listing))
		out = append(out, scoredComparable{listing: c.Listing, similarity: sim})
	}
	return out, nil
}

func (a *Appraisal) estimate(ctx context.Context, target listing.TargetItem, comparables []scoredComparable) *EstimateResponse {
	resp := &EstimateResponse{Target: target}

	trendScore := target.TrendScore
	if trendScore == nil && a.trends != nil {
		if ts, err := a.trends.TrendScore(ctx, target.Brand, target.Model); err == nil {
			trendScore = &ts
		} else {
			a.logger.Warn("trend lookup failed, using default",
				slog.String("brand", target.Brand), slog.Any("error", err))
		}
	}

	input := make([]pricing.Comparable, len(comparables))
	for i, c := range comparables {
		input[i] = pricing.Comparable{
			ID:             c.listing.ID,
			Price:          c.listing.Price,
			ConditionScore: c.listing.ConditionScore,
			Reliability:    c.listing.SourceReliability,
			Similarity:     c.similarity,
		}
	}

	targetCondition := listing.NormalizeCondition(target.ConditionRating)
	estimate, err := a.estimator.Estimate(targetCondition, input, trendScore)
	if err == nil {
		resp.Status = StatusOK
		resp.Confidence = estimate.Confidence
		resp.Estimate = estimate
		resp.Comparables = presentComparables(comparables, a.estimator.Config().MinSimilarity)
		return resp
	}

	var insufficient *pricing.InsufficientDataError
	if !errors.As(err, &insufficient) {
		a.logger.Error("estimation failed",
			slog.String("brand", target.Brand),
			slog.String("model", target.Model),
			slog.Any("error", err))
		resp.Status = StatusInsufficientData
		resp.Confidence = pricing.ConfidenceVeryLow
		resp.Reason = "estimation failed on the gathered comparables"
		return resp
	}

	resp.Confidence = pricing.ConfidenceVeryLow
	if !anyBrandMatch(target, comparables) {
		resp.Status = StatusNoBrandMatch
		resp.Reason = fmt.Sprintf("no listings found for brand %q; reference listings are other brands", target.Brand)
		resp.Comparables = presentComparables(comparables, 0)
		return resp
	}

	resp.Status = StatusInsufficientData
	resp.Reason = fmt.Sprintf("found %d comparable listings above similarity %.2f, need %d",
		insufficient.Qualified, a.estimator.Config().MinSimilarity, insufficient.Required)
	resp.Comparables = presentComparables(comparables, 0)
	return resp
}

// presentComparables converts internal comparables to response shape,
// keeping only those at or above minSimilarity.
func presentComparables(comparables []scoredComparable, minSimilarity float64) []Comparable {
	out := make([]Comparable, 0, len(comparables))
	for _, c := range comparables {
		if c.similarity < minSimilarity {
			continue
		}
		out = append(out, Comparable{
			ID:             c.listing.ID,
			Brand:          c.listing.Brand,
			Model:          c.listing.Model,
			Price:          c.listing.Price,
			ConditionLabel: c.listing.ConditionLabel,
			SourcePlatform: c.listing.SourcePlatform,
			Similarity:     c.similarity,
		})
	}
	return out
}

func anyBrandMatch(target listing.TargetItem, comparables []scoredComparable) bool {
	want := listing.NormalizeName(target.Brand)
	for _, c := range comparables {
		if listing.NormalizeName(c.listing.Brand) == want {
			return true
		}
	}
	return false
}

func maxPriceOrInf(p *float64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return *p
}
