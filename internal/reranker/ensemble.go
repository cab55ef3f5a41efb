package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nightowl2626/LuxPricer/internal/retriever"
)

// originalScoreWeight is the fraction of the retrieval score carried into
// the final reranked score, so fused retrieval quality still breaks ties.
const originalScoreWeight = 0.2

// Ensemble combines multiple reranking strategies with normalized
// weights. A failing strategy is logged and skipped rather than failing
// the whole rerank.
type Ensemble struct {
	strategies []Strategy
	weights    []float64
	logger     *slog.Logger
}

var _ Reranker = (*Ensemble)(nil)

// NewEnsemble creates an ensemble over the given strategies. weights may
// be nil for equal weighting; otherwise it must be parallel to strategies
// and sum to a positive value. Weights are normalized to sum to 1.
func NewEnsemble(strategies []Strategy, weights []float64, logger *slog.Logger) (*Ensemble, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("ensemble requires at least one strategy")
	}
	if weights == nil {
		weights = make([]float64, len(strategies))
		for i := range weights {
			weights[i] = 1.0 / float64(len(strategies))
		}
	}
	if len(weights) != len(strategies) {
		return nil, fmt.Errorf("got %d weights for %d strategies", len(weights), len(strategies))
	}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative strategy weight %v", w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("strategy weights sum to zero")
	}
	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / total
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ensemble{strategies: strategies, weights: normalized, logger: logger}, nil
}

// Rerank implements Reranker. The final score is the weighted sum of
// strategy boosts plus a fraction of the original retrieval score.
func (e *Ensemble) Rerank(ctx context.Context, query string, candidates []retriever.Candidate, topK int) ([]Scored, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{
			Candidate:      c,
			RerankScore:    c.Score * originalScoreWeight,
			StrategyBoosts: make(map[string]float64, len(e.strategies)),
		}
	}

	applied := 0
	for i, strategy := range e.strategies {
		boosts, err := strategy.Boosts(ctx, query, candidates)
		if err != nil {
			e.logger.Warn("rerank strategy failed, skipping",
				slog.String("strategy", strategy.Name()),
				slog.Any("error", err))
			continue
		}
		if len(boosts) != len(candidates) {
			e.logger.Warn("rerank strategy returned wrong boost count, skipping",
				slog.String("strategy", strategy.Name()),
				slog.Int("got", len(boosts)),
				slog.Int("want", len(candidates)))
			continue
		}
		for j, boost := range boosts {
			weighted := boost * e.weights[i]
			scored[j].RerankScore += weighted
			scored[j].StrategyBoosts[strategy.Name()] = weighted
		}
		applied++
	}
	if applied == 0 {
		e.logger.Warn("all rerank strategies failed, preserving retrieval order",
			slog.String("query", query))
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].RerankScore > scored[j].RerankScore })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
