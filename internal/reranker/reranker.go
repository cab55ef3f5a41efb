// Package reranker provides re-ranking capabilities for retrieval results.
//
// Retrieval scores rank candidates by how well their text matches the
// query; reranking refines that order with strategies that understand the
// listing structure: exact brand and model tokens, material mentions, and
// a semantic pass over the full listing text.
//
// # Trade-offs
//
//   - Keyword boosts are effectively free and catch the cases dense
//     retrieval blurs (brand and model token identity).
//   - Semantic reranking adds one query embedding plus one embedding per
//     candidate, so it is the slow path; keep candidate sets small.
//
// The ensemble combines both, keeping a fraction of the original
// retrieval score so fused retrieval quality still matters.
package reranker

import (
	"context"

	"github.com/nightowl2626/LuxPricer/internal/retriever"
)

// Scored represents a candidate with its reranked score.
type Scored struct {
	retriever.Candidate

	// RerankScore is the final combined score used for ordering.
	RerankScore float64

	// StrategyBoosts records each strategy's contribution, for response
	// metadata and debugging.
	StrategyBoosts map[string]float64
}

// Strategy scores candidates against a query. Boosts returns one
// non-negative boost per candidate, parallel to the input slice.
type Strategy interface {
	Name() string
	Boosts(ctx context.Context, query string, candidates []retriever.Candidate) ([]float64, error)
}

// Reranker defines the interface for re-ranking retrieval results.
type Reranker interface {
	// Rerank reorders candidates by relevance to the query. The topK
	// parameter limits the output; topK <= 0 returns all candidates.
	Rerank(ctx context.Context, query string, candidates []retriever.Candidate, topK int) ([]Scored, error)
}
