package reranker

import (
	"context"
	"fmt"
	"math"

	"github.com/nightowl2626/LuxPricer/internal/embedder"
	"github.com/nightowl2626/LuxPricer/internal/retriever"
)

// semanticWeight scales cosine similarity into a boost comparable with
// the keyword boosts.
const semanticWeight = 0.5

// SemanticStrategy boosts candidates by the cosine similarity between the
// query embedding and the candidate's listing text embedding. The query
// is embedded once per call; candidate texts are embedded as a batch.
type SemanticStrategy struct {
	embedder embedder.Embedder
}

var _ Strategy = (*SemanticStrategy)(nil)

// NewSemanticStrategy creates a semantic reranking strategy.
func NewSemanticStrategy(emb embedder.Embedder) *SemanticStrategy {
	return &SemanticStrategy{embedder: emb}
}

// Name implements Strategy.
func (s *SemanticStrategy) Name() string { return "semantic" }

// Boosts implements Strategy.
func (s *SemanticStrategy) Boosts(ctx context.Context, query string, candidates []retriever.Candidate) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Listing.EmbeddingText()
	}
	candidateVecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}

	boosts := make([]float64, len(candidates))
	for i, vec := range candidateVecs {
		boosts[i] = cosineSimilarity(queryVec, vec) * semanticWeight
	}
	return boosts, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
