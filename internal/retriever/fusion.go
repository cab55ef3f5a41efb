package retriever

import "sort"

// Source records which retrieval leg produced a candidate.
type Source string

const (
	SourceSemantic Source = "semantic"
	SourceLexical  Source = "lexical"
	SourceBoth     Source = "both"
)

const (
	// dualHitBoost multiplies the semantic score of a candidate found by
	// both legs.
	dualHitBoost = 1.2

	// lexicalNeutralScore is assigned to lexical-only candidates. Bleve
	// TF-IDF scores are not comparable with vector similarities, so a
	// flat neutral score keeps the fused ordering sane.
	lexicalNeutralScore = 0.5
)

// fusedHit is a candidate after merging both retrieval legs.
type fusedHit struct {
	ID     string
	Score  float64
	Source Source
}

// semanticHit pairs a listing ID with its vector similarity.
type semanticHit struct {
	ID         string
	Similarity float64
}

// fuse merges the semantic and lexical result sets by listing ID.
// Semantic scores dominate; appearing in both legs boosts the semantic
// score, and lexical-only hits enter with a neutral score. The result is
// sorted by fused score, best first, and capped at limit.
func fuse(semantic []semanticHit, lexicalIDs []string, limit int) []fusedHit {
	combined := make(map[string]*fusedHit, len(semantic)+len(lexicalIDs))
	order := make([]string, 0, len(semantic)+len(lexicalIDs))

	for _, h := range semantic {
		if existing, ok := combined[h.ID]; ok {
			if h.Similarity > existing.Score {
				existing.Score = h.Similarity
			}
			continue
		}
		combined[h.ID] = &fusedHit{ID: h.ID, Score: h.Similarity, Source: SourceSemantic}
		order = append(order, h.ID)
	}

	for _, id := range lexicalIDs {
		if existing, ok := combined[id]; ok {
			if existing.Source == SourceSemantic {
				existing.Score *= dualHitBoost
				existing.Source = SourceBoth
			}
			continue
		}
		combined[id] = &fusedHit{ID: id, Score: lexicalNeutralScore, Source: SourceLexical}
		order = append(order, id)
	}

	out := make([]fusedHit, 0, len(order))
	for _, id := range order {
		out = append(out, *combined[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
