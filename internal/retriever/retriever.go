// Package retriever implements hybrid candidate retrieval: a dense vector
// leg and a lexical keyword leg run concurrently, their results fused by
// listing ID, filtered by recognized query constraints, and returned as
// scored candidates for reranking.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nightowl2626/LuxPricer/internal/embedder"
	"github.com/nightowl2626/LuxPricer/internal/lexical"
	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/vectorindex"
)

const (
	// DefaultTopK is the number of candidates returned when the caller
	// does not specify one.
	DefaultTopK = 10

	// candidateMultiplier widens each leg's fetch so filtering and fusion
	// still leave enough candidates.
	candidateMultiplier = 3

	// maxCandidates caps the per-leg fetch regardless of TopK.
	maxCandidates = 30
)

// Candidate is a retrieved listing with its fused retrieval score.
type Candidate struct {
	Listing listing.Listing
	Score   float64
	Source  Source
}

// Options narrows a search beyond the query text. Explicit filters win
// over filters recognized in the query.
type Options struct {
	TopK     int
	Brand    string
	Category string
	Price    *PriceBand

	// DisableLexical turns off the keyword leg, leaving pure vector
	// search.
	DisableLexical bool
}

// ListingLookup resolves listing IDs to full listings.
type ListingLookup interface {
	GetMany(ctx context.Context, ids []string) ([]listing.Listing, error)
}

// Hybrid retrieves candidates with both vector and keyword search.
type Hybrid struct {
	embedder embedder.Embedder
	vectors  vectorindex.Index
	lexical  lexical.Searcher
	listings ListingLookup
	logger   *slog.Logger
}

// NewHybrid creates a hybrid retriever. The lexical searcher may be nil,
// which degrades to vector-only retrieval.
func NewHybrid(emb embedder.Embedder, vectors vectorindex.Index, lex lexical.Searcher, listings ListingLookup, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{
		embedder: emb,
		vectors:  vectors,
		lexical:  lex,
		listings: listings,
		logger:   logger,
	}
}

// Search retrieves, fuses, and filters candidates for the query. Both
// legs run concurrently; a single failing leg is logged and dropped, and
// an error is returned only when no leg produced results.
func (h *Hybrid) Search(ctx context.Context, query string, opts Options) ([]Candidate, Analysis, error) {
	analysis := Analyze(query)

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	fetch := topK * candidateMultiplier
	if fetch > maxCandidates {
		fetch = maxCandidates
	}

	var (
		semHits []semanticHit
		lexIDs  []string
		semErr  error
		lexErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semHits, semErr = h.semanticLeg(gctx, query, fetch)
		return nil
	})
	if h.lexical != nil && !opts.DisableLexical {
		g.Go(func() error {
			lexIDs, lexErr = h.lexicalLeg(gctx, query, fetch)
			return nil
		})
	}
	// Leg errors are captured, not returned, so one leg cannot cancel
	// the other.
	_ = g.Wait()

	if semErr != nil {
		h.logger.Warn("semantic retrieval failed, continuing with lexical leg",
			slog.String("query", query), slog.Any("error", semErr))
	}
	if lexErr != nil {
		h.logger.Warn("lexical retrieval failed, continuing with semantic leg",
			slog.String("query", query), slog.Any("error", lexErr))
	}
	if semErr != nil && lexErr != nil {
		return nil, analysis, fmt.Errorf("all retrieval legs failed: %w", errors.Join(semErr, lexErr))
	}

	fused := fuse(semHits, lexIDs, fetch)
	if len(fused) == 0 {
		return nil, analysis, nil
	}

	ids := make([]string, len(fused))
	scoreByID := make(map[string]fusedHit, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
		scoreByID[f.ID] = f
	}
	resolved, err := h.listings.GetMany(ctx, ids)
	if err != nil {
		return nil, analysis, fmt.Errorf("resolve candidate listings: %w", err)
	}

	candidates := make([]Candidate, 0, len(resolved))
	for _, l := range resolved {
		f := scoreByID[l.ID]
		candidates = append(candidates, Candidate{Listing: l, Score: f.Score, Source: f.Source})
	}

	candidates = applyFilters(candidates, effectiveFilters(opts, analysis))
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	h.logger.Debug("hybrid search completed",
		slog.String("query", query),
		slog.Int("semantic_hits", len(semHits)),
		slog.Int("lexical_hits", len(lexIDs)),
		slog.Int("returned", len(candidates)))

	return candidates, analysis, nil
}

func (h *Hybrid) semanticLeg(ctx context.Context, query string, fetch int) ([]semanticHit, error) {
	vector, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := h.vectors.Search(ctx, vector, fetch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]semanticHit, len(hits))
	for i, hit := range hits {
		out[i] = semanticHit{ID: hit.ID, Similarity: hit.Similarity}
	}
	return out, nil
}

func (h *Hybrid) lexicalLeg(ctx context.Context, query string, fetch int) ([]string, error) {
	hits, err := h.lexical.Search(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// filters are the effective post-fusion constraints.
type filters struct {
	brand    string
	category string
	price    *PriceBand
}

// effectiveFilters combines explicit options with query analysis;
// explicit filters take precedence.
func effectiveFilters(opts Options, analysis Analysis) filters {
	f := filters{
		brand:    opts.Brand,
		category: opts.Category,
		price:    opts.Price,
	}
	if f.brand == "" && analysis.HasBrand() {
		f.brand = analysis.Brands[0]
	}
	if f.category == "" && analysis.HasCategory() {
		f.category = analysis.Categories[0]
	}
	if f.price == nil {
		f.price = analysis.PriceRange
	}
	return f
}

func applyFilters(candidates []Candidate, f filters) []Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if f.brand != "" && !strings.EqualFold(c.Listing.Brand, f.brand) {
			continue
		}
		if f.category != "" && !strings.EqualFold(c.Listing.Category, f.category) {
			continue
		}
		if f.price != nil {
			if c.Listing.Price < f.price.Min || c.Listing.Price > f.price.Max {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
