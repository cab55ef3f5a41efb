// Package ingest builds the serving indexes from raw listing data:
// validation, normalization, batch embedding, and population of the
// vector index, lexical index, and listing store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nightowl2626/LuxPricer/internal/embedder"
	"github.com/nightowl2626/LuxPricer/internal/lexical"
	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/store"
	"github.com/nightowl2626/LuxPricer/internal/vectorindex"
)

// DefaultBatchSize is the number of listings embedded per batch call.
const DefaultBatchSize = 32

// Stats describes one ingestion run.
type Stats struct {
	// Total is the number of raw listings offered to the pipeline.
	Total int

	// Ingested is the number of listings embedded and indexed.
	Ingested int

	// Skipped is the number of listings rejected by validation.
	Skipped int

	// ProcessingTime is the wall-clock duration of the run.
	ProcessingTime time.Duration
}

// Config holds pipeline construction parameters.
type Config struct {
	Embedder  embedder.Embedder
	Vectors   vectorindex.Index
	Lexical   lexical.Searcher // optional
	Listings  store.ListingStore
	Logger    *slog.Logger
	BatchSize int
}

// Pipeline ingests listings into the serving indexes.
type Pipeline struct {
	embedder  embedder.Embedder
	vectors   vectorindex.Index
	lexical   lexical.Searcher
	listings  store.ListingStore
	logger    *slog.Logger
	batchSize int
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("ingest pipeline requires an embedder")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("ingest pipeline requires a vector index")
	}
	if cfg.Listings == nil {
		return nil, fmt.Errorf("ingest pipeline requires a listing store")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		embedder:  cfg.Embedder,
		vectors:   cfg.Vectors,
		lexical:   cfg.Lexical,
		listings:  cfg.Listings,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
	}, nil
}

// Ingest validates, normalizes, embeds, and indexes the given listings.
// Invalid listings are logged and skipped; the run fails only on
// embedding or index errors.
func (p *Pipeline) Ingest(ctx context.Context, raw []listing.Listing) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Total: len(raw)}

	valid := make([]listing.Listing, 0, len(raw))
	for _, l := range raw {
		if err := l.Validate(); err != nil {
			p.logger.Warn("skipping invalid listing",
				slog.String("id", l.ID),
				slog.String("brand", l.Brand),
				slog.Any("error", err))
			stats.Skipped++
			continue
		}
		l.Normalize()
		valid = append(valid, l)
	}

	for off := 0; off < len(valid); off += p.batchSize {
		end := off + p.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		batch := valid[off:end]

		if err := p.ingestBatch(ctx, batch); err != nil {
			return stats, fmt.Errorf("ingest batch at offset %d: %w", off, err)
		}
		stats.Ingested += len(batch)
	}

	stats.ProcessingTime = time.Since(start)
	p.logger.Info("ingestion completed",
		slog.Int("total", stats.Total),
		slog.Int("ingested", stats.Ingested),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("elapsed", stats.ProcessingTime))
	return stats, nil
}

func (p *Pipeline) ingestBatch(ctx context.Context, batch []listing.Listing) error {
	texts := make([]string, len(batch))
	ids := make([]string, len(batch))
	for i, l := range batch {
		texts[i] = l.EmbeddingText()
		ids[i] = l.ID
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed listings: %w", err)
	}
	for i := range batch {
		batch[i].Embedding = vectors[i]
	}

	if err := p.vectors.InsertBatch(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index vectors: %w", err)
	}
	if p.lexical != nil {
		if err := p.lexical.IndexListings(ctx, batch); err != nil {
			return fmt.Errorf("index keywords: %w", err)
		}
	}
	if err := p.listings.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("store listings: %w", err)
	}
	return nil
}

// LoadListingsFile reads raw listings from a JSON file holding an array
// of listing objects.
func LoadListingsFile(path string) ([]listing.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listings file: %w", err)
	}
	var listings []listing.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("parse listings file %s: %w", path, err)
	}
	return listings, nil
}
