// Package lexical provides keyword search over listings using a Bleve
// full-text index. It is the lexical leg of hybrid retrieval: strong on
// exact brand and model tokens that dense embeddings can blur together.
package lexical

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/nightowl2626/LuxPricer/internal/listing"
)

// Hit is a lexical search result.
type Hit struct {
	// ID is the listing identifier.
	ID string

	// Score is Bleve's TF-IDF relevance score, unbounded above.
	Score float64
}

// Searcher indexes listings and answers keyword queries.
type Searcher interface {
	IndexListings(ctx context.Context, listings []listing.Listing) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	Delete(ctx context.Context, id string) error
	Count() (uint64, error)
	Close() error
}

// listingDoc is the flat document shape stored in the index.
type listingDoc struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Category    string `json:"category"`
	Material    string `json:"material"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// BleveSearcher implements Searcher on a Bleve index.
type BleveSearcher struct {
	index bleve.Index
}

var _ Searcher = (*BleveSearcher)(nil)

// NewMemory creates a searcher backed by an in-memory index, rebuilt on
// every process start from the listing snapshot.
func NewMemory() (*BleveSearcher, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &BleveSearcher{index: index}, nil
}

// Open opens a persistent index at path, creating it when absent.
func Open(path string) (*BleveSearcher, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index at %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return &BleveSearcher{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = false
	textFieldMapping.Index = true
	for _, field := range []string{"brand", "model", "category", "material", "color", "description"} {
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// IndexListings adds listings to the index in a single batch. Re-indexing
// an existing ID replaces its document.
func (s *BleveSearcher) IndexListings(_ context.Context, listings []listing.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	batch := s.index.NewBatch()
	for _, l := range listings {
		if l.ID == "" {
			return fmt.Errorf("listing without id cannot be indexed")
		}
		doc := listingDoc{
			Brand:       l.Brand,
			Model:       l.Model,
			Category:    l.Category,
			Material:    l.Material,
			Color:       l.Color,
			Description: l.Description,
		}
		if err := batch.Index(l.ID, doc); err != nil {
			return fmt.Errorf("failed to add listing %s to batch: %w", l.ID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute index batch: %w", err)
	}
	return nil
}

// Search runs a boosted disjunction over the listing fields: exact brand
// and model terms rank highest, then analyzed matches, then wildcard
// containment on the model.
func (s *BleveSearcher) Search(_ context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	lowered := strings.ToLower(query)

	brandTerm := bleve.NewTermQuery(lowered)
	brandTerm.SetField("brand")
	brandTerm.SetBoost(10.0)

	modelTerm := bleve.NewTermQuery(lowered)
	modelTerm.SetField("model")
	modelTerm.SetBoost(8.0)

	brandMatch := bleve.NewMatchQuery(query)
	brandMatch.SetField("brand")
	brandMatch.SetBoost(5.0)

	modelMatch := bleve.NewMatchQuery(query)
	modelMatch.SetField("model")
	modelMatch.SetBoost(4.0)

	descMatch := bleve.NewMatchQuery(query)
	descMatch.SetField("description")
	descMatch.SetBoost(2.0)

	anyMatch := bleve.NewMatchQuery(query)
	anyMatch.SetBoost(1.0)

	searchQuery := bleve.NewDisjunctionQuery(
		brandTerm,
		modelTerm,
		brandMatch,
		modelMatch,
		descMatch,
		anyMatch,
	)
	for _, field := range []string{"category", "material", "color"} {
		fieldMatch := bleve.NewMatchQuery(query)
		fieldMatch.SetField(field)
		fieldMatch.SetBoost(1.5)
		searchQuery.AddQuery(fieldMatch)
	}

	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Size = limit

	searchResults, err := s.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]Hit, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		hits = append(hits, Hit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Delete removes a listing from the index.
func (s *BleveSearcher) Delete(_ context.Context, id string) error {
	if err := s.index.Delete(id); err != nil {
		return fmt.Errorf("failed to delete listing %s from index: %w", id, err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (s *BleveSearcher) Count() (uint64, error) {
	return s.index.DocCount()
}

// Close releases the index.
func (s *BleveSearcher) Close() error {
	return s.index.Close()
}
