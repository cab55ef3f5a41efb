package lexical

import (
	"context"
	"testing"

	"github.com/nightowl2626/LuxPricer/internal/listing"
)

func testListings() []listing.Listing {
	return []listing.Listing{
		{ID: "1", Brand: "Chanel", Model: "Classic Flap", Category: "handbag", Material: "lambskin", Color: "black", Description: "Chanel Classic Flap medium in black lambskin with gold hardware", Price: 9500},
		{ID: "2", Brand: "Hermes", Model: "Birkin 30", Category: "handbag", Material: "togo leather", Color: "gold", Description: "Hermes Birkin 30 in gold togo leather", Price: 22000},
		{ID: "3", Brand: "Gucci", Model: "Marmont", Category: "handbag", Material: "matelasse leather", Color: "red", Description: "Gucci GG Marmont small shoulder bag in red", Price: 1800},
		{ID: "4", Brand: "Chanel", Model: "Boy Bag", Category: "handbag", Material: "caviar", Color: "navy", Description: "Chanel Boy bag in navy caviar leather", Price: 5200},
	}
}

func newTestSearcher(t *testing.T) *BleveSearcher {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.IndexListings(context.Background(), testListings()); err != nil {
		t.Fatalf("IndexListings: %v", err)
	}
	return s
}

func TestSearchRanksBrandModelFirst(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.Search(context.Background(), "chanel classic flap", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for brand and model query")
	}
	if hits[0].ID != "1" {
		t.Errorf("top hit = %s, want listing 1", hits[0].ID)
	}
	if hits[0].Score <= 0 {
		t.Errorf("top score = %v, want > 0", hits[0].Score)
	}
}

func TestSearchBrandOnly(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.Search(context.Background(), "chanel", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := map[string]bool{}
	for _, h := range hits {
		found[h.ID] = true
	}
	if !found["1"] || !found["4"] {
		t.Errorf("expected both chanel listings in results, got %v", found)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.Search(context.Background(), "leather handbag", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) > 2 {
		t.Errorf("got %d hits, want at most 2", len(hits))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.Search(context.Background(), "   ", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits for empty query, got %v", hits)
	}
}

func TestReindexReplacesDocument(t *testing.T) {
	s := newTestSearcher(t)
	ctx := context.Background()

	updated := testListings()[0]
	updated.Description = "updated description mentioning vintage tweed"
	if err := s.IndexListings(ctx, []listing.Listing{updated}); err != nil {
		t.Fatalf("re-index: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4 after re-indexing existing id", count)
	}

	hits, err := s.Search(ctx, "vintage tweed", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != "1" {
		t.Errorf("updated document not searchable: %v", hits)
	}
}

func TestDelete(t *testing.T) {
	s := newTestSearcher(t)
	ctx := context.Background()

	if err := s.Delete(ctx, "2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	hits, err := s.Search(ctx, "birkin", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.ID == "2" {
			t.Error("deleted listing still returned by search")
		}
	}
}
