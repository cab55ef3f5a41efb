package vectorindex

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFlat(3)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	vectors := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.9, 0.1, 0},
	}
	for id, v := range vectors {
		if err := idx.Insert(ctx, id, v); err != nil {
			t.Fatalf("Insert %q: %v", id, err)
		}
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "a" {
		t.Errorf("nearest = %q, want %q", hits[0].ID, "a")
	}
	if hits[0].Distance != 0 {
		t.Errorf("self distance = %v, want 0", hits[0].Distance)
	}
	if hits[0].Similarity != 1 {
		t.Errorf("self similarity = %v, want 1", hits[0].Similarity)
	}
	if hits[1].ID != "c" {
		t.Errorf("second hit = %q, want %q", hits[1].ID, "c")
	}
	if hits[1].Similarity >= hits[0].Similarity {
		t.Errorf("similarity not decreasing: %v >= %v", hits[1].Similarity, hits[0].Similarity)
	}
}

func TestFlatInsertReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewFlat(2)

	if err := idx.Insert(ctx, "x", []float32{1, 0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Insert(ctx, "x", []float32{0, 1}); err != nil {
		t.Fatalf("re-Insert: %v", err)
	}

	n, _ := idx.Len(ctx)
	if n != 1 {
		t.Fatalf("Len = %d, want 1 after replacing same id", n)
	}

	hits, err := idx.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].Distance != 0 {
		t.Errorf("replaced vector distance = %v, want 0", hits[0].Distance)
	}
}

func TestFlatDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewFlat(4)

	if err := idx.Insert(ctx, "bad", []float32{1, 2}); err == nil {
		t.Error("expected error inserting wrong-dimension vector")
	}
	if _, err := idx.Search(ctx, []float32{1, 2}, 1); err == nil {
		t.Error("expected error searching with wrong-dimension query")
	}
}

func TestFlatDelete(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewFlat(2)

	ids := []string{"a", "b", "c"}
	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	if err := idx.InsertBatch(ctx, ids, vecs); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	if err := idx.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := idx.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of unknown id: %v", err)
	}

	n, _ := idx.Len(ctx)
	if n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}
	hits, _ := idx.Search(ctx, []float32{0, 1}, 3)
	for _, h := range hits {
		if h.ID == "b" {
			t.Error("deleted id still returned by search")
		}
	}
}

func TestFlatSaveLoad(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewFlat(3)
	if err := idx.InsertBatch(ctx,
		[]string{"one", "two"},
		[][]float32{{0.1, 0.2, 0.3}, {-1, 0, 2.5}},
	); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	path := filepath.Join(t.TempDir(), "vectors.bin")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFlat(path, 3)
	if err != nil {
		t.Fatalf("LoadFlat: %v", err)
	}
	n, _ := loaded.Len(ctx)
	if n != 2 {
		t.Fatalf("loaded Len = %d, want 2", n)
	}

	hits, err := loaded.Search(ctx, []float32{-1, 0, 2.5}, 1)
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if hits[0].ID != "two" || math.Abs(hits[0].Distance) > 1e-6 {
		t.Errorf("round-tripped vector not exact: id %q distance %v", hits[0].ID, hits[0].Distance)
	}
}

func TestLoadFlatRejectsWrongDimension(t *testing.T) {
	idx, _ := NewFlat(3)
	_ = idx.Insert(context.Background(), "a", []float32{1, 2, 3})

	path := filepath.Join(t.TempDir(), "vectors.bin")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := LoadFlat(path, 768); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestLoadFlatRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	if err := os.WriteFile(path, []byte("not a snapshot at all, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFlat(path, 0); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestFlatExportAndMirror(t *testing.T) {
	ctx := context.Background()
	src, _ := NewFlat(2)
	for id, v := range map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
		"c": {0.5, 0.5},
	} {
		if err := src.Insert(ctx, id, v); err != nil {
			t.Fatalf("Insert %q: %v", id, err)
		}
	}

	ids, vectors := src.Export()
	if len(ids) != 3 || len(vectors) != 3 {
		t.Fatalf("Export returned %d ids, %d vectors, want 3 each", len(ids), len(vectors))
	}
	// Exported vectors are copies, not aliases of the stored data.
	vectors[0][0] = 99
	hits, err := src.Search(ctx, []float32{99, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].Distance == 0 {
		t.Error("mutating an exported vector changed the index")
	}

	dst, _ := NewFlat(2)
	if err := Mirror(ctx, src, dst); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	n, _ := dst.Len(ctx)
	if n != 3 {
		t.Fatalf("mirrored index holds %d vectors, want 3", n)
	}
	hits, err = dst.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search mirrored: %v", err)
	}
	if hits[0].ID != "b" || hits[0].Distance != 0 {
		t.Errorf("mirrored nearest = %+v, want exact match on b", hits[0])
	}
}

func TestMirrorEmptyAndNilSource(t *testing.T) {
	ctx := context.Background()
	dst, _ := NewFlat(2)

	if err := Mirror(ctx, nil, dst); err != nil {
		t.Fatalf("Mirror nil source: %v", err)
	}
	empty, _ := NewFlat(2)
	if err := Mirror(ctx, empty, dst); err != nil {
		t.Fatalf("Mirror empty source: %v", err)
	}
	if n, _ := dst.Len(ctx); n != 0 {
		t.Errorf("destination holds %d vectors, want 0", n)
	}
}
