// Package vectorindex provides vector similarity search over listing
// embeddings. Two implementations exist: an in-memory flat index with
// snapshot persistence, and a Qdrant-backed index for larger catalogs.
package vectorindex

import "context"

// Hit is a single nearest-neighbor search result.
type Hit struct {
	// ID is the listing identifier.
	ID string

	// Distance is the raw L2 distance (or distance-equivalent) between
	// the query and the stored vector. Smaller is closer.
	Distance float64

	// Similarity is the normalized match score in (0, 1], derived as
	// 1 / (1 + distance).
	Similarity float64
}

// Index defines the interface for vector similarity search over listings.
type Index interface {
	// Insert adds a vector under the given listing ID. Inserting an
	// existing ID replaces the stored vector.
	Insert(ctx context.Context, id string, vector []float32) error

	// InsertBatch adds multiple vectors; ids and vectors are parallel
	// slices.
	InsertBatch(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns the k nearest neighbors of the query vector, closest
	// first.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Delete removes the vector stored under id. Removing an unknown id
	// is a no-op.
	Delete(ctx context.Context, id string) error

	// Dimension returns the index's vector dimensionality.
	Dimension() int

	// Len returns the number of stored vectors.
	Len(ctx context.Context) (int, error)
}

// SimilarityFromDistance converts a non-negative distance to a score in
// (0, 1].
func SimilarityFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// Mirror replays every vector held by src into dst. It is used to push a
// freshly built flat index into Qdrant after ingest, and to backfill an
// empty Qdrant collection from a snapshot at startup.
func Mirror(ctx context.Context, src *Flat, dst Index) error {
	if src == nil {
		return nil
	}
	ids, vectors := src.Export()
	if len(ids) == 0 {
		return nil
	}
	return dst.InsertBatch(ctx, ids, vectors)
}
