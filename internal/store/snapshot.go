package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/vectorindex"
)

const (
	listingsFile = "listings.json"
	metadataFile = "metadata.json"
	vectorsFile  = "vectors.bin"
)

// SnapshotMetadata records how a snapshot was built. The embedding model
// and dimension are validated at load time so a snapshot built with one
// model is never served with another.
type SnapshotMetadata struct {
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	ListingCount   int       `json:"listing_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Snapshot is a fully loaded on-disk catalog: listings plus their vector
// index.
type Snapshot struct {
	Metadata SnapshotMetadata
	Listings []listing.Listing
	Vectors  *vectorindex.Flat
}

// SaveSnapshot writes listings, vectors, and metadata to dir, creating it
// when absent. Listings are stored as pretty-printed JSON so snapshots
// stay diffable.
func SaveSnapshot(dir string, listings []listing.Listing, vectors *vectorindex.Flat, meta SnapshotMetadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	meta.ListingCount = len(listings)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	listingsJSON, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal listings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, listingsFile), listingsJSON, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", listingsFile, err)
	}

	if err := vectors.Save(filepath.Join(dir, vectorsFile)); err != nil {
		return err
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metaJSON, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", metadataFile, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot from dir. When expectedModel is non-empty
// it must match the snapshot's embedding model; the vector file's
// dimension must match the metadata in all cases.
func LoadSnapshot(dir, expectedModel string) (*Snapshot, error) {
	metaJSON, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("read snapshot metadata: %w", err)
	}
	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, fmt.Errorf("parse snapshot metadata: %w", err)
	}
	if expectedModel != "" && meta.EmbeddingModel != expectedModel {
		return nil, fmt.Errorf("snapshot built with model %q, serving model is %q", meta.EmbeddingModel, expectedModel)
	}

	listingsJSON, err := os.ReadFile(filepath.Join(dir, listingsFile))
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	var listings []listing.Listing
	if err := json.Unmarshal(listingsJSON, &listings); err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}

	vectors, err := vectorindex.LoadFlat(filepath.Join(dir, vectorsFile), meta.Dimension)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Metadata: meta, Listings: listings, Vectors: vectors}, nil
}
