package vectorindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
)

const (
	flatMagic   = 0x4C555856 // "LUXV"
	flatVersion = 1
)

// Flat is an exact brute-force index over L2 distance. It holds every
// vector in memory and scans all of them per query, which is the right
// trade-off for catalogs up to the low hundreds of thousands of listings.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	ids       []string
	vectors   [][]float32
	byID      map[string]int
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index for vectors of the given dimension.
func NewFlat(dimension int) (*Flat, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &Flat{
		dimension: dimension,
		byID:      make(map[string]int),
	}, nil
}

// Insert adds or replaces the vector stored under id.
func (f *Flat) Insert(_ context.Context, id string, vector []float32) error {
	if id == "" {
		return fmt.Errorf("empty vector id")
	}
	if len(vector) != f.dimension {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), f.dimension)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	v := make([]float32, len(vector))
	copy(v, vector)

	if idx, ok := f.byID[id]; ok {
		f.vectors[idx] = v
		return nil
	}
	f.byID[id] = len(f.ids)
	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, v)
	return nil
}

// InsertBatch adds multiple vectors, failing on the first invalid entry.
func (f *Flat) InsertBatch(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	for i := range ids {
		if err := f.Insert(ctx, ids[i], vectors[i]); err != nil {
			return fmt.Errorf("insert %q: %w", ids[i], err)
		}
	}
	return nil
}

// Search scans every stored vector and returns the k nearest by L2
// distance, closest first.
func (f *Flat) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	if len(vector) != f.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), f.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	hits := make([]Hit, 0, len(f.ids))
	for i, stored := range f.vectors {
		d := l2Distance(vector, stored)
		hits = append(hits, Hit{
			ID:         f.ids[i],
			Distance:   d,
			Similarity: SimilarityFromDistance(d),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes the vector stored under id.
func (f *Flat) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, ok := f.byID[id]
	if !ok {
		return nil
	}

	// Swap-remove keeps deletion O(1).
	last := len(f.ids) - 1
	f.ids[idx] = f.ids[last]
	f.vectors[idx] = f.vectors[last]
	f.byID[f.ids[idx]] = idx
	f.ids = f.ids[:last]
	f.vectors = f.vectors[:last]
	delete(f.byID, id)
	return nil
}

// Dimension returns the index's vector dimensionality.
func (f *Flat) Dimension() int { return f.dimension }

// Len returns the number of stored vectors.
func (f *Flat) Len(_ context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids), nil
}

// Export returns copies of every stored ID and vector, in insertion
// order, for replay into another index.
func (f *Flat) Export() ([]string, [][]float32) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]string, len(f.ids))
	copy(ids, f.ids)
	vectors := make([][]float32, len(f.vectors))
	for i, v := range f.vectors {
		vectors[i] = make([]float32, len(v))
		copy(vectors[i], v)
	}
	return ids, vectors
}

// Save writes the index to path as a binary snapshot: a fixed header
// (magic, version, dimension, count) followed by length-prefixed IDs and
// raw float32 vectors.
func (f *Flat) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector snapshot: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := []uint32{flatMagic, flatVersion, uint32(f.dimension), uint32(len(f.ids))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write snapshot header: %w", err)
		}
	}

	for i, id := range f.ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id length: %w", err)
		}
		if _, err := w.WriteString(id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, f.vectors[i]); err != nil {
			return fmt.Errorf("write vector %q: %w", id, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush vector snapshot: %w", err)
	}
	return file.Sync()
}

// LoadFlat reads a snapshot written by Save. The expected dimension must
// match the snapshot header: a mismatch means the snapshot was built with
// a different embedding model and must not be served.
func LoadFlat(path string, expectedDimension int) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector snapshot: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("read snapshot header: %w", err)
		}
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("not a vector snapshot: bad magic 0x%08X", magic)
	}
	if version != flatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}
	if expectedDimension > 0 && int(dim) != expectedDimension {
		return nil, fmt.Errorf("snapshot dimension %d does not match embedder dimension %d", dim, expectedDimension)
	}

	f, err := NewFlat(int(dim))
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("read id length: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector %q: %w", idBytes, err)
		}
		if err := f.Insert(context.Background(), string(idBytes), vec); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
