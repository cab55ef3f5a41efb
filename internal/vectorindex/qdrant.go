package vectorindex

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// listingIDKey is the payload field holding the original listing ID.
const listingIDKey = "listing_id"

// QdrantIndex implements Index on a Qdrant collection. It stores listing
// vectors under Euclidean distance so scores stay comparable with the
// in-memory flat index.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant at url ("host:port", port defaults to
// 6334) and ensures the named collection exists with the given dimension.
func NewQdrantIndex(ctx context.Context, url, collection string, dimension int) (*QdrantIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host = url
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client, collection: collection, dimension: dimension}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the Qdrant client connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}
	return nil
}

// Insert adds or replaces the vector stored under id.
func (q *QdrantIndex) Insert(ctx context.Context, id string, vector []float32) error {
	return q.InsertBatch(ctx, []string{id}, [][]float32{vector})
}

// InsertBatch upserts multiple listing vectors in a single request.
func (q *QdrantIndex) InsertBatch(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != q.dimension {
			return fmt.Errorf("vector dimension mismatch for %q: got %d, want %d", id, len(vectors[i]), q.dimension)
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{listingIDKey: id}),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the k nearest listing vectors, closest first.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), q.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	response, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayloadInclude(listingIDKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0, len(response))
	for _, point := range response {
		// Euclid collections report the raw distance as the score.
		d := float64(point.Score)
		id := point.Id.GetUuid()
		if v, ok := point.Payload[listingIDKey]; ok && v.GetStringValue() != "" {
			id = v.GetStringValue()
		}
		hits = append(hits, Hit{
			ID:         id,
			Distance:   d,
			Similarity: SimilarityFromDistance(d),
		})
	}
	return hits, nil
}

// Delete removes the vector stored under id.
func (q *QdrantIndex) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{pointID(id)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point %q: %w", id, err)
	}
	return nil
}

// pointID maps a listing ID onto a Qdrant point ID. Qdrant only accepts
// UUIDs or unsigned integers, so arbitrary catalog IDs like "L-001" are
// mapped to a deterministic name-based UUID. The original ID rides along
// in the point payload.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// Dimension returns the index's vector dimensionality.
func (q *QdrantIndex) Dimension() int { return q.dimension }

// Len returns the number of stored vectors.
func (q *QdrantIndex) Len(ctx context.Context) (int, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}
