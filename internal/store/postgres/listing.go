package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/store"
)

// ListingRepo implements store.ListingStore on PostgreSQL.
type ListingRepo struct {
	db *DB
}

var _ store.ListingStore = (*ListingRepo)(nil)

// NewListingRepo creates a new listing repository
func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

const listingColumns = `id, brand, model, category, sizes, material, color, description,
	price, condition_score, condition_label, source_platform, source_url,
	source_reliability, updated_at`

// Upsert inserts listings, replacing rows with the same ID.
func (r *ListingRepo) Upsert(ctx context.Context, listings []listing.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			brand = EXCLUDED.brand,
			model = EXCLUDED.model,
			category = EXCLUDED.category,
			sizes = EXCLUDED.sizes,
			material = EXCLUDED.material,
			color = EXCLUDED.color,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			condition_score = EXCLUDED.condition_score,
			condition_label = EXCLUDED.condition_label,
			source_platform = EXCLUDED.source_platform,
			source_url = EXCLUDED.source_url,
			source_reliability = EXCLUDED.source_reliability,
			updated_at = EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, l := range listings {
		sizesJSON, err := json.Marshal(l.Sizes)
		if err != nil {
			return fmt.Errorf("failed to marshal sizes for %s: %w", l.ID, err)
		}
		batch.Queue(query,
			l.ID, l.Brand, l.Model, l.Category, sizesJSON, l.Material, l.Color,
			l.Description, l.Price, l.ConditionScore, l.ConditionLabel,
			l.SourcePlatform, l.SourceURL, l.SourceReliability, now)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range listings {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert listing: %w", err)
		}
	}
	return nil
}

// Get retrieves a listing by ID
func (r *ListingRepo) Get(ctx context.Context, id string) (*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return r.scanListing(r.db.Pool.QueryRow(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ListingRepo) scanListing(row rowScanner) (*listing.Listing, error) {
	var l listing.Listing
	var sizesJSON []byte
	var updatedAt time.Time

	err := row.Scan(
		&l.ID, &l.Brand, &l.Model, &l.Category, &sizesJSON, &l.Material,
		&l.Color, &l.Description, &l.Price, &l.ConditionScore,
		&l.ConditionLabel, &l.SourcePlatform, &l.SourceURL,
		&l.SourceReliability, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if len(sizesJSON) > 0 {
		if err := json.Unmarshal(sizesJSON, &l.Sizes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sizes: %w", err)
		}
	}
	return &l, nil
}

// List retrieves listings ordered by ID with pagination
func (r *ListingRepo) List(ctx context.Context, limit, offset int) ([]listing.Listing, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY id LIMIT $1 OFFSET $2`
	if limit <= 0 {
		limit = total
	}
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []listing.Listing
	for rows.Next() {
		l, err := r.scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, total, nil
}

// GetMany retrieves listings for the given IDs, preserving the input
// order and skipping unknown IDs.
func (r *ListingRepo) GetMany(ctx context.Context, ids []string) ([]listing.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ANY($1)`
	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]listing.Listing, len(ids))
	for rows.Next() {
		l, err := r.scanListing(rows)
		if err != nil {
			return nil, err
		}
		byID[l.ID] = *l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}

	out := make([]listing.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// Delete removes a listing by ID
func (r *ListingRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return nil
}

// Count returns the number of stored listings
func (r *ListingRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return total, nil
}
