// Package listing defines the domain model for historical listings and
// target items, along with the normalization tables used at ingestion time.
package listing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidListing is returned when a listing fails ingestion validation.
var ErrInvalidListing = errors.New("invalid listing")

// Listing is a historical comparable record. Immutable once ingested;
// re-ingesting the same ID replaces the record wholesale.
type Listing struct {
	ID    string `json:"id"`
	Brand string `json:"brand"`
	Model string `json:"model"`

	Category    string   `json:"category,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
	Material    string   `json:"material,omitempty"`
	Color       string   `json:"color,omitempty"`
	Description string   `json:"description,omitempty"`

	// Price is currency-normalized at ingestion. Must be positive.
	Price float64 `json:"price"`

	// ConditionScore is derived once from the source condition label, 1-5.
	ConditionScore int    `json:"condition_score"`
	ConditionLabel string `json:"condition_label,omitempty"`

	// SourcePlatform names the marketplace the listing came from.
	SourcePlatform string `json:"source_platform,omitempty"`

	// SourceURL is the original listing page, kept for provenance.
	SourceURL string `json:"source_url,omitempty"`

	// SourceReliability is a static per-source weight in (0,1].
	SourceReliability float64 `json:"source_reliability"`

	// Embedding is computed once at ingestion and never mutated.
	Embedding []float32 `json:"-"`
}

// TargetItem describes the item being appraised. Built per request,
// never persisted.
type TargetItem struct {
	Brand           string   `json:"brand"`
	Model           string   `json:"model"`
	Category        string   `json:"category,omitempty"`
	Sizes           []string `json:"sizes,omitempty"`
	Material        string   `json:"material,omitempty"`
	Color           string   `json:"color,omitempty"`
	ConditionRating string   `json:"condition_rating,omitempty"`

	// TrendScore is an externally supplied market signal in [0,1].
	// Nil means "not supplied"; the estimator substitutes its default.
	TrendScore *float64 `json:"trend_score,omitempty"`
}

// Validate checks the target has the fields retrieval cannot work without.
func (t *TargetItem) Validate() error {
	if strings.TrimSpace(t.Brand) == "" {
		return fmt.Errorf("%w: target item missing brand", ErrInvalidListing)
	}
	if strings.TrimSpace(t.Model) == "" {
		return fmt.Errorf("%w: target item missing model", ErrInvalidListing)
	}
	return nil
}

// conditionScores maps normalized condition labels to 1-5 scores (5 = best).
// Keys must stay lowercase; lookups are case-insensitive.
var conditionScores = map[string]int{
	"new":       5,
	"excellent": 4,
	"very good": 3,
	"good":      2,
	"fair":      1,
	"unknown":   DefaultConditionScore,
}

// DefaultConditionScore is used for unmapped or missing condition labels.
const DefaultConditionScore = 2

// NormalizeCondition maps a condition label to its 1-5 score. Unmapped
// labels fall back to DefaultConditionScore.
func NormalizeCondition(label string) int {
	key := strings.ToLower(strings.TrimSpace(label))
	if score, ok := conditionScores[key]; ok {
		return score
	}
	return DefaultConditionScore
}

// sourceReliability weights each known marketplace. Curated resellers are
// trusted more than peer-to-peer platforms.
var sourceReliability = map[string]float64{
	"fashionphile":         0.95,
	"vestiaire collective": 0.75,
}

// DefaultSourceReliability is the conservative weight for unknown sources.
const DefaultSourceReliability = 0.6

// ReliabilityForSource returns the static reliability weight for a platform.
func ReliabilityForSource(platform string) float64 {
	key := strings.ToLower(strings.TrimSpace(platform))
	if w, ok := sourceReliability[key]; ok {
		return w
	}
	return DefaultSourceReliability
}

// Normalize fills derived fields: generated ID, condition score from the
// label when unset, and source reliability from the platform when unset.
func (l *Listing) Normalize() {
	if strings.TrimSpace(l.ID) == "" {
		l.ID = uuid.NewString()
	}
	if l.ConditionScore < 1 || l.ConditionScore > 5 {
		l.ConditionScore = NormalizeCondition(l.ConditionLabel)
	}
	if l.SourceReliability <= 0 || l.SourceReliability > 1 {
		l.SourceReliability = ReliabilityForSource(l.SourcePlatform)
	}
}

// Validate enforces the ingestion invariant: positive price, brand and
// model present.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Brand) == "" {
		return fmt.Errorf("%w: missing brand", ErrInvalidListing)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("%w: missing model", ErrInvalidListing)
	}
	if l.Price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %.2f", ErrInvalidListing, l.Price)
	}
	return nil
}

// EmbeddingText builds the display text embedded and indexed for a listing.
// The lexical index is built from the same text so both retrieval legs see
// an identical view of the corpus.
func (l *Listing) EmbeddingText() string {
	var sb strings.Builder

	write := func(label, value string) {
		if value == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(value)
	}

	write("Brand", l.Brand)
	write("Model", l.Model)
	write("Category", l.Category)
	write("Material", l.Material)
	write("Color", l.Color)
	write("Description", l.Description)
	if len(l.Sizes) > 0 {
		write("Size", strings.Join(l.Sizes, ", "))
	}
	write("Condition", l.ConditionLabel)
	write("Platform", l.SourcePlatform)

	if sb.Len() == 0 {
		return "Listing " + l.ID
	}
	return sb.String()
}

// QueryText builds the retrieval query for a target item from its
// descriptive attributes, most significant first.
func (t *TargetItem) QueryText() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{t.Brand, t.Model, t.Material, t.Color} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(t.Sizes) > 0 {
		parts = append(parts, "size "+strings.Join(t.Sizes, " "))
	}
	return strings.Join(parts, " ")
}

// NormalizeName lowercases and trims an attribute for matching. Display
// casing is preserved on the struct itself.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
