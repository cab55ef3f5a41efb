// Package trend supplies market trend scores for brand/model pairs. A
// trend score is a value in [0, 1]: 0.5 is a neutral market, above is
// rising demand, below is cooling demand.
package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Neutral is the score assumed when no signal exists for an item.
const Neutral = 0.5

// Provider resolves a trend score for a brand/model pair.
type Provider interface {
	// TrendScore returns a score in [0, 1]. Implementations return Neutral
	// rather than an error when the item is simply unknown.
	TrendScore(ctx context.Context, brand, model string) (float64, error)
}

// Static is a Provider backed by a fixed in-memory score table, optionally
// loaded from a JSON file. Lookups fall through from "brand model" to
// "brand" to Neutral.
type Static struct {
	mu     sync.RWMutex
	scores map[string]float64
}

var _ Provider = (*Static)(nil)

// NewStatic creates a provider from an existing score table. Keys are
// normalized to lowercase.
func NewStatic(scores map[string]float64) *Static {
	s := &Static{scores: make(map[string]float64, len(scores))}
	for k, v := range scores {
		s.scores[normalizeKey(k)] = clampScore(v)
	}
	return s
}

// LoadFile creates a provider from a JSON file mapping item keys to
// scores, e.g. {"chanel classic flap": 0.72, "gucci": 0.45}.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trend file: %w", err)
	}
	var scores map[string]float64
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("parse trend file %s: %w", path, err)
	}
	return NewStatic(scores), nil
}

// TrendScore implements Provider.
func (s *Static) TrendScore(_ context.Context, brand, model string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	brand = normalizeKey(brand)
	model = normalizeKey(model)
	if brand != "" && model != "" {
		if v, ok := s.scores[brand+" "+model]; ok {
			return v, nil
		}
	}
	if brand != "" {
		if v, ok := s.scores[brand]; ok {
			return v, nil
		}
	}
	return Neutral, nil
}

// Set updates or inserts a score, clamped to [0, 1].
func (s *Static) Set(key string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[normalizeKey(key)] = clampScore(score)
}

// Len reports the number of entries in the table.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scores)
}

func normalizeKey(k string) string {
	return strings.Join(strings.Fields(strings.ToLower(k)), " ")
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
