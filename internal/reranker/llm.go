package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nightowl2626/LuxPricer/internal/llm"
	"github.com/nightowl2626/LuxPricer/internal/retriever"
)

// llmWeight scales the model's 0-1 relevance score into a boost comparable
// with the keyword strategy's range.
const llmWeight = 0.5

// maxDocChars truncates listing text in the prompt to keep token usage
// bounded.
const maxDocChars = 500

// LLMStrategy scores query-listing pairs with a language model. The model
// sees the query and each listing together, so it catches relevance cues
// token and embedding matching miss. It is the slowest strategy; use it
// only on small candidate sets.
type LLMStrategy struct {
	client llm.LLM
	model  string
}

// LLMOption is a functional option for configuring LLMStrategy.
type LLMOption func(*LLMStrategy)

// WithModel overrides the client's default model.
func WithModel(model string) LLMOption {
	return func(s *LLMStrategy) {
		s.model = model
	}
}

// NewLLMStrategy creates an LLM scoring strategy.
func NewLLMStrategy(client llm.LLM, opts ...LLMOption) *LLMStrategy {
	s := &LLMStrategy{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Strategy = (*LLMStrategy)(nil)

// Name implements Strategy.
func (s *LLMStrategy) Name() string { return "llm" }

// relevanceScore represents the structured output from the model.
type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type relevanceResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// Boosts implements Strategy.
func (s *LLMStrategy) Boosts(ctx context.Context, query string, candidates []retriever.Candidate) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	response, err := s.client.Generate(ctx, s.buildPrompt(query, candidates), llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0.0, // deterministic scoring
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("llm scoring: %w", err)
	}

	scores, err := parseRelevanceResponse(response, len(candidates))
	if err != nil {
		return nil, err
	}

	boosts := make([]float64, len(candidates))
	for i, score := range scores {
		boosts[i] = score * llmWeight
	}
	return boosts, nil
}

func (s *LLMStrategy) buildPrompt(query string, candidates []retriever.Candidate) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system for luxury resale listings. ")
	sb.WriteString("Score each listing's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nListings to score:\n")

	for i, c := range candidates {
		text := c.Listing.EmbeddingText()
		if len(text) > maxDocChars {
			text = text[:maxDocChars] + "..."
		}
		sb.WriteString(fmt.Sprintf("[Doc %d]: %s\n\n", i, text))
	}

	sb.WriteString(`Score each listing from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}, ...]}

Be strict: a different brand or product line scores below 0.3, the same
line in a different variant 0.3-0.7, the same item above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

// parseRelevanceResponse extracts per-document scores from the model
// output. Missing documents default to 0.5; scores are clamped to [0, 1].
func parseRelevanceResponse(response string, numDocs int) ([]float64, error) {
	response = strings.TrimSpace(response)

	// Strip markdown code fences if present.
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}
	response = strings.TrimSpace(response)

	var parsed relevanceResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("parse relevance response: %w", err)
	}

	scores := make([]float64, numDocs)
	for i := range scores {
		scores[i] = 0.5
	}
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= numDocs {
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[s.DocIndex] = score
	}
	return scores, nil
}
