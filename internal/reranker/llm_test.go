package reranker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/llm"
	"github.com/nightowl2626/LuxPricer/internal/retriever"
)

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func (f *fakeLLM) ModelName() string { return "fake" }

func llmCandidates() []retriever.Candidate {
	return []retriever.Candidate{
		{Listing: listing.Listing{ID: "a", Brand: "Chanel", Model: "Classic Flap"}},
		{Listing: listing.Listing{ID: "b", Brand: "Hermes", Model: "Birkin 30"}},
	}
}

func TestLLMStrategyBoosts(t *testing.T) {
	client := &fakeLLM{response: `{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.2}]}`}
	s := NewLLMStrategy(client)

	boosts, err := s.Boosts(context.Background(), "chanel classic flap", llmCandidates())
	if err != nil {
		t.Fatalf("Boosts: %v", err)
	}
	if len(boosts) != 2 {
		t.Fatalf("len(boosts) = %d, want 2", len(boosts))
	}
	if boosts[0] != 0.9*llmWeight || boosts[1] != 0.2*llmWeight {
		t.Errorf("boosts = %v, want scaled by llmWeight", boosts)
	}
	if client.prompt == "" || !strings.Contains(client.prompt, "Chanel") {
		t.Error("prompt should include listing text")
	}
}

func TestLLMStrategyFencedJSON(t *testing.T) {
	client := &fakeLLM{response: "```json\n{\"scores\": [{\"doc_index\": 0, \"score\": 1.0}]}\n```"}
	s := NewLLMStrategy(client)

	boosts, err := s.Boosts(context.Background(), "q", llmCandidates())
	if err != nil {
		t.Fatalf("Boosts: %v", err)
	}
	if boosts[0] != 1.0*llmWeight {
		t.Errorf("boosts[0] = %v", boosts[0])
	}
	// Unscored documents default to neutral.
	if boosts[1] != 0.5*llmWeight {
		t.Errorf("boosts[1] = %v, want neutral default", boosts[1])
	}
}

func TestLLMStrategyClampsAndIgnoresBadIndexes(t *testing.T) {
	client := &fakeLLM{response: `{"scores": [{"doc_index": 0, "score": 1.8}, {"doc_index": 9, "score": 0.4}]}`}
	s := NewLLMStrategy(client)

	boosts, err := s.Boosts(context.Background(), "q", llmCandidates())
	if err != nil {
		t.Fatalf("Boosts: %v", err)
	}
	if boosts[0] != 1.0*llmWeight {
		t.Errorf("boosts[0] = %v, want clamped to llmWeight", boosts[0])
	}
}

func TestLLMStrategyErrors(t *testing.T) {
	s := NewLLMStrategy(&fakeLLM{err: errors.New("ollama down")})
	if _, err := s.Boosts(context.Background(), "q", llmCandidates()); err == nil {
		t.Error("client error should propagate")
	}

	s = NewLLMStrategy(&fakeLLM{response: "I think the first one is best."})
	if _, err := s.Boosts(context.Background(), "q", llmCandidates()); err == nil {
		t.Error("non-JSON response should error")
	}
}
