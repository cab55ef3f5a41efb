package listing

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeCondition(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"new", 5},
		{"New", 5},
		{"excellent", 4},
		{"  Very Good ", 3},
		{"good", 2},
		{"fair", 1},
		{"unknown", DefaultConditionScore},
		{"", DefaultConditionScore},
		{"pristine", DefaultConditionScore},
	}
	for _, tt := range tests {
		if got := NormalizeCondition(tt.label); got != tt.want {
			t.Errorf("NormalizeCondition(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestReliabilityForSource(t *testing.T) {
	tests := []struct {
		platform string
		want     float64
	}{
		{"fashionphile", 0.95},
		{"Fashionphile", 0.95},
		{"Vestiaire Collective", 0.75},
		{"ebay", DefaultSourceReliability},
		{"", DefaultSourceReliability},
	}
	for _, tt := range tests {
		if got := ReliabilityForSource(tt.platform); got != tt.want {
			t.Errorf("ReliabilityForSource(%q) = %v, want %v", tt.platform, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	l := Listing{
		Brand:          "Chanel",
		Model:          "Classic Flap",
		Price:          9800,
		ConditionLabel: "excellent",
		SourcePlatform: "Fashionphile",
	}
	l.Normalize()

	if l.ID == "" {
		t.Error("ID should be generated")
	}
	if l.ConditionScore != 4 {
		t.Errorf("condition score = %d, want 4", l.ConditionScore)
	}
	if l.SourceReliability != 0.95 {
		t.Errorf("reliability = %v, want 0.95", l.SourceReliability)
	}

	// Explicit values survive normalization.
	l2 := Listing{
		ID:                "fixed",
		ConditionScore:    3,
		SourceReliability: 0.5,
	}
	l2.Normalize()
	if l2.ID != "fixed" || l2.ConditionScore != 3 || l2.SourceReliability != 0.5 {
		t.Errorf("explicit fields changed: %+v", l2)
	}

	// Out-of-range values are re-derived.
	l3 := Listing{ConditionScore: 9, SourceReliability: 1.5, ConditionLabel: "new"}
	l3.Normalize()
	if l3.ConditionScore != 5 {
		t.Errorf("out-of-range condition score = %d, want rederived 5", l3.ConditionScore)
	}
	if l3.SourceReliability != DefaultSourceReliability {
		t.Errorf("out-of-range reliability = %v, want default", l3.SourceReliability)
	}
}

func TestListingValidate(t *testing.T) {
	valid := Listing{Brand: "Chanel", Model: "Classic Flap", Price: 9800}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid listing rejected: %v", err)
	}

	tests := []struct {
		name string
		l    Listing
	}{
		{"missing brand", Listing{Model: "Classic Flap", Price: 100}},
		{"missing model", Listing{Brand: "Chanel", Price: 100}},
		{"zero price", Listing{Brand: "Chanel", Model: "Flap"}},
		{"negative price", Listing{Brand: "Chanel", Model: "Flap", Price: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.l.Validate(); !errors.Is(err, ErrInvalidListing) {
				t.Errorf("err = %v, want ErrInvalidListing", err)
			}
		})
	}
}

func TestTargetValidate(t *testing.T) {
	ok := TargetItem{Brand: "Chanel", Model: "Classic Flap"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid target rejected: %v", err)
	}
	missing := TargetItem{Brand: "  "}
	if err := missing.Validate(); !errors.Is(err, ErrInvalidListing) {
		t.Errorf("err = %v, want ErrInvalidListing", err)
	}
}

func TestEmbeddingText(t *testing.T) {
	l := Listing{
		Brand:          "Chanel",
		Model:          "Classic Flap",
		Material:       "lambskin",
		Sizes:          []string{"Medium"},
		ConditionLabel: "excellent",
	}
	text := l.EmbeddingText()

	for _, want := range []string{"Brand: Chanel", "Model: Classic Flap", "Material: lambskin", "Size: Medium", "Condition: excellent"} {
		if !strings.Contains(text, want) {
			t.Errorf("embedding text %q missing %q", text, want)
		}
	}
	if strings.Contains(text, "Color") {
		t.Errorf("empty attributes should be omitted, got %q", text)
	}

	empty := Listing{ID: "x"}
	if got := empty.EmbeddingText(); got != "Listing x" {
		t.Errorf("empty listing text = %q", got)
	}
}

func TestQueryText(t *testing.T) {
	target := TargetItem{
		Brand:    "Chanel",
		Model:    "Classic Flap",
		Material: "lambskin",
		Sizes:    []string{"Medium"},
	}
	got := target.QueryText()
	want := "Chanel Classic Flap lambskin size Medium"
	if got != want {
		t.Errorf("QueryText() = %q, want %q", got, want)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Chanel "); got != "chanel" {
		t.Errorf("NormalizeName = %q", got)
	}
}
