package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nightowl2626/LuxPricer/internal/cache"
	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/pricing"
	"github.com/nightowl2626/LuxPricer/internal/retriever"
	"github.com/nightowl2626/LuxPricer/internal/trend"
)

// fakeRetriever serves a fixed catalog, honoring the brand filter the way
// the real retriever does.
type fakeRetriever struct {
	catalog []listing.Listing
	err     error
	calls   []retriever.Options
}

func (f *fakeRetriever) Search(_ context.Context, _ string, opts retriever.Options) ([]retriever.Candidate, retriever.Analysis, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, retriever.Analysis{}, f.err
	}
	var out []retriever.Candidate
	for i, l := range f.catalog {
		if opts.Brand != "" && !strings.EqualFold(l.Brand, opts.Brand) {
			continue
		}
		out = append(out, retriever.Candidate{
			Listing: l,
			Score:   1.0 - float64(i)*0.05,
			Source:  retriever.SourceSemantic,
		})
	}
	return out, retriever.Analysis{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func flapListing(id string, price float64, condition string) listing.Listing {
	return listing.Listing{
		ID:             id,
		Brand:          "Chanel",
		Model:          "Classic Flap",
		Category:       "bag",
		Sizes:          []string{"Medium"},
		Material:       "lambskin",
		Color:          "black",
		Price:          price,
		ConditionLabel: condition,
		SourcePlatform: "Fashionphile",
	}
}

func normalized(l listing.Listing) listing.Listing {
	l.Normalize()
	return l
}

func newTestService(ret Retriever, opts ...Option) *Appraisal {
	est := pricing.NewEstimator(pricing.DefaultConfig())
	return NewAppraisal(ret, est, discardLogger(), opts...)
}

func TestEstimateWithExactComparables(t *testing.T) {
	ret := &fakeRetriever{catalog: []listing.Listing{
		normalized(flapListing("a", 9800, "excellent")),
		normalized(flapListing("b", 10200, "very good")),
		normalized(flapListing("c", 9500, "good")),
		normalized(flapListing("d", 10500, "excellent")),
		normalized(flapListing("e", 9900, "new")),
	}}
	svc := newTestService(ret)

	resp, err := svc.Estimate(context.Background(), EstimateRequest{
		Target: listing.TargetItem{
			Brand:           "Chanel",
			Model:           "Classic Flap",
			Sizes:           []string{"Medium"},
			Material:        "lambskin",
			Color:           "black",
			ConditionRating: "excellent",
		},
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if resp.Status != StatusOK {
		t.Fatalf("status = %q (reason %q), want %q", resp.Status, resp.Reason, StatusOK)
	}
	if resp.Estimate == nil {
		t.Fatal("estimate missing on ok response")
	}
	if resp.Estimate.EstimatedPrice <= 0 {
		t.Errorf("estimated price = %v, want > 0", resp.Estimate.EstimatedPrice)
	}
	if resp.Estimate.ExactMatchCount != 5 {
		t.Errorf("exact match count = %d, want 5", resp.Estimate.ExactMatchCount)
	}
	if resp.Confidence != pricing.ConfidenceHigh {
		t.Errorf("confidence = %q, want %q", resp.Confidence, pricing.ConfidenceHigh)
	}
	if len(resp.Comparables) != 5 {
		t.Errorf("comparables = %d, want 5", len(resp.Comparables))
	}
	if ret.calls[0].Brand != "Chanel" {
		t.Errorf("first retrieval brand filter = %q, want Chanel", ret.calls[0].Brand)
	}
}

func TestEstimateInsufficientData(t *testing.T) {
	// Same brand but only two listings: below the comparable minimum.
	ret := &fakeRetriever{catalog: []listing.Listing{
		normalized(flapListing("a", 9800, "excellent")),
		normalized(flapListing("b", 10200, "good")),
	}}
	svc := newTestService(ret)

	resp, err := svc.Estimate(context.Background(), EstimateRequest{
		Target: listing.TargetItem{Brand: "Chanel", Model: "Classic Flap"},
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if resp.Status != StatusInsufficientData {
		t.Fatalf("status = %q, want %q", resp.Status, StatusInsufficientData)
	}
	if resp.Estimate != nil {
		t.Error("estimate should be nil when data is insufficient")
	}
	if resp.Confidence != pricing.ConfidenceVeryLow {
		t.Errorf("confidence = %q, want %q", resp.Confidence, pricing.ConfidenceVeryLow)
	}
	if resp.Reason == "" {
		t.Error("reason missing on insufficient-data response")
	}
	if len(resp.Comparables) != 2 {
		t.Errorf("reference comparables = %d, want 2", len(resp.Comparables))
	}
}

func TestEstimateNoBrandMatch(t *testing.T) {
	hermes := listing.Listing{
		ID: "h1", Brand: "Hermes", Model: "Birkin 30",
		Price: 18000, ConditionLabel: "excellent", SourcePlatform: "Fashionphile",
	}
	ret := &fakeRetriever{catalog: []listing.Listing{normalized(hermes)}}
	svc := newTestService(ret)

	resp, err := svc.Estimate(context.Background(), EstimateRequest{
		Target: listing.TargetItem{Brand: "Chanel", Model: "Classic Flap"},
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if resp.Status != StatusNoBrandMatch {
		t.Fatalf("status = %q, want %q", resp.Status, StatusNoBrandMatch)
	}
	if !strings.Contains(resp.Reason, "Chanel") {
		t.Errorf("reason %q should name the missing brand", resp.Reason)
	}
	// Brand-filtered retrieval found nothing, so the service retried
	// unfiltered and surfaced the other-brand references.
	if len(ret.calls) != 2 {
		t.Fatalf("retrieval calls = %d, want 2", len(ret.calls))
	}
	if ret.calls[1].Brand != "" {
		t.Errorf("second retrieval should be unfiltered, got brand %q", ret.calls[1].Brand)
	}
	if len(resp.Comparables) != 1 || resp.Comparables[0].Brand != "Hermes" {
		t.Errorf("reference comparables = %+v, want the Hermes listing", resp.Comparables)
	}
}

func TestEstimateValidation(t *testing.T) {
	svc := newTestService(&fakeRetriever{})
	_, err := svc.Estimate(context.Background(), EstimateRequest{
		Target: listing.TargetItem{Brand: "Chanel"},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestEstimateRetrievalError(t *testing.T) {
	svc := newTestService(&fakeRetriever{err: errors.New("qdrant down")})
	_, err := svc.Estimate(context.Background(), EstimateRequest{
		Target: listing.TargetItem{Brand: "Chanel", Model: "Classic Flap"},
	})
	if err == nil {
		t.Fatal("expected error when retrieval fails")
	}
}

func TestEstimateUsesTrendProvider(t *testing.T) {
	ret := &fakeRetriever{catalog: []listing.Listing{
		normalized(flapListing("a", 10000, "excellent")),
		normalized(flapListing("b", 10000, "excellent")),
		normalized(flapListing("c", 10000, "excellent")),
		normalized(flapListing("d", 10000, "excellent")),
		normalized(flapListing("e", 10000, "excellent")),
	}}
	trends := trend.NewStatic(map[string]float64{"chanel classic flap": 1.0})
	svc := newTestService(ret, WithTrendProvider(trends))

	resp, err := svc.Estimate(context.Background(), EstimateRequest{
		Target: listing.TargetItem{
			Brand: "Chanel", Model: "Classic Flap",
			Sizes: []string{"Medium"}, Material: "lambskin", Color: "black",
			ConditionRating: "excellent",
		},
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if resp.Estimate.TrendScoreUsed != 1.0 {
		t.Errorf("trend score used = %v, want 1.0 from provider", resp.Estimate.TrendScoreUsed)
	}
}

func TestEstimateCaching(t *testing.T) {
	ret := &fakeRetriever{catalog: []listing.Listing{
		normalized(flapListing("a", 9800, "excellent")),
		normalized(flapListing("b", 10200, "very good")),
		normalized(flapListing("c", 9500, "good")),
		normalized(flapListing("d", 10500, "excellent")),
		normalized(flapListing("e", 9900, "new")),
	}}
	c := cache.New[*EstimateResponse](time.Minute, 16)
	defer c.Close()
	svc := newTestService(ret, WithEstimateCache(c))

	req := EstimateRequest{Target: listing.TargetItem{
		Brand: "Chanel", Model: "Classic Flap", ConditionRating: "excellent",
	}}

	first, err := svc.Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Estimate: %v", err)
	}
	if first.Cached {
		t.Error("first response should not be marked cached")
	}
	retrievals := len(ret.calls)

	second, err := svc.Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Estimate: %v", err)
	}
	if !second.Cached {
		t.Error("second response should be served from cache")
	}
	if len(ret.calls) != retrievals {
		t.Errorf("retrieval calls grew from %d to %d, cache should prevent that", retrievals, len(ret.calls))
	}
}

func TestSearch(t *testing.T) {
	ret := &fakeRetriever{catalog: []listing.Listing{
		normalized(flapListing("a", 9800, "excellent")),
		normalized(flapListing("b", 10200, "good")),
	}}
	svc := newTestService(ret)

	resp, err := svc.Search(context.Background(), SearchRequest{Query: "chanel classic flap"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
	if resp.Results[0].Listing.ID != "a" {
		t.Errorf("top result = %q, want a (highest retrieval score)", resp.Results[0].Listing.ID)
	}
	if resp.Results[0].Source != string(retriever.SourceSemantic) {
		t.Errorf("source = %q, want semantic", resp.Results[0].Source)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := newTestService(&fakeRetriever{})
	_, err := svc.Search(context.Background(), SearchRequest{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestSearchPriceOptions(t *testing.T) {
	ret := &fakeRetriever{catalog: []listing.Listing{normalized(flapListing("a", 9800, "excellent"))}}
	svc := newTestService(ret)

	min := 1000.0
	if _, err := svc.Search(context.Background(), SearchRequest{Query: "chanel", MinPrice: &min}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	opts := ret.calls[0]
	if opts.Price == nil || opts.Price.Min != 1000 {
		t.Fatalf("price band = %+v, want min 1000", opts.Price)
	}
	if !isInf(opts.Price.Max) {
		t.Errorf("price max = %v, want +Inf when unset", opts.Price.Max)
	}
}

func isInf(f float64) bool { return f > 1e308 }
