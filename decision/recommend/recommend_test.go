package recommend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deal-margin/decision/deal"
	"deal-margin/decision/feature"
	"deal-margin/decision/logreg"
	"deal-margin/decision/training"
)

func sampleDeal() deal.DealContext {
	return deal.DealContext{
		OEMCost:         100_000,
		Segment:         deal.SegmentMidMarket,
		CompetitorCount: 1,
	}
}

func sampleHistory() []deal.HistoricalDeal {
	d := sampleDeal()
	return []deal.HistoricalDeal{
		{DealContext: d, AchievedMargin: 0.22, Status: deal.StatusWon},
		{DealContext: d, AchievedMargin: 0.18, Status: deal.StatusWon},
		{DealContext: d, AchievedMargin: 0.15, Status: deal.StatusLost, LossReason: "Lost on price"},
	}
}

func samplePackage() *training.Package {
	weights := make([]float64, feature.VectorLen)
	weights[1] = -10
	return &training.Package{
		CustomerID: "acme",
		Model: logreg.Model{
			Weights:      weights,
			Bias:         2.5,
			FeatureCount: feature.VectorLen,
		},
		Metrics:       logreg.Metrics{AUC: 0.75},
		TrainingDeals: 250,
	}
}

func TestComputeRecommendationRulesOnly(t *testing.T) {
	engine := NewEngine(Config{})

	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), nil, nil)
	require.NotNil(t, rec)
	require.Equal(t, "rules", rec.Method)
	require.Greater(t, float64(rec.SuggestedMarginPct), 0.0)
	require.Equal(t, 0, rec.NeighborCount)
	require.Greater(t, float64(rec.PolicyFloor), 0.0)
}

func TestComputeRecommendationBlendsNeighbors(t *testing.T) {
	engine := NewEngine(Config{})

	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), sampleHistory(), nil)
	require.Equal(t, "rules+neighbors", rec.Method)
	require.Equal(t, 3, rec.NeighborCount)
	require.NotEmpty(t, rec.Drivers)
}

func TestComputeRecommendationModelService(t *testing.T) {
	var gotMethod, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"suggested_margin_pct": 19.5, "win_probability": 0.62, "confidence": 0.8}`))
	}))
	defer srv.Close()

	engine := NewEngine(Config{ModelServiceURL: srv.URL})
	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), sampleHistory(), samplePackage())

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "model-service", rec.Method)
	require.InDelta(t, 19.5, float64(rec.SuggestedMarginPct), 1e-9)
	require.InDelta(t, 0.62, rec.WinProbability, 1e-9)

	// price = cost / (1 - 0.195)
	price, _ := rec.SuggestedPrice.Float64()
	require.InDelta(t, 124_223.60, price, 0.01)
}

func TestComputeRecommendationModelServiceFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := NewEngine(Config{ModelServiceURL: srv.URL})
	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), nil, samplePackage())

	// Service down, but a trained package exists: local inference answers.
	require.Equal(t, "model", rec.Method)
	require.Greater(t, float64(rec.ConservativeMarginPct), 0.0)
	require.NotEmpty(t, rec.KeyDrivers)
}

func TestComputeRecommendationModelServiceBadPayloadFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"suggested_margin_pct": 0}`))
	}))
	defer srv.Close()

	engine := NewEngine(Config{ModelServiceURL: srv.URL})
	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), sampleHistory(), nil)

	// A zero margin from the service is not a usable answer.
	require.Equal(t, "rules+neighbors", rec.Method)
}

func TestComputeRecommendationUnreachableServiceFallsBack(t *testing.T) {
	engine := NewEngine(Config{
		ModelServiceURL:     "http://127.0.0.1:1/recommend",
		ModelServiceTimeout: 200 * time.Millisecond,
	})
	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), nil, nil)
	require.Equal(t, "rules", rec.Method)
}

func TestComputeRecommendationNarrativeAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"narrative": "A solid mid-market position."}`))
	}))
	defer srv.Close()

	engine := NewEngine(Config{NarrativeURL: srv.URL, NarrativeAPIKey: "sk-test"})
	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), nil, nil)
	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "A solid mid-market position.", rec.Narrative)
}

func TestComputeRecommendationNarrativeFailureIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	engine := NewEngine(Config{NarrativeURL: srv.URL})
	rec := engine.ComputeRecommendation(context.Background(), sampleDeal(), nil, nil)
	require.NotNil(t, rec)
	require.Empty(t, rec.Narrative)
}

func TestNarrativeCacheServesRepeats(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"narrative": "cached answer"}`))
	}))
	defer srv.Close()

	c := newNarrativeClient(srv.URL, "", time.Minute)
	rec := &Recommendation{Method: "rules"}

	first, err := c.Generate(context.Background(), sampleDeal(), rec)
	require.NoError(t, err)
	second, err := c.Generate(context.Background(), sampleDeal(), rec)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int32(1), calls.Load())
}

func TestNarrativeCacheExpiresByTTL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"narrative": "fresh"}`))
	}))
	defer srv.Close()

	c := newNarrativeClient(srv.URL, "", time.Minute)
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	_, err := c.Generate(context.Background(), sampleDeal(), &Recommendation{})
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = c.Generate(context.Background(), sampleDeal(), &Recommendation{})
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestNarrativeRetriesOnceOnThrottle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"narrative": "second time lucky"}`))
	}))
	defer srv.Close()

	c := newNarrativeClient(srv.URL, "", time.Minute)
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept += d }

	text, err := c.Generate(context.Background(), sampleDeal(), &Recommendation{})
	require.NoError(t, err)
	require.Equal(t, "second time lucky", text)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, narrativeBackoff, slept)
}

func TestNarrativeGivesUpAfterOneRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newNarrativeClient(srv.URL, "", time.Minute)
	c.sleep = func(time.Duration) {}

	_, err := c.Generate(context.Background(), sampleDeal(), &Recommendation{})
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestNarrativeNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newNarrativeClient(srv.URL, "", time.Minute)
	c.sleep = func(time.Duration) {}

	_, err := c.Generate(context.Background(), sampleDeal(), &Recommendation{})
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}
