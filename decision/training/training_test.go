package training

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"deal-margin/decision/deal"
	"deal-margin/decision/logreg"
	"deal-margin/pkg/margins"
)

type fakeSource struct {
	deals []deal.HistoricalDeal
	err   error
}

func (f fakeSource) ListClosedDeals(_ context.Context, _ string) ([]deal.HistoricalDeal, error) {
	return f.deals, f.err
}

type fakeStore struct {
	saved *Package
	err   error
}

func (f *fakeStore) SavePackage(_ context.Context, pkg *Package) error {
	f.saved = pkg
	return f.err
}

func closedDeal(status deal.Status, margin margins.Fraction, cost float64) deal.HistoricalDeal {
	h := deal.HistoricalDeal{
		DealContext:    deal.DealContext{OEMCost: cost, Segment: deal.SegmentMidMarket},
		AchievedMargin: margin,
		Status:         status,
	}
	if status == deal.StatusLost {
		h.LossReason = "Lost on price"
	}
	return h
}

// trainableHistory builds a history where wins cluster at low margins and
// losses at high ones, so the fitted model has real signal to find.
func trainableHistory(n int) []deal.HistoricalDeal {
	out := make([]deal.HistoricalDeal, 0, n)
	for i := 0; i < n/2; i++ {
		out = append(out, closedDeal(deal.StatusWon, margins.Fraction(0.08+float64(i%5)*0.01), 50_000+float64(i)*1000))
	}
	for i := 0; i < n-n/2; i++ {
		out = append(out, closedDeal(deal.StatusLost, margins.Fraction(0.28+float64(i%5)*0.01), 50_000+float64(i)*1000))
	}
	return out
}

func TestTrainCustomerModelShortfall(t *testing.T) {
	history := trainableHistory(50) // 25 won, 25 lost, under the 100 floor
	pipeline := NewPipeline(fakeSource{deals: history}, &fakeStore{}, logreg.Options{})

	result, err := pipeline.TrainCustomerModel(context.Background(), "acme")
	require.NoError(t, err)
	require.Nil(t, result.Package)
	require.NotNil(t, result.Shortfall)
	require.Equal(t, 50, result.Shortfall.TotalDeals)
	require.Equal(t, 25, result.Shortfall.WonDeals)
	require.Equal(t, 25, result.Shortfall.LostDeals)
	require.Equal(t, MinTotalDeals, result.Shortfall.RequiredTotal)
	require.Equal(t, 50, result.Shortfall.MissingDeals)
	require.False(t, result.Promoted)
}

func TestTrainCustomerModelShortfallOnClassImbalance(t *testing.T) {
	// Plenty of volume, but only a handful of losses.
	history := make([]deal.HistoricalDeal, 0, 110)
	for i := 0; i < 100; i++ {
		history = append(history, closedDeal(deal.StatusWon, 0.15, 40_000))
	}
	for i := 0; i < 10; i++ {
		history = append(history, closedDeal(deal.StatusLost, 0.30, 40_000))
	}
	pipeline := NewPipeline(fakeSource{deals: history}, &fakeStore{}, logreg.Options{})

	result, err := pipeline.TrainCustomerModel(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, result.Shortfall)
	require.Equal(t, 10, result.Shortfall.LostDeals)
	require.Equal(t, 10, result.Shortfall.MissingDeals)
}

func TestTrainCustomerModelFullRun(t *testing.T) {
	history := trainableHistory(120)
	store := &fakeStore{}
	pipeline := NewPipeline(fakeSource{deals: history}, store, logreg.Options{Seed: 17})

	result, err := pipeline.TrainCustomerModel(context.Background(), "acme")
	require.NoError(t, err)
	require.Nil(t, result.Shortfall)
	require.NotNil(t, result.Package)

	pkg := result.Package
	require.Equal(t, "acme", pkg.CustomerID)
	require.Equal(t, 120, pkg.TrainingDeals)
	require.NotEmpty(t, pkg.Version)
	require.False(t, pkg.TrainedAt.IsZero())
	require.NotEmpty(t, pkg.Importance)

	// One synthetic counterfactual per real deal, at half weight.
	require.Equal(t, 120, result.Synthetic)

	// Margins separate the classes cleanly, so the real-deal evaluation
	// clears the promotion bar.
	require.Greater(t, pkg.Metrics.AUC, PromotionAUC)
	require.True(t, result.Promoted)

	require.Same(t, pkg, store.saved)
}

func TestTrainCustomerModelNilStore(t *testing.T) {
	pipeline := NewPipeline(fakeSource{deals: trainableHistory(120)}, nil, logreg.Options{Seed: 17})

	result, err := pipeline.TrainCustomerModel(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, result.Package)
}

func TestTrainCustomerModelSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	pipeline := NewPipeline(fakeSource{err: boom}, &fakeStore{}, logreg.Options{})

	_, err := pipeline.TrainCustomerModel(context.Background(), "acme")
	require.ErrorIs(t, err, boom)
}

func TestTrainCustomerModelSaveError(t *testing.T) {
	boom := errors.New("disk full")
	pipeline := NewPipeline(fakeSource{deals: trainableHistory(120)}, &fakeStore{err: boom}, logreg.Options{Seed: 17})

	_, err := pipeline.TrainCustomerModel(context.Background(), "acme")
	require.ErrorIs(t, err, boom)
}

func TestAugmentFlipsOutcomes(t *testing.T) {
	won := closedDeal(deal.StatusWon, 0.20, 60_000)
	lost := closedDeal(deal.StatusLost, 0.20, 60_000)

	samples := Augment([]deal.HistoricalDeal{won, lost})
	require.Len(t, samples, 2)

	// Mid-market IQR is 12pp: won shift 9pp up, lost shift 4.5pp down.
	flippedWon := samples[0]
	require.Equal(t, deal.StatusWon, flippedWon.Source)
	require.Equal(t, deal.StatusLost, flippedWon.Deal.Status)
	require.InDelta(t, 0.29, float64(flippedWon.Deal.AchievedMargin), 1e-9)
	require.Empty(t, flippedWon.Deal.LossReason)

	flippedLost := samples[1]
	require.Equal(t, deal.StatusLost, flippedLost.Source)
	require.Equal(t, deal.StatusWon, flippedLost.Deal.Status)
	require.InDelta(t, 0.155, float64(flippedLost.Deal.AchievedMargin), 1e-9)
	require.Empty(t, flippedLost.Deal.LossReason)
}

func TestAugmentClampsMargins(t *testing.T) {
	highWon := closedDeal(deal.StatusWon, 0.52, 60_000)
	lowLost := closedDeal(deal.StatusLost, 0.03, 60_000)

	samples := Augment([]deal.HistoricalDeal{highWon, lowLost})
	require.Equal(t, maxSyntheticMargin, samples[0].Deal.AchievedMargin)
	require.Equal(t, minSyntheticMargin, samples[1].Deal.AchievedMargin)
}

func TestAugmentVendorIQROverride(t *testing.T) {
	iqr := margins.Percent(20)
	won := closedDeal(deal.StatusWon, 0.20, 60_000)
	won.Vendor = &deal.VendorProfile{Name: "Cisco", MarginIQRPct: &iqr}

	samples := Augment([]deal.HistoricalDeal{won})
	// 0.75 of the 20pp vendor IQR: a 15pp shift.
	require.InDelta(t, 0.35, float64(samples[0].Deal.AchievedMargin), 1e-9)
}
