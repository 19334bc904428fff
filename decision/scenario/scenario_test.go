package scenario

import (
	"testing"

	"github.com/stretchr/testify/require"

	"deal-margin/decision/deal"
)

func TestCompareArithmetic(t *testing.T) {
	d := deal.DealContext{OEMCost: 100_000, Segment: deal.SegmentMidMarket, CompetitorCount: 1}

	c := Compare(d, 20, 15)

	plannedPrice, _ := c.PlannedPrice.Float64()
	recommendedPrice, _ := c.RecommendedPrice.Float64()
	require.InDelta(t, 125_000, plannedPrice, 0.01)
	require.InDelta(t, 117_647.06, recommendedPrice, 0.01)

	plannedGP, _ := c.PlannedGrossProfit.Float64()
	recommendedGP, _ := c.RecommendedGrossProfit.Float64()
	delta, _ := c.GrossProfitDelta.Float64()
	require.InDelta(t, 25_000, plannedGP, 0.01)
	require.InDelta(t, 17_647.06, recommendedGP, 0.01)
	require.InDelta(t, recommendedGP-plannedGP, delta, 0.01)
}

func TestCompareWinProbDelta(t *testing.T) {
	d := deal.DealContext{OEMCost: 100_000, Segment: deal.SegmentMidMarket, CompetitorCount: 2}

	c := Compare(d, 30, 14)

	// Cutting margin nearly in half cannot hurt the win odds.
	require.GreaterOrEqual(t, c.RecommendedWinProb, c.PlannedWinProb)
	require.InDelta(t, c.RecommendedWinProb-c.PlannedWinProb, c.WinProbDelta, 1e-12)
	require.GreaterOrEqual(t, c.PlannedWinProb, 0.0)
	require.LessOrEqual(t, c.RecommendedWinProb, 1.0)
}

func TestCompareEqualMarginsIsNeutral(t *testing.T) {
	d := deal.DealContext{OEMCost: 40_000}

	c := Compare(d, 18, 18)
	require.True(t, c.GrossProfitDelta.IsZero())
	require.Equal(t, 0.0, c.WinProbDelta)
	require.Equal(t, c.PlannedPrice, c.RecommendedPrice)
}
