package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

func TestVectorFixedLength(t *testing.T) {
	require.Len(t, Vector(deal.DealContext{}, NormStats{}, Overrides{}), VectorLen)
	require.Len(t, Vector(deal.DealContext{
		OEMCost:         250_000,
		Segment:         deal.SegmentEnterprise,
		ProductCategory: deal.CategoryHybrid,
		BOMLineCount:    12,
	}, NormStats{}, Overrides{}), VectorLen)
	require.Len(t, Names(), VectorLen)
}

func TestAbsentContinuousNormalizesToZero(t *testing.T) {
	// Nonzero means would shift present values; absent ones must stay at 0.
	var stats NormStats
	for i := range stats.Mean {
		stats.Mean[i] = 5
		stats.Std[i] = 2
	}

	v := Vector(deal.DealContext{}, stats, Overrides{})
	require.Equal(t, 0.0, v[0], "log_oem_cost absent")
	require.Equal(t, 0.0, v[1], "proposed_margin absent")
	require.Equal(t, 0.0, v[7], "bom_line_count absent")
}

func TestProposedMarginOverride(t *testing.T) {
	m := margins.Fraction(0.18)
	v := Vector(deal.DealContext{OEMCost: 100_000}, NormStats{Std: [ContinuousCount]float64{1, 1, 1, 1, 1, 1, 1, 1}}, Overrides{ProposedMargin: &m})
	require.InDelta(t, 0.18, v[1], 1e-12)
}

func TestHistoricalVectorUsesAchievedMargin(t *testing.T) {
	stats := NormStats{Std: [ContinuousCount]float64{1, 1, 1, 1, 1, 1, 1, 1}}
	h := deal.HistoricalDeal{
		DealContext:    deal.DealContext{OEMCost: 50_000},
		AchievedMargin: 0.22,
	}

	v := HistoricalVector(h, stats, Overrides{})
	require.InDelta(t, 0.22, v[1], 1e-12)

	m := margins.Fraction(0.05)
	v = HistoricalVector(h, stats, Overrides{ProposedMargin: &m})
	require.InDelta(t, 0.05, v[1], 1e-12)
}

func TestOneHotDropsLastCategory(t *testing.T) {
	stats := NormStats{}

	// Enterprise is the dropped segment level: both segment slots zero.
	v := Vector(deal.DealContext{Segment: deal.SegmentEnterprise}, stats, Overrides{})
	require.Equal(t, 0.0, v[12], "seg_smb")
	require.Equal(t, 0.0, v[13], "seg_midmarket")

	v = Vector(deal.DealContext{Segment: deal.SegmentSMB}, stats, Overrides{})
	require.Equal(t, 1.0, v[12])
	require.Equal(t, 0.0, v[13])

	v = Vector(deal.DealContext{Segment: deal.SegmentMidMarket}, stats, Overrides{})
	require.Equal(t, 0.0, v[12])
	require.Equal(t, 1.0, v[13])
}

func TestOneHotUnrecognizedIsAllZeros(t *testing.T) {
	v := Vector(deal.DealContext{Segment: deal.Segment("galactic")}, NormStats{}, Overrides{})
	require.Equal(t, 0.0, v[12])
	require.Equal(t, 0.0, v[13])
}

func TestBinaryFlags(t *testing.T) {
	v := Vector(deal.DealContext{
		NewLogo:          true,
		ServicesAttached: false,
		QuarterEnd:       true,
		Displacement:     false,
	}, NormStats{}, Overrides{})

	require.Equal(t, 1.0, v[8], "new_logo")
	require.Equal(t, 0.0, v[9], "services_attached")
	require.Equal(t, 1.0, v[10], "quarter_end")
	require.Equal(t, 0.0, v[11], "displacement")
}

func TestComputeNormStats(t *testing.T) {
	deals := []deal.HistoricalDeal{
		{DealContext: deal.DealContext{OEMCost: 10_000, BOMLineCount: 2}, AchievedMargin: 0.10},
		{DealContext: deal.DealContext{OEMCost: 10_000, BOMLineCount: 6}, AchievedMargin: 0.30},
	}
	stats := ComputeNormStats(deals)

	require.InDelta(t, math.Log(10_001), stats.Mean[0], 1e-9)
	require.Equal(t, 1.0, stats.Std[0], "constant feature gets std 1")

	require.InDelta(t, 0.20, stats.Mean[1], 1e-9)
	require.InDelta(t, 0.10, stats.Std[1], 1e-9)

	require.InDelta(t, 4.0, stats.Mean[7], 1e-9)
	require.InDelta(t, 2.0, stats.Std[7], 1e-9)
}

func TestComputeNormStatsIgnoresAbsentValues(t *testing.T) {
	deals := []deal.HistoricalDeal{
		{DealContext: deal.DealContext{OEMCost: 20_000, BOMLineCount: 4}, AchievedMargin: 0.15},
		{DealContext: deal.DealContext{}, AchievedMargin: 0.15}, // no cost, no BOM
	}
	stats := ComputeNormStats(deals)

	// The absent values contribute nothing: the mean is the present value.
	require.InDelta(t, math.Log(20_001), stats.Mean[0], 1e-9)
	require.InDelta(t, 4.0, stats.Mean[7], 1e-9)
}

func TestVectorNeverNaN(t *testing.T) {
	stats := ComputeNormStats(nil)
	v := Vector(deal.DealContext{}, stats, Overrides{})
	for i, f := range v {
		require.False(t, math.IsNaN(f), "feature %s", Names()[i])
	}
}
