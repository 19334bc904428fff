package benchmark

import (
	"testing"

	"github.com/stretchr/testify/require"

	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

func TestMarginRangeSegments(t *testing.T) {
	tests := []struct {
		segment deal.Segment
		want    Range
	}{
		{deal.SegmentSMB, Range{LowPct: 14, MedianPct: 20, HighPct: 27}},
		{deal.SegmentMidMarket, Range{LowPct: 11, MedianPct: 17, HighPct: 23}},
		{deal.SegmentEnterprise, Range{LowPct: 8, MedianPct: 14, HighPct: 19}},
		{deal.Segment(""), Range{LowPct: 10, MedianPct: 16, HighPct: 22}},
	}
	for _, tt := range tests {
		t.Run(string(tt.segment), func(t *testing.T) {
			require.Equal(t, tt.want, MarginRange(deal.IndustryOther, tt.segment))
		})
	}
}

func TestMarginRangeIndustryShifts(t *testing.T) {
	base := MarginRange(deal.IndustryOther, deal.SegmentMidMarket)

	healthcare := MarginRange(deal.IndustryHealthcare, deal.SegmentMidMarket)
	require.Equal(t, base.MedianPct+1.5, healthcare.MedianPct)

	government := MarginRange(deal.IndustryGovernment, deal.SegmentMidMarket)
	require.Equal(t, base.MedianPct-2.5, government.MedianPct)

	unknown := MarginRange(deal.Industry("aerospace"), deal.SegmentMidMarket)
	require.Equal(t, base, unknown)
}

func TestRangeIQR(t *testing.T) {
	r := Range{LowPct: 11, MedianPct: 17, HighPct: 23}
	require.InDelta(t, 0.12, float64(r.IQR()), 1e-12)
}

func TestIQRVendorOverrideWins(t *testing.T) {
	pct := margins.Percent(20)
	vendor := &deal.VendorProfile{Name: "Cisco", MarginIQRPct: &pct}

	require.InDelta(t, 0.20, float64(IQR(deal.SegmentSMB, vendor)), 1e-12)
}

func TestIQRSegmentFallback(t *testing.T) {
	require.InDelta(t, 0.13, float64(IQR(deal.SegmentSMB, nil)), 1e-12)
	require.InDelta(t, 0.11, float64(IQR(deal.SegmentEnterprise, &deal.VendorProfile{Name: "HPE"})), 1e-12)
}

func TestIQRDefault(t *testing.T) {
	require.Equal(t, DefaultIQR, IQR("", nil))
}
