// Package benchmark provides the static industry margin-range table. It is
// the only margin source available before any customer model exists, and it
// supplies the interquartile ranges that size synthetic-augmentation shifts
// during training.
package benchmark

import (
	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

// Range is an observed margin-on-price band for a vertical/segment pair.
type Range struct {
	LowPct    margins.Percent `json:"low_pct"`    // 25th percentile
	MedianPct margins.Percent `json:"median_pct"` // 50th percentile
	HighPct   margins.Percent `json:"high_pct"`   // 75th percentile
}

// IQR returns the interquartile range as a margin fraction.
func (r Range) IQR() margins.Fraction {
	return (r.HighPct - r.LowPct).Fraction()
}

// DefaultIQR is the fallback shift basis when no benchmark covers a deal.
const DefaultIQR = margins.Fraction(0.10)

// MarginRange returns the benchmark band for an industry/segment pair.
// Unknown industries fall to the cross-vertical band for the segment.
func MarginRange(industry deal.Industry, segment deal.Segment) Range {
	base := segmentRange(segment)
	switch industry {
	case deal.IndustryHealthcare:
		return shift(base, 1.5)
	case deal.IndustryFinance:
		return shift(base, 1.0)
	case deal.IndustryGovernment:
		return shift(base, -2.5)
	case deal.IndustryEducation:
		return shift(base, -1.5)
	case deal.IndustryManufacturing:
		return base
	case deal.IndustryRetail:
		return shift(base, -0.5)
	case deal.IndustryTechnology:
		return shift(base, 0.5)
	case deal.IndustryOther:
		return base
	default:
		// Unrecognized vertical: cross-vertical band.
		return base
	}
}

func segmentRange(segment deal.Segment) Range {
	switch segment {
	case deal.SegmentSMB:
		return Range{LowPct: 14, MedianPct: 20, HighPct: 27}
	case deal.SegmentMidMarket:
		return Range{LowPct: 11, MedianPct: 17, HighPct: 23}
	case deal.SegmentEnterprise:
		return Range{LowPct: 8, MedianPct: 14, HighPct: 19}
	default:
		return Range{LowPct: 10, MedianPct: 16, HighPct: 22}
	}
}

func shift(r Range, pp margins.Percent) Range {
	return Range{LowPct: r.LowPct + pp, MedianPct: r.MedianPct + pp, HighPct: r.HighPct + pp}
}

// IQR returns the interquartile margin range used to size augmentation
// shifts. An admin-configured vendor IQR takes precedence; otherwise the
// segment benchmark applies, with DefaultIQR as the last resort.
func IQR(segment deal.Segment, vendor *deal.VendorProfile) margins.Fraction {
	if vendor != nil && vendor.MarginIQRPct != nil {
		return vendor.MarginIQRPct.Fraction()
	}
	if segment == "" {
		return DefaultIQR
	}
	iqr := segmentRange(segment).IQR()
	if iqr <= 0 {
		return DefaultIQR
	}
	return iqr
}
