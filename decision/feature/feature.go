// Package feature maps a deal into the fixed-length numeric vector consumed
// by the logistic regression engine. The layout is 8 normalized continuous
// features, 4 binary flags, and 6 one-hot groups encoded k-1 (last category
// dropped) to avoid collinearity.
package feature

import (
	"math"

	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

// VectorLen is the fixed output length. It never varies with the input.
const VectorLen = 29

// ContinuousCount is the number of leading continuous features subject to
// normalization.
const ContinuousCount = 8

// NormStats holds per-feature population statistics for the continuous block.
type NormStats struct {
	Mean [ContinuousCount]float64 `json:"mean"`
	Std  [ContinuousCount]float64 `json:"std"`
}

// Overrides carries per-call substitutions. ProposedMargin replaces the
// deal's own recorded margin, which is how inference sweeps counterfactual
// margins without mutating the deal.
type Overrides struct {
	ProposedMargin *margins.Fraction
}

var names = []string{
	// continuous
	"log_oem_cost",
	"proposed_margin",
	"price_sensitivity",
	"loyalty",
	"urgency",
	"differentiation",
	"competitor_count",
	"bom_line_count",
	// binary
	"new_logo",
	"services_attached",
	"quarter_end",
	"displacement",
	// one-hot, k-1 per group
	"seg_smb", "seg_midmarket",
	"cat_hardware", "cat_software", "cat_cloud", "cat_services", "cat_hybrid",
	"rel_new", "rel_developing", "rel_established",
	"reg_registered", "reg_partial",
	"va_low", "va_medium",
	"cx_simple", "cx_moderate", "cx_complex",
}

// Names returns the ordered feature names. The slice is a copy.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Vector featurizes a deal. Absent continuous values normalize to exactly 0
// (mean imputation); absent binaries and unrecognized categories encode as 0.
func Vector(d deal.DealContext, stats NormStats, ov Overrides) []float64 {
	d = deal.ApplyDefaults(d)
	v := make([]float64, 0, VectorLen)

	raw := rawContinuous(d, nil, ov)
	for i := 0; i < ContinuousCount; i++ {
		v = append(v, normalize(raw[i], stats.Mean[i], stats.Std[i]))
	}

	v = append(v,
		boolFeature(d.NewLogo),
		boolFeature(d.ServicesAttached),
		boolFeature(d.QuarterEnd),
		boolFeature(d.Displacement),
	)

	v = append(v, oneHotSegment(d.Segment)...)
	v = append(v, oneHotCategory(d.ProductCategory)...)
	v = append(v, oneHotRelationship(d.Relationship)...)
	v = append(v, oneHotRegistration(d.Registration)...)
	v = append(v, oneHotValueAdd(d.ValueAdd)...)
	v = append(v, oneHotComplexity(d.Complexity)...)

	return v
}

// HistoricalVector featurizes a closed deal using its achieved margin as the
// proposed-margin feature unless an override is supplied.
func HistoricalVector(h deal.HistoricalDeal, stats NormStats, ov Overrides) []float64 {
	if ov.ProposedMargin == nil {
		m := h.AchievedMargin
		ov.ProposedMargin = &m
	}
	return Vector(h.DealContext, stats, ov)
}

// ComputeNormStats computes population mean and standard deviation for each
// continuous feature over a deal set. A feature constant across the set gets
// a standard deviation of 1, never 0.
func ComputeNormStats(deals []deal.HistoricalDeal) NormStats {
	var stats NormStats
	var sums, sqSums [ContinuousCount]float64
	var counts [ContinuousCount]int

	raws := make([][ContinuousCount]float64, len(deals))
	for i, h := range deals {
		d := deal.ApplyDefaults(h.DealContext)
		m := h.AchievedMargin
		raws[i] = rawContinuous(d, &m, Overrides{})
		for f := 0; f < ContinuousCount; f++ {
			if math.IsNaN(raws[i][f]) {
				continue
			}
			sums[f] += raws[i][f]
			counts[f]++
		}
	}
	for f := 0; f < ContinuousCount; f++ {
		if counts[f] > 0 {
			stats.Mean[f] = sums[f] / float64(counts[f])
		}
	}
	for i := range raws {
		for f := 0; f < ContinuousCount; f++ {
			if math.IsNaN(raws[i][f]) {
				continue
			}
			diff := raws[i][f] - stats.Mean[f]
			sqSums[f] += diff * diff
		}
	}
	for f := 0; f < ContinuousCount; f++ {
		if counts[f] > 0 {
			stats.Std[f] = math.Sqrt(sqSums[f] / float64(counts[f]))
		}
		if stats.Std[f] == 0 {
			stats.Std[f] = 1
		}
	}
	return stats
}

// rawContinuous extracts the unnormalized continuous block. NaN marks an
// absent value. achieved supplies a recorded outcome margin; the override,
// when present, wins.
func rawContinuous(d deal.DealContext, achieved *margins.Fraction, ov Overrides) [ContinuousCount]float64 {
	var raw [ContinuousCount]float64

	if d.OEMCost > 0 {
		raw[0] = math.Log(d.OEMCost + 1)
	} else {
		raw[0] = math.NaN()
	}

	switch {
	case ov.ProposedMargin != nil:
		raw[1] = float64(*ov.ProposedMargin)
	case achieved != nil:
		raw[1] = float64(*achieved)
	default:
		raw[1] = math.NaN()
	}

	raw[2] = float64(d.PriceSensitivity)
	raw[3] = float64(d.Loyalty)
	raw[4] = float64(d.Urgency)
	raw[5] = float64(d.Differentiation)
	raw[6] = float64(d.CompetitorCount)

	if d.BOMLineCount > 0 {
		raw[7] = float64(d.BOMLineCount)
	} else {
		raw[7] = math.NaN()
	}
	return raw
}

func normalize(raw, mean, std float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	if std == 0 {
		std = 1
	}
	return (raw - mean) / std
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// One-hot encoders drop the last category of each group. An unrecognized
// value yields all zeros for the group.

func oneHotSegment(s deal.Segment) []float64 {
	v := make([]float64, 2)
	switch s {
	case deal.SegmentSMB:
		v[0] = 1
	case deal.SegmentMidMarket:
		v[1] = 1
	}
	return v
}

func oneHotCategory(c deal.ProductCategory) []float64 {
	v := make([]float64, 5)
	switch c {
	case deal.CategoryHardware:
		v[0] = 1
	case deal.CategorySoftware:
		v[1] = 1
	case deal.CategoryCloud:
		v[2] = 1
	case deal.CategoryServices:
		v[3] = 1
	case deal.CategoryHybrid:
		v[4] = 1
	}
	return v
}

func oneHotRelationship(r deal.Relationship) []float64 {
	v := make([]float64, 3)
	switch r {
	case deal.RelationshipNew:
		v[0] = 1
	case deal.RelationshipDeveloping:
		v[1] = 1
	case deal.RelationshipEstablished:
		v[2] = 1
	}
	return v
}

func oneHotRegistration(r deal.Registration) []float64 {
	v := make([]float64, 2)
	switch r {
	case deal.Registered:
		v[0] = 1
	case deal.PartialReg:
		v[1] = 1
	}
	return v
}

func oneHotValueAdd(va deal.ValueAdd) []float64 {
	v := make([]float64, 2)
	switch va {
	case deal.ValueAddLow:
		v[0] = 1
	case deal.ValueAddMedium:
		v[1] = 1
	}
	return v
}

func oneHotComplexity(c deal.Complexity) []float64 {
	v := make([]float64, 3)
	switch c {
	case deal.ComplexitySimple:
		v[0] = 1
	case deal.ComplexityModerate:
		v[1] = 1
	case deal.ComplexityComplex:
		v[2] = 1
	}
	return v
}
