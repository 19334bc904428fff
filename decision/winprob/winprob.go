// Package winprob estimates the chance of winning a deal at a proposed
// margin. A heuristic base rate from the competitive picture is blended with
// a logistic curve centered on an 18% margin knee.
package winprob

import (
	"math"

	"deal-margin/decision/deal"
	"deal-margin/pkg/confidence"
	"deal-margin/pkg/margins"
)

const (
	kneePct = 18.0 // margin where win odds start falling fast
	slope   = 0.08

	heuristicWeight = 0.6
	logisticWeight  = 0.4
)

// Input is one win-probability estimate request. A nil Margin defaults to
// the 18% knee, where the logistic term is exactly 0.5; the upstream service
// let a missing margin poison the arithmetic, and that behavior is not
// carried here.
type Input struct {
	Margin *margins.Percent

	CompetitorCount    int
	Registration       deal.Registration
	Segment            deal.Segment
	Relationship       deal.Relationship
	ValueAdd           deal.ValueAdd
	NewLogo            bool
	Complexity         deal.Complexity
	ServicesAttached   bool
	QuarterEnd         bool
	AvgPriceAggression float64 // 1-5, zero defaults to the neutral 3
}

// FromDeal builds an estimate input from a deal context and a proposed
// margin.
func FromDeal(d deal.DealContext, marginPct margins.Percent) Input {
	d = deal.ApplyDefaults(d)
	m := marginPct
	return Input{
		Margin:             &m,
		CompetitorCount:    d.CompetitorCount,
		Registration:       d.Registration,
		Segment:            d.Segment,
		Relationship:       d.Relationship,
		ValueAdd:           d.ValueAdd,
		NewLogo:            d.NewLogo,
		Complexity:         d.Complexity,
		ServicesAttached:   d.ServicesAttached,
		QuarterEnd:         d.QuarterEnd,
		AvgPriceAggression: d.AvgPriceAggression(),
	}
}

// Estimate returns a whole-number win percentage in [5, 95]. Identical
// inputs always yield identical outputs.
func Estimate(in Input) int {
	base := baseRate(in.CompetitorCount)

	switch in.Registration {
	case deal.Registered:
		base += 0.08
	case deal.PartialReg:
		base += 0.04
	}
	switch in.Segment {
	case deal.SegmentSMB:
		base += 0.02
	case deal.SegmentEnterprise:
		base -= 0.02
	}
	switch in.Relationship {
	case deal.RelationshipStrategic:
		base += 0.06
	case deal.RelationshipEstablished:
		base += 0.03
	case deal.RelationshipNew:
		base -= 0.03
	}
	switch in.ValueAdd {
	case deal.ValueAddHigh:
		base += 0.04
	case deal.ValueAddLow:
		base -= 0.03
	}
	if in.NewLogo {
		base -= 0.04
	}
	switch in.Complexity {
	case deal.ComplexityComplex:
		base += 0.02
	case deal.ComplexityVeryComplex:
		base += 0.03
	}
	if in.ServicesAttached {
		base += 0.03
	}
	if in.QuarterEnd {
		base += 0.02
	}
	aggression := in.AvgPriceAggression
	if aggression == 0 {
		aggression = 3
	}
	base += (3 - aggression) * 0.02

	marginPct := kneePct
	if in.Margin != nil {
		marginPct = float64(*in.Margin)
	}
	logistic := 1 / (1 + math.Exp(slope*(marginPct-kneePct)))

	p := confidence.Clamp(heuristicWeight*base+logisticWeight*logistic, 0.05, 0.95)
	return int(math.Round(100 * p))
}

func baseRate(competitors int) float64 {
	switch {
	case competitors <= 0:
		return 0.68
	case competitors == 1:
		return 0.58
	case competitors == 2:
		return 0.43
	default:
		return 0.32
	}
}
