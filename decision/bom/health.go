package bom

import (
	"fmt"
	"math"

	"deal-margin/decision/deal"
)

// healthScore grades the allocation on a 0-100 scale. It starts from a
// neutral 50 and moves with the target outcome, the deal posture, and how
// stressed the line margins are.
func healthScore(states []lineState, totals Totals, ctx Context) int {
	score := 50

	if ctx.TargetBlendedMarginPct != nil {
		if totals.TargetAchieved {
			score += 15
		} else {
			score -= 10
		}
	}

	if ctx.Registration == deal.Registered {
		score += 8
	}
	switch ctx.ValueAdd {
	case deal.ValueAddHigh:
		score += 5
	case deal.ValueAddLow:
		score -= 5
	}
	switch ctx.Relationship {
	case deal.RelationshipStrategic:
		score += 5
	case deal.RelationshipNew:
		score -= 3
	}
	if ctx.CompetitorCount >= 2 {
		score -= 8
	}

	if allAtFloor(states) {
		score -= 10
	}
	if hardwareCostShare(states) > 0.70 {
		score -= 5
	}
	if marginSpreadPP(states) > 25 {
		score -= 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// insights narrates what the health score saw. At least one entry is always
// returned and duplicates are dropped.
func insights(states []lineState, totals Totals, ctx Context) []string {
	var out []string
	add := func(s string) {
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}

	if ctx.TargetBlendedMarginPct != nil {
		if totals.TargetAchieved {
			add(fmt.Sprintf("Blended margin lands at %.1f%%, within tolerance of the %.1f%% target",
				float64(totals.BlendedMarginPct), float64(*ctx.TargetBlendedMarginPct)))
		} else {
			add(fmt.Sprintf("Blended margin of %.1f%% misses the %.1f%% target by %.1f points; category floors and ceilings limit further movement",
				float64(totals.BlendedMarginPct), float64(*ctx.TargetBlendedMarginPct), math.Abs(totals.GapPct)))
		}
	}

	if ctx.Registration == deal.Registered {
		add("Deal registration protects margin on this opportunity")
	}
	if ctx.CompetitorCount >= 2 {
		add(fmt.Sprintf("%d competitors in play; margins are positioned defensively", ctx.CompetitorCount))
	}
	if ctx.ValueAdd == deal.ValueAddHigh {
		add("High value-add supports pricing above category defaults")
	}

	if allAtFloor(states) {
		add("Every line sits at its category floor; there is no room left to concede")
	}
	if share := hardwareCostShare(states); share > 0.70 {
		add(fmt.Sprintf("Hardware carries %.0f%% of the cost; consider attaching services to lift the blend", share*100))
	}
	if marginSpreadPP(states) > 25 {
		add("Line margins are widely spread; expect pushback on the high-margin lines")
	}

	if len(out) == 0 {
		add("Allocation sits within category defaults")
	}
	return out
}

func allAtFloor(states []lineState) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if s.margin > s.prof.FloorPct.Fraction() {
			return false
		}
	}
	return true
}

func hardwareCostShare(states []lineState) float64 {
	var total, hardware float64
	for _, s := range states {
		total += s.extCost
		if s.line.Category == Hardware {
			hardware += s.extCost
		}
	}
	if total <= 0 {
		return 0
	}
	return hardware / total
}

// marginSpreadPP is max minus min line margin in percentage points.
func marginSpreadPP(states []lineState) float64 {
	if len(states) == 0 {
		return 0
	}
	lo, hi := states[0].margin, states[0].margin
	for _, s := range states[1:] {
		if s.margin < lo {
			lo = s.margin
		}
		if s.margin > hi {
			hi = s.margin
		}
	}
	return float64(hi-lo) * 100
}
