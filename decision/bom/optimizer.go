// Package bom allocates a target blended margin across the heterogeneous
// line items of a bill of materials, respecting per-category floors,
// ceilings, and elasticity.
package bom

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

// maxPasses caps the gross-profit redistribution loop. Feasible targets for
// realistic line counts settle in one or two passes; the cap only bites when
// headroom runs out, which TargetAchieved=false reports.
const maxPasses = 5

// targetTolerancePP is the blended-margin tolerance in percentage points.
const targetTolerancePP = 0.1

// Line is one bill-of-materials item.
type Line struct {
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	Quantity    float64  `json:"quantity"`
	UnitCost    float64  `json:"unit_cost"`
}

// Context carries the deal attributes that shift category targets, plus the
// requested blended margin. Zero-valued fields apply no adjustment.
type Context struct {
	TargetBlendedMarginPct *margins.Percent `json:"target_blended_margin_pct,omitempty"`

	Registration    deal.Registration `json:"registration,omitempty"`
	ValueAdd        deal.ValueAdd     `json:"value_add,omitempty"`
	Relationship    deal.Relationship `json:"relationship,omitempty"`
	CompetitorCount int               `json:"competitor_count,omitempty"`
}

// LineResult is the optimizer's output for one line.
type LineResult struct {
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	Quantity    float64  `json:"quantity"`
	UnitCost    float64  `json:"unit_cost"`

	RecommendedMarginPct margins.Percent `json:"recommended_margin_pct"`
	FloorPct             margins.Percent `json:"floor_pct"`

	ExtendedCost  decimal.Decimal `json:"extended_cost"`
	ExtendedPrice decimal.Decimal `json:"extended_price"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`

	Rationale string `json:"rationale"`
}

// Totals aggregates an allocation.
type Totals struct {
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	GrossProfit      decimal.Decimal `json:"gross_profit"`
	BlendedMarginPct margins.Percent `json:"blended_margin_pct"`
	TargetAchieved   bool            `json:"target_achieved"`
	GapPct           float64         `json:"gap_pct"` // signed, percentage points
}

// Allocation is the full optimizer output.
type Allocation struct {
	ID          uuid.UUID    `json:"id"`
	Lines       []LineResult `json:"lines"`
	Totals      Totals       `json:"totals"`
	HealthScore int          `json:"health_score"` // 0-100
	Insights    []string     `json:"insights"`
}

// lineState is the float-space working form during redistribution.
type lineState struct {
	line    Line
	prof    profile
	extCost float64
	margin  margins.Fraction
}

// Optimize allocates margins across the lines. Degenerate inputs (no lines,
// all-zero costs) return a well-formed zero-totals allocation.
func Optimize(lines []Line, ctx Context) *Allocation {
	if len(lines) == 0 {
		return &Allocation{
			ID:       uuid.New(),
			Lines:    []LineResult{},
			Totals:   zeroTotals(),
			Insights: []string{"No BOM lines provided"},
		}
	}

	adj := contextAdjustment(ctx)
	states := make([]lineState, len(lines))
	for i, l := range lines {
		prof := categoryProfile(l.Category)
		target := (prof.TargetPct + adj).Clamp(prof.FloorPct, prof.CeilingPct)
		states[i] = lineState{
			line:    l,
			prof:    prof,
			extCost: l.Quantity * l.UnitCost,
			margin:  target.Fraction(),
		}
	}

	if ctx.TargetBlendedMarginPct != nil {
		redistribute(states, *ctx.TargetBlendedMarginPct)
	}

	return build(states, ctx)
}

// redistribute nudges line margins toward the requested blended margin by
// moving gross profit proportionally to elasticity times extended cost,
// toward ceilings when more profit is needed and floors when less.
func redistribute(states []lineState, targetPct margins.Percent) {
	totalCost := 0.0
	for _, s := range states {
		totalCost += s.extCost
	}
	if totalCost <= 0 {
		return
	}
	target := targetPct.Fraction()
	neededGP := margins.GrossProfit(totalCost, target)

	for pass := 0; pass < maxPasses; pass++ {
		currentGP := 0.0
		for _, s := range states {
			currentGP += margins.GrossProfit(s.extCost, s.margin)
		}
		delta := neededGP - currentGP
		blended := margins.FromGrossProfit(totalCost, currentGP)
		if math.Abs(float64(blended.Percent()-targetPct)) <= targetTolerancePP {
			return
		}

		// Only lines with headroom in the needed direction participate.
		var weightSum float64
		weights := make([]float64, len(states))
		for i, s := range states {
			if s.extCost <= 0 {
				continue
			}
			if delta > 0 && s.margin < s.prof.CeilingPct.Fraction() {
				weights[i] = s.prof.Elasticity * s.extCost
			} else if delta < 0 && s.margin > s.prof.FloorPct.Fraction() {
				weights[i] = s.prof.Elasticity * s.extCost
			}
			weightSum += weights[i]
		}
		if weightSum == 0 {
			return // no headroom left
		}

		for i := range states {
			if weights[i] == 0 {
				continue
			}
			share := delta * weights[i] / weightSum
			gp := margins.GrossProfit(states[i].extCost, states[i].margin) + share
			m := margins.FromGrossProfit(states[i].extCost, gp)
			states[i].margin = m.Clamp(states[i].prof.FloorPct.Fraction(), states[i].prof.CeilingPct.Fraction())
		}
	}
}

func build(states []lineState, ctx Context) *Allocation {
	results := make([]LineResult, len(states))
	var totalCost, totalPrice float64
	for i, s := range states {
		price := margins.Price(s.extCost, s.margin)
		totalCost += s.extCost
		totalPrice += price
		results[i] = LineResult{
			Category:             s.line.Category,
			Description:          s.line.Description,
			Quantity:             s.line.Quantity,
			UnitCost:             s.line.UnitCost,
			RecommendedMarginPct: s.margin.Percent(),
			FloorPct:             s.prof.FloorPct,
			ExtendedCost:         decimal.NewFromFloat(s.extCost).Round(2),
			ExtendedPrice:        decimal.NewFromFloat(price).Round(2),
			GrossProfit:          decimal.NewFromFloat(price - s.extCost).Round(2),
			Rationale:            rationale(s),
		}
	}

	var blended margins.Fraction
	if totalPrice > 0 {
		blended = margins.Fraction((totalPrice - totalCost) / totalPrice)
	}

	totals := Totals{
		TotalCost:        decimal.NewFromFloat(totalCost).Round(2),
		TotalPrice:       decimal.NewFromFloat(totalPrice).Round(2),
		GrossProfit:      decimal.NewFromFloat(totalPrice - totalCost).Round(2),
		BlendedMarginPct: blended.Percent(),
	}
	if ctx.TargetBlendedMarginPct != nil {
		gap := float64(blended.Percent() - *ctx.TargetBlendedMarginPct)
		totals.GapPct = gap
		totals.TargetAchieved = totalPrice > 0 && math.Abs(gap) <= targetTolerancePP
	}

	alloc := &Allocation{
		ID:     uuid.New(),
		Lines:  results,
		Totals: totals,
	}
	alloc.HealthScore = healthScore(states, totals, ctx)
	alloc.Insights = insights(states, totals, ctx)
	return alloc
}

func contextAdjustment(ctx Context) margins.Percent {
	var adj margins.Percent
	if ctx.Registration == deal.Registered {
		adj += 2
	}
	switch ctx.ValueAdd {
	case deal.ValueAddHigh:
		adj += 1.5
	case deal.ValueAddLow:
		adj -= 1
	}
	switch ctx.Relationship {
	case deal.RelationshipStrategic:
		adj += 1
	case deal.RelationshipNew:
		adj -= 0.5
	}
	if ctx.CompetitorCount >= 2 {
		adj -= 2
	}
	return adj
}

func rationale(s lineState) string {
	floor := s.prof.FloorPct.Fraction()
	ceiling := s.prof.CeilingPct.Fraction()
	switch {
	case s.margin <= floor:
		return fmt.Sprintf("at the %s category floor of %.1f%%", s.line.Category, float64(s.prof.FloorPct))
	case s.margin >= ceiling:
		return fmt.Sprintf("at the %s category ceiling of %.1f%%", s.line.Category, float64(s.prof.CeilingPct))
	default:
		return fmt.Sprintf("within the %s band, elasticity %.1f", s.line.Category, s.prof.Elasticity)
	}
}

func zeroTotals() Totals {
	return Totals{
		TotalCost:   decimal.Zero,
		TotalPrice:  decimal.Zero,
		GrossProfit: decimal.Zero,
	}
}
