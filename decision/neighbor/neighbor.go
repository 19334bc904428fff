// Package neighbor scores historical deals by multi-attribute similarity to
// a live opportunity. Scores are unbounded non-negative sums of weighted
// comparisons; callers wanting recency awareness multiply in TimeDecay.
package neighbor

import (
	"sort"
	"strings"
	"time"

	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

// Comparison weights. Tuned for relative importance, not calibrated
// probabilities; only the ordering of total scores matters downstream.
const (
	wIndustry     = 8.0
	wSegment      = 6.0
	wCategory     = 6.0
	wRegistration = 4.0
	wCompetitors  = 4.0
	wCompetitive  = 2.0 // partial credit: both deals contested
	wJaccard      = 5.0 // scaled by competitor-name overlap
	wValueAdd     = 3.0
	wComplexity   = 3.0
	wRelationship = 3.0
	wCostBand     = 3.0
	wVendor       = 3.0
	wTechSoph     = 2.0
	wBOMLines     = 2.0
	wBOMMargin    = 2.0
	wRating       = 1.0 // per matching 1-5 rating
	wServices     = 1.0
	wQuarterEnd   = 1.0
)

// Similarity returns the additive similarity between a live deal and a
// closed one. Zero means nothing in common.
func Similarity(input deal.DealContext, h deal.HistoricalDeal) float64 {
	a := deal.ApplyDefaults(input)
	b := deal.ApplyDefaults(h.DealContext)

	var score float64
	if a.Industry == b.Industry {
		score += wIndustry
	}
	if a.Segment == b.Segment {
		score += wSegment
	}
	if a.ProductCategory == b.ProductCategory {
		score += wCategory
	}
	if a.Registration == b.Registration {
		score += wRegistration
	}
	if a.ValueAdd == b.ValueAdd {
		score += wValueAdd
	}
	if a.Complexity == b.Complexity {
		score += wComplexity
	}
	if a.Relationship == b.Relationship {
		score += wRelationship
	}
	if a.TechSophistication == b.TechSophistication {
		score += wTechSoph
	}

	if a.CompetitorCount == b.CompetitorCount {
		score += wCompetitors
	} else if a.CompetitorCount >= 2 && b.CompetitorCount >= 2 {
		score += wCompetitive
	}
	score += wJaccard * competitorOverlap(a.Competitors, b.Competitors)

	for _, pair := range [][2]int{
		{a.PriceSensitivity, b.PriceSensitivity},
		{a.Loyalty, b.Loyalty},
		{a.Urgency, b.Urgency},
		{a.Differentiation, b.Differentiation},
	} {
		if pair[0] == pair[1] {
			score += wRating
		}
	}

	if costBand(a.OEMCost) == costBand(b.OEMCost) {
		score += wCostBand
	}
	score += bomLineProximity(a.BOMLineCount, b.BOMLineCount)
	score += bomMarginProximity(a.BOMAvgMargin, b.BOMAvgMargin)

	if a.Vendor != nil && b.Vendor != nil && strings.EqualFold(a.Vendor.Name, b.Vendor.Name) {
		score += wVendor
	}
	if a.ServicesAttached == b.ServicesAttached {
		score += wServices
	}
	if a.QuarterEnd == b.QuarterEnd {
		score += wQuarterEnd
	}
	return score
}

func competitorOverlap(a, b []deal.CompetitorProfile) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[strings.ToLower(c.Name)] = true
	}
	union := len(set)
	inter := 0
	for _, c := range b {
		name := strings.ToLower(c.Name)
		if set[name] {
			inter++
			set[name] = false // count each shared name once
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func costBand(cost float64) int {
	switch {
	case cost < 10_000:
		return 0
	case cost < 50_000:
		return 1
	case cost < 250_000:
		return 2
	case cost < 1_000_000:
		return 3
	default:
		return 4
	}
}

func bomLineProximity(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 2:
		return wBOMLines
	case diff <= 5:
		return wBOMLines / 2
	default:
		return 0
	}
}

func bomMarginProximity(a, b margins.Fraction) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	diff := float64(a - b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 0.02:
		return wBOMMargin
	case diff <= 0.05:
		return wBOMMargin / 2
	default:
		return 0
	}
}

// TimeDecay returns the recency weight for a close date: a step function
// from 1.0 inside a year down to a 0.30 floor at six years out. A zero close
// date is neutral at 0.5.
func TimeDecay(closeDate, now time.Time) float64 {
	if closeDate.IsZero() {
		return 0.5
	}
	age := now.Sub(closeDate)
	const year = 365 * 24 * time.Hour
	switch {
	case age <= year:
		return 1.0
	case age <= 2*year:
		return 0.85
	case age <= 3*year:
		return 0.70
	case age < 6*year:
		return 0.50
	default:
		return 0.30
	}
}

// Scored pairs a historical deal with its similarity score.
type Scored struct {
	Deal  deal.HistoricalDeal
	Score float64
}

// Summary is the neighbor evidence handed to the rule-based scorer.
type Summary struct {
	Neighbors         []Scored
	WeightedAvgMargin margins.Fraction // similarity-weighted achieved margin
	LostOnPrice       int              // lost neighbors whose loss reason mentions price
	HighMarginWins    int              // won neighbors above a 20% margin
	Count             int
}

// Options controls neighbor selection.
type Options struct {
	// Now enables recency weighting: each similarity is multiplied by the
	// TimeDecay of the deal's close date. Zero disables decay.
	Now time.Time
}

// TopK scores every deal, keeps the k most similar, and summarizes their
// outcomes.
func TopK(input deal.DealContext, deals []deal.HistoricalDeal, k int, opts Options) Summary {
	scored := make([]Scored, 0, len(deals))
	for _, h := range deals {
		s := Similarity(input, h)
		if !opts.Now.IsZero() {
			s *= TimeDecay(h.CloseDate, opts.Now)
		}
		scored = append(scored, Scored{Deal: h, Score: s})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}

	summary := Summary{Neighbors: scored, Count: len(scored)}
	var weightSum, marginSum float64
	for _, n := range scored {
		weightSum += n.Score
		marginSum += n.Score * float64(n.Deal.AchievedMargin)
		if n.Deal.Status == deal.StatusLost && strings.Contains(strings.ToLower(n.Deal.LossReason), "price") {
			summary.LostOnPrice++
		}
		if n.Deal.Won() && n.Deal.AchievedMargin > 0.20 {
			summary.HighMarginWins++
		}
	}
	if weightSum > 0 {
		summary.WeightedAvgMargin = margins.Fraction(marginSum / weightSum)
	}
	return summary
}
