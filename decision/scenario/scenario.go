// Package scenario diffs a seller's planned margin against the engine's
// recommended one in terms of gross profit and win odds.
package scenario

import (
	"github.com/shopspring/decimal"

	"deal-margin/decision/deal"
	"deal-margin/decision/winprob"
	"deal-margin/pkg/margins"
)

// Comparison is the planned-versus-recommended diff for one deal.
type Comparison struct {
	PlannedMarginPct     margins.Percent `json:"planned_margin_pct"`
	RecommendedMarginPct margins.Percent `json:"recommended_margin_pct"`

	PlannedPrice     decimal.Decimal `json:"planned_price"`
	RecommendedPrice decimal.Decimal `json:"recommended_price"`

	PlannedGrossProfit     decimal.Decimal `json:"planned_gross_profit"`
	RecommendedGrossProfit decimal.Decimal `json:"recommended_gross_profit"`
	GrossProfitDelta       decimal.Decimal `json:"gross_profit_delta"`

	PlannedWinProb     float64 `json:"planned_win_prob"`     // 0-1
	RecommendedWinProb float64 `json:"recommended_win_prob"` // 0-1
	WinProbDelta       float64 `json:"win_prob_delta"`
}

// Compare evaluates both margins against the same deal.
func Compare(d deal.DealContext, plannedPct, recommendedPct margins.Percent) Comparison {
	d = deal.ApplyDefaults(d)

	plannedGP := margins.GrossProfit(d.OEMCost, plannedPct.Fraction())
	recommendedGP := margins.GrossProfit(d.OEMCost, recommendedPct.Fraction())

	plannedWin := float64(winprob.Estimate(winprob.FromDeal(d, plannedPct))) / 100
	recommendedWin := float64(winprob.Estimate(winprob.FromDeal(d, recommendedPct))) / 100

	return Comparison{
		PlannedMarginPct:       plannedPct,
		RecommendedMarginPct:   recommendedPct,
		PlannedPrice:           decimal.NewFromFloat(margins.Price(d.OEMCost, plannedPct.Fraction())).Round(2),
		RecommendedPrice:       decimal.NewFromFloat(margins.Price(d.OEMCost, recommendedPct.Fraction())).Round(2),
		PlannedGrossProfit:     decimal.NewFromFloat(plannedGP).Round(2),
		RecommendedGrossProfit: decimal.NewFromFloat(recommendedGP).Round(2),
		GrossProfitDelta:       decimal.NewFromFloat(recommendedGP - plannedGP).Round(2),
		PlannedWinProb:         plannedWin,
		RecommendedWinProb:     recommendedWin,
		WinProbDelta:           recommendedWin - plannedWin,
	}
}
