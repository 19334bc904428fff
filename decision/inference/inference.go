// Package inference consumes a trained model package to choose operating
// margins for a live deal. It sweeps candidate margins through the
// regression model and reports the expected-gross-profit-maximizing choice
// alongside conservative and aggressive alternatives.
package inference

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"deal-margin/decision/deal"
	"deal-margin/decision/feature"
	"deal-margin/decision/training"
	"deal-margin/pkg/confidence"
	"deal-margin/pkg/margins"
)

// Sweep bounds: 5% to 35% in half-point steps, 61 candidates.
const (
	SweepStartPct = margins.Percent(5)
	SweepEndPct   = margins.Percent(35)
	SweepStepPct  = margins.Percent(0.5)
)

// Thresholds for the conservative and aggressive operating points.
const (
	conservativeWinProb = 0.70
	aggressiveWinProb   = 0.45
)

// Point is one candidate margin from the sweep.
type Point struct {
	MarginPct  margins.Percent `json:"margin_pct"`
	WinProb    float64         `json:"win_prob"`
	ExpectedGP float64         `json:"expected_gp"`
}

// Result reports the three operating points plus explanation material.
type Result struct {
	OptimalMarginPct      margins.Percent `json:"optimal_margin_pct"`
	ConservativeMarginPct margins.Percent `json:"conservative_margin_pct"`
	AggressiveMarginPct   margins.Percent `json:"aggressive_margin_pct"`

	OptimalWinProb      float64 `json:"optimal_win_prob"`
	ConservativeWinProb float64 `json:"conservative_win_prob"`
	AggressiveWinProb   float64 `json:"aggressive_win_prob"`

	ExpectedGrossProfit decimal.Decimal `json:"expected_gross_profit"`
	SuggestedPrice      decimal.Decimal `json:"suggested_price"`
	Confidence          float64         `json:"confidence"`
	KeyDrivers          []string        `json:"key_drivers"`
	Sweep               []Point         `json:"sweep"`
}

// RecommendMargin sweeps candidate margins for a deal through a trained
// package and picks the optimal, conservative, and aggressive points.
func RecommendMargin(d deal.DealContext, pkg *training.Package) (*Result, error) {
	if pkg == nil {
		return nil, fmt.Errorf("inference: nil model package")
	}
	d = deal.ApplyDefaults(d)

	var sweep []Point
	for pct := SweepStartPct; pct <= SweepEndPct+SweepStepPct/2; pct += SweepStepPct {
		m := pct.Fraction()
		ov := feature.Overrides{ProposedMargin: &m}
		vec := feature.Vector(d, pkg.NormStats, ov)
		pWin, err := pkg.Model.Predict(vec)
		if err != nil {
			return nil, fmt.Errorf("inference: predict at %.1f%%: %w", float64(pct), err)
		}
		sweep = append(sweep, Point{
			MarginPct:  pct,
			WinProb:    pWin,
			ExpectedGP: margins.GrossProfit(d.OEMCost, m) * pWin,
		})
	}

	optimal := sweep[0]
	for _, pt := range sweep[1:] {
		if pt.ExpectedGP > optimal.ExpectedGP {
			optimal = pt
		}
	}

	conservative, ok := highestMarginAbove(sweep, conservativeWinProb)
	if !ok {
		// Nothing clears the bar: take the safest point available.
		conservative = highestWinProb(sweep)
	}
	aggressive, ok := highestMarginAbove(sweep, aggressiveWinProb)
	if !ok {
		aggressive = optimal
	}

	conf := confidence.Clamp(
		(pkg.Metrics.AUC-0.5)*2*math.Min(1, float64(pkg.TrainingDeals)/500),
		0.1, confidence.Max,
	)

	return &Result{
		OptimalMarginPct:      optimal.MarginPct,
		ConservativeMarginPct: conservative.MarginPct,
		AggressiveMarginPct:   aggressive.MarginPct,
		OptimalWinProb:        optimal.WinProb,
		ConservativeWinProb:   conservative.WinProb,
		AggressiveWinProb:     aggressive.WinProb,
		ExpectedGrossProfit:   decimal.NewFromFloat(optimal.ExpectedGP).Round(2),
		SuggestedPrice:        decimal.NewFromFloat(margins.Price(d.OEMCost, optimal.MarginPct.Fraction())).Round(2),
		Confidence:            conf,
		KeyDrivers:            keyDrivers(d, pkg, optimal.MarginPct, 5),
		Sweep:                 sweep,
	}, nil
}

func highestMarginAbove(sweep []Point, threshold float64) (Point, bool) {
	var best Point
	found := false
	for _, pt := range sweep {
		if pt.WinProb >= threshold && (!found || pt.MarginPct > best.MarginPct) {
			best = pt
			found = true
		}
	}
	return best, found
}

func highestWinProb(sweep []Point) Point {
	best := sweep[0]
	for _, pt := range sweep[1:] {
		if pt.WinProb > best.WinProb {
			best = pt
		}
	}
	return best
}
