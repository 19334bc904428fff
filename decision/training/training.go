// Package training orchestrates model training for one customer: it pulls
// closed deals, augments them with counterfactual samples, fits the
// regression engine, and persists the resulting model package wholesale.
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deal-margin/decision/benchmark"
	"deal-margin/decision/deal"
	"deal-margin/decision/feature"
	"deal-margin/decision/logreg"
	"deal-margin/pkg/margins"
)

// Minimum closed-deal counts before a customer model is trainable.
const (
	MinTotalDeals = 100
	MinWonDeals   = 20
	MinLostDeals  = 20
)

// Synthetic margins are clamped to this band.
const (
	minSyntheticMargin = margins.Fraction(0.01)
	maxSyntheticMargin = margins.Fraction(0.55)
)

// PromotionAUC is the evaluation threshold above which a customer may be
// promoted to the model-backed recommendation phase.
const PromotionAUC = 0.60

// Package is the trained artifact consumed read-only by inference. A
// training run replaces a customer's package wholesale; there is no partial
// update.
type Package struct {
	ID            uuid.UUID           `json:"id"`
	CustomerID    string              `json:"customer_id"`
	Model         logreg.Model        `json:"model"`
	NormStats     feature.NormStats   `json:"norm_stats"`
	Metrics       logreg.Metrics      `json:"metrics"`
	Importance    []logreg.Importance `json:"importance"`
	TrainingDeals int                 `json:"training_deals"` // real deals only
	Version       string              `json:"version"`
	TrainedAt     time.Time           `json:"trained_at"`
}

// Shortfall reports why a customer cannot be trained yet. It is a normal
// outcome, not an error.
type Shortfall struct {
	TotalDeals    int `json:"total_deals"`
	WonDeals      int `json:"won_deals"`
	LostDeals     int `json:"lost_deals"`
	RequiredTotal int `json:"required_total"`
	RequiredWon   int `json:"required_won"`
	RequiredLost  int `json:"required_lost"`
	MissingDeals  int `json:"missing_deals"`
}

// Result is the outcome of one training run: exactly one of Package or
// Shortfall is set.
type Result struct {
	Package   *Package   `json:"package,omitempty"`
	Shortfall *Shortfall `json:"shortfall,omitempty"`
	Promoted  bool       `json:"promoted"`
	Synthetic int        `json:"synthetic_samples"`
}

// DealSource supplies a customer's closed deals.
type DealSource interface {
	ListClosedDeals(ctx context.Context, customerID string) ([]deal.HistoricalDeal, error)
}

// PackageStore persists trained packages. Save must replace any previous
// package for the customer atomically.
type PackageStore interface {
	SavePackage(ctx context.Context, pkg *Package) error
}

// Pipeline is the training orchestrator.
type Pipeline struct {
	deals    DealSource
	packages PackageStore
	opts     logreg.Options
}

// NewPipeline wires a pipeline to its stores. opts tunes the regression
// engine; a zero value uses the engine defaults.
func NewPipeline(deals DealSource, packages PackageStore, opts logreg.Options) *Pipeline {
	return &Pipeline{deals: deals, packages: packages, opts: opts}
}

// TrainCustomerModel runs the full pipeline for one customer. Too little
// history yields a Shortfall result; errors are reserved for store and
// engine failures.
func (p *Pipeline) TrainCustomerModel(ctx context.Context, customerID string) (*Result, error) {
	closed, err := p.deals.ListClosedDeals(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("training: list closed deals: %w", err)
	}

	won, lost := 0, 0
	for _, h := range closed {
		if h.Won() {
			won++
		} else {
			lost++
		}
	}
	if short := shortfall(len(closed), won, lost); short != nil {
		return &Result{Shortfall: short}, nil
	}

	augmented := Augment(closed)

	// Normalization statistics cover the combined real+synthetic set; the
	// model sees synthetic rows at half weight.
	combined := make([]deal.HistoricalDeal, 0, len(closed)+len(augmented))
	combined = append(combined, closed...)
	for _, s := range augmented {
		combined = append(combined, s.Deal)
	}
	stats := feature.ComputeNormStats(combined)

	X := make([][]float64, 0, len(combined))
	y := make([]float64, 0, len(combined))
	weights := make([]float64, 0, len(combined))
	for _, h := range closed {
		X = append(X, feature.HistoricalVector(h, stats, feature.Overrides{}))
		y = append(y, label(h.Status))
		weights = append(weights, 1.0)
	}
	for _, s := range augmented {
		X = append(X, feature.HistoricalVector(s.Deal, stats, feature.Overrides{}))
		y = append(y, label(s.Deal.Status))
		weights = append(weights, 0.5)
	}

	model, err := logreg.Train(X, y, weights, p.opts)
	if err != nil {
		return nil, fmt.Errorf("training: fit model: %w", err)
	}

	// Honest holdout semantics: metrics come from real deals only, never
	// inflated by the synthetic rows.
	realX := X[:len(closed)]
	realY := y[:len(closed)]
	metrics, err := model.Evaluate(realX, realY)
	if err != nil {
		return nil, fmt.Errorf("training: evaluate model: %w", err)
	}

	pkg := &Package{
		ID:            uuid.New(),
		CustomerID:    customerID,
		Model:         *model,
		NormStats:     stats,
		Metrics:       metrics,
		Importance:    model.FeatureImportance(feature.Names()),
		TrainingDeals: len(closed),
		Version:       time.Now().UTC().Format("20060102T150405Z"),
		TrainedAt:     time.Now().UTC(),
	}
	if p.packages != nil {
		if err := p.packages.SavePackage(ctx, pkg); err != nil {
			return nil, fmt.Errorf("training: save package: %w", err)
		}
	}

	return &Result{
		Package:   pkg,
		Promoted:  metrics.AUC >= PromotionAUC && len(closed) >= MinTotalDeals,
		Synthetic: len(augmented),
	}, nil
}

func shortfall(total, won, lost int) *Shortfall {
	if total >= MinTotalDeals && won >= MinWonDeals && lost >= MinLostDeals {
		return nil
	}
	missing := 0
	if d := MinTotalDeals - total; d > missing {
		missing = d
	}
	if d := MinWonDeals - won; d > missing {
		missing = d
	}
	if d := MinLostDeals - lost; d > missing {
		missing = d
	}
	return &Shortfall{
		TotalDeals:    total,
		WonDeals:      won,
		LostDeals:     lost,
		RequiredTotal: MinTotalDeals,
		RequiredWon:   MinWonDeals,
		RequiredLost:  MinLostDeals,
		MissingDeals:  missing,
	}
}

func label(s deal.Status) float64 {
	if s == deal.StatusWon {
		return 1
	}
	return 0
}

// SyntheticSample is one counterfactual generated from a real deal.
type SyntheticSample struct {
	Deal   deal.HistoricalDeal
	Source deal.Status // outcome of the real deal it was derived from
}

// Augment generates counterfactual samples: every won deal also appears as a
// loss at a higher margin, every lost deal as a win at a lower one. Shift
// magnitude follows the benchmark interquartile range for the deal's segment
// and OEM.
func Augment(closed []deal.HistoricalDeal) []SyntheticSample {
	out := make([]SyntheticSample, 0, len(closed))
	for _, h := range closed {
		iqr := benchmark.IQR(h.Segment, h.Vendor)
		wonShift := 0.75 * float64(iqr)
		lostShift := 0.5 * wonShift

		synthetic := h
		if h.Won() {
			synthetic.Status = deal.StatusLost
			synthetic.LossReason = ""
			synthetic.AchievedMargin = clampSynthetic(h.AchievedMargin + margins.Fraction(wonShift))
		} else {
			synthetic.Status = deal.StatusWon
			synthetic.LossReason = ""
			synthetic.AchievedMargin = clampSynthetic(h.AchievedMargin - margins.Fraction(lostShift))
		}
		out = append(out, SyntheticSample{Deal: synthetic, Source: h.Status})
	}
	return out
}

func clampSynthetic(m margins.Fraction) margins.Fraction {
	return m.Clamp(minSyntheticMargin, maxSyntheticMargin)
}
