// Package recommend orchestrates a full margin recommendation for one deal:
// neighbor evidence, an optional external model-service call, local model
// inference when a trained package exists, and the rule-based scorer as the
// path of last resort. External failures degrade, they never propagate.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"deal-margin/decision/deal"
	"deal-margin/decision/inference"
	"deal-margin/decision/neighbor"
	"deal-margin/decision/rules"
	"deal-margin/decision/training"
	"deal-margin/pkg/margins"
)

// DefaultModelServiceTimeout bounds the optional external model call. The
// call gets one attempt; on any failure the rule-based path answers instead.
const DefaultModelServiceTimeout = 2 * time.Second

// DefaultNeighborK is how many similar closed deals feed the blend.
const DefaultNeighborK = 20

// Config wires the engine to its optional external collaborators. Empty URLs
// disable the corresponding call, which is treated the same as a failure:
// fall back and keep going.
type Config struct {
	ModelServiceURL     string
	ModelServiceTimeout time.Duration

	NarrativeURL    string
	NarrativeAPIKey string
	NarrativeTTL    time.Duration

	NeighborK int
}

// Recommendation is the orchestrator's answer: one operating margin plus the
// evidence behind it. Conservative and aggressive points are present only on
// the model-backed path.
type Recommendation struct {
	SuggestedMarginPct margins.Percent  `json:"suggested_margin_pct"`
	SuggestedPrice     decimal.Decimal  `json:"suggested_price"`
	WinProbability     float64          `json:"win_probability"` // 0-1
	Confidence         float64          `json:"confidence"`
	Method             string           `json:"method"` // "model-service" | "model" | "rules" | "rules+neighbors"
	PolicyFloor        margins.Fraction `json:"policy_floor"`

	Drivers    []rules.Driver `json:"drivers,omitempty"`
	KeyDrivers []string       `json:"key_drivers,omitempty"`

	ConservativeMarginPct margins.Percent `json:"conservative_margin_pct,omitempty"`
	AggressiveMarginPct   margins.Percent `json:"aggressive_margin_pct,omitempty"`

	NeighborCount int    `json:"neighbor_count"`
	Narrative     string `json:"narrative,omitempty"`
}

// Engine computes recommendations. Construct it once and share it; it owns
// its HTTP client and narrative cache.
type Engine struct {
	cfg       Config
	client    *http.Client
	narrative *narrativeClient
	now       func() time.Time
}

// NewEngine builds an engine from config, filling in defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.ModelServiceTimeout <= 0 {
		cfg.ModelServiceTimeout = DefaultModelServiceTimeout
	}
	if cfg.NeighborK <= 0 {
		cfg.NeighborK = DefaultNeighborK
	}
	e := &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.ModelServiceTimeout},
		now:    time.Now,
	}
	if cfg.NarrativeURL != "" {
		e.narrative = newNarrativeClient(cfg.NarrativeURL, cfg.NarrativeAPIKey, cfg.NarrativeTTL)
	}
	return e
}

// WithClock overrides the engine's clock for deterministic recency decay.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ComputeRecommendation answers for one deal. history supplies neighbor
// evidence; pkg, when non-nil, enables local model inference. The worst case
// is always the rule-based answer, never an error from an external call.
func (e *Engine) ComputeRecommendation(ctx context.Context, input deal.DealContext, history []deal.HistoricalDeal, pkg *training.Package) *Recommendation {
	d := deal.ApplyDefaults(input)
	neighbors := neighbor.TopK(d, history, e.cfg.NeighborK, neighbor.Options{Now: e.now()})

	rec := e.modelServiceRecommendation(ctx, d)
	if rec == nil && pkg != nil {
		rec = localInference(d, pkg)
	}
	if rec == nil {
		rec = fromRules(rules.Recommend(d, &neighbors))
	}
	rec.NeighborCount = neighbors.Count
	rec.PolicyFloor = rules.PolicyFloor(d)

	if e.narrative != nil {
		if text, err := e.narrative.Generate(ctx, d, rec); err == nil {
			rec.Narrative = text
		}
	}
	return rec
}

// modelServiceResponse is the wire shape the external model service returns.
type modelServiceResponse struct {
	SuggestedMarginPct margins.Percent `json:"suggested_margin_pct"`
	WinProbability     float64         `json:"win_probability"`
	Confidence         float64         `json:"confidence"`
}

// modelServiceRecommendation issues the single bounded external call. Any
// failure, timeout, or non-2xx status returns nil and the caller falls back.
func (e *Engine) modelServiceRecommendation(ctx context.Context, d deal.DealContext) *Recommendation {
	if e.cfg.ModelServiceURL == "" {
		return nil
	}
	body, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ModelServiceTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ModelServiceURL, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var out modelServiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	if out.SuggestedMarginPct <= 0 {
		return nil
	}
	m := out.SuggestedMarginPct.Fraction()
	return &Recommendation{
		SuggestedMarginPct: out.SuggestedMarginPct,
		SuggestedPrice:     decimal.NewFromFloat(margins.Price(d.OEMCost, m)).Round(2),
		WinProbability:     out.WinProbability,
		Confidence:         out.Confidence,
		Method:             "model-service",
	}
}

func localInference(d deal.DealContext, pkg *training.Package) *Recommendation {
	res, err := inference.RecommendMargin(d, pkg)
	if err != nil {
		return nil
	}
	return &Recommendation{
		SuggestedMarginPct:    res.OptimalMarginPct,
		SuggestedPrice:        res.SuggestedPrice,
		WinProbability:        res.OptimalWinProb,
		Confidence:            res.Confidence,
		Method:                "model",
		KeyDrivers:            res.KeyDrivers,
		ConservativeMarginPct: res.ConservativeMarginPct,
		AggressiveMarginPct:   res.AggressiveMarginPct,
	}
}

func fromRules(r rules.Result) *Recommendation {
	return &Recommendation{
		SuggestedMarginPct: r.SuggestedMarginPct,
		SuggestedPrice:     r.SuggestedPrice,
		WinProbability:     r.WinProbability,
		Confidence:         r.Confidence,
		Method:             r.Method,
		Drivers:            r.Drivers,
	}
}
