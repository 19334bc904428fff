// Package logreg implements a from-scratch binary logistic regression
// trained with mini-batch gradient descent. It has no external numeric
// dependencies; determinism comes from a seedable shuffle.
package logreg

import (
	"fmt"
	"math"
	"math/rand"
)

// Options configures a training run. Zero values fall to the defaults below.
type Options struct {
	LearningRate       float64 // default 0.05
	Epochs             int     // default 200
	BatchSize          int     // default 32
	L2                 float64 // lambda, default 0 (no regularization)
	ValidationFraction float64 // default 0.2
	Patience           int     // non-improving epochs before early stop, default 10
	Seed               int64   // shuffle seed, 0 is a valid fixed seed
}

func (o Options) withDefaults() Options {
	if o.LearningRate == 0 {
		o.LearningRate = 0.05
	}
	if o.Epochs == 0 {
		o.Epochs = 200
	}
	if o.BatchSize == 0 {
		o.BatchSize = 32
	}
	if o.ValidationFraction == 0 {
		o.ValidationFraction = 0.2
	}
	if o.Patience == 0 {
		o.Patience = 10
	}
	return o
}

// Model is a trained classifier plus training diagnostics.
type Model struct {
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	FeatureCount int       `json:"feature_count"`
	EpochsRun    int       `json:"epochs_run"`
	BestValLoss  float64   `json:"best_val_loss"`
	TrainingRows int       `json:"training_rows"`
	StoppedEarly bool      `json:"stopped_early"`
}

const (
	logitClip = 500.0
	probEps   = 1e-15
)

// Sigmoid computes 1/(1+e^-z) with the logit clipped to ±500 so the exp
// never overflows.
func Sigmoid(z float64) float64 {
	if z > logitClip {
		z = logitClip
	} else if z < -logitClip {
		z = -logitClip
	}
	return 1 / (1 + math.Exp(-z))
}

func clipProb(p float64) float64 {
	if p < probEps {
		return probEps
	}
	if p > 1-probEps {
		return 1 - probEps
	}
	return p
}

// Train fits a model on rows X with 0/1 labels y. sampleWeights may be nil
// for uniform weighting; otherwise it must match len(X).
func Train(X [][]float64, y []float64, sampleWeights []float64, opts Options) (*Model, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("logreg: empty training set")
	}
	if len(y) != len(X) {
		return nil, fmt.Errorf("logreg: %d rows but %d labels", len(X), len(y))
	}
	if sampleWeights != nil && len(sampleWeights) != len(X) {
		return nil, fmt.Errorf("logreg: %d rows but %d sample weights", len(X), len(sampleWeights))
	}
	opts = opts.withDefaults()

	featureCount := len(X[0])
	for i, row := range X {
		if len(row) != featureCount {
			return nil, fmt.Errorf("logreg: row %d has %d features, expected %d", i, len(row), featureCount)
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	indices := rng.Perm(len(X))

	valCount := int(float64(len(X)) * opts.ValidationFraction)
	if valCount >= len(X) {
		valCount = len(X) - 1
	}
	valIdx := indices[:valCount]
	trainIdx := indices[valCount:]

	weightOf := func(i int) float64 {
		if sampleWeights == nil {
			return 1
		}
		return sampleWeights[i]
	}

	m := &Model{
		Weights:      make([]float64, featureCount),
		FeatureCount: featureCount,
		TrainingRows: len(trainIdx),
	}

	bestWeights := make([]float64, featureCount)
	bestBias := 0.0
	bestLoss := math.Inf(1)
	sinceImprove := 0

	grad := make([]float64, featureCount)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(trainIdx), func(a, b int) {
			trainIdx[a], trainIdx[b] = trainIdx[b], trainIdx[a]
		})

		for start := 0; start < len(trainIdx); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(trainIdx) {
				end = len(trainIdx)
			}
			batch := trainIdx[start:end]

			for f := range grad {
				grad[f] = 0
			}
			gradBias := 0.0
			var batchWeight float64

			for _, i := range batch {
				z := m.Bias
				for f, x := range X[i] {
					z += m.Weights[f] * x
				}
				residual := (Sigmoid(z) - y[i]) * weightOf(i)
				for f, x := range X[i] {
					grad[f] += residual * x
				}
				gradBias += residual
				batchWeight += weightOf(i)
			}
			if batchWeight == 0 {
				continue
			}

			for f := range m.Weights {
				g := grad[f]/batchWeight + opts.L2*m.Weights[f]
				m.Weights[f] -= opts.LearningRate * g
			}
			m.Bias -= opts.LearningRate * (gradBias / batchWeight)
		}
		m.EpochsRun = epoch + 1

		valLoss := m.weightedLoss(X, y, sampleWeights, valIdx)
		if len(valIdx) == 0 {
			valLoss = m.weightedLoss(X, y, sampleWeights, trainIdx)
		}
		if valLoss < bestLoss {
			bestLoss = valLoss
			copy(bestWeights, m.Weights)
			bestBias = m.Bias
			sinceImprove = 0
		} else {
			sinceImprove++
			if sinceImprove >= opts.Patience {
				m.StoppedEarly = true
				break
			}
		}
	}

	copy(m.Weights, bestWeights)
	m.Bias = bestBias
	m.BestValLoss = bestLoss
	return m, nil
}

func (m *Model) weightedLoss(X [][]float64, y, sampleWeights []float64, idx []int) float64 {
	if len(idx) == 0 {
		return math.Inf(1)
	}
	var loss, total float64
	for _, i := range idx {
		p := clipProb(m.predictRow(X[i]))
		w := 1.0
		if sampleWeights != nil {
			w = sampleWeights[i]
		}
		loss += -w * (y[i]*math.Log(p) + (1-y[i])*math.Log(1-p))
		total += w
	}
	if total == 0 {
		return math.Inf(1)
	}
	return loss / total
}

func (m *Model) predictRow(x []float64) float64 {
	z := m.Bias
	for f, v := range x {
		z += m.Weights[f] * v
	}
	return Sigmoid(z)
}

// Predict returns the win probability for one feature vector. A vector whose
// length disagrees with the model's feature count is a malformed input.
func (m *Model) Predict(x []float64) (float64, error) {
	if len(x) != m.FeatureCount {
		return 0, fmt.Errorf("logreg: vector has %d features, model expects %d", len(x), m.FeatureCount)
	}
	return m.predictRow(x), nil
}

// Importance is one feature's rank by absolute weight.
type Importance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// FeatureImportance ranks features by absolute weight, descending. Names
// beyond the model's feature count are ignored; missing names fall back to a
// positional label.
func (m *Model) FeatureImportance(names []string) []Importance {
	out := make([]Importance, m.FeatureCount)
	for f := 0; f < m.FeatureCount; f++ {
		name := fmt.Sprintf("feature_%d", f)
		if f < len(names) {
			name = names[f]
		}
		out[f] = Importance{Feature: name, Weight: m.Weights[f]}
	}
	sortByAbsWeight(out)
	return out
}

func sortByAbsWeight(imps []Importance) {
	// Insertion sort keeps ties in declaration order for stable explanations.
	for i := 1; i < len(imps); i++ {
		for j := i; j > 0 && math.Abs(imps[j].Weight) > math.Abs(imps[j-1].Weight); j-- {
			imps[j], imps[j-1] = imps[j-1], imps[j]
		}
	}
}
