package logreg

import (
	"fmt"
	"math"
	"sort"
)

// CalibrationBin is one equal-width bucket of predicted probability with the
// observed win rate inside it.
type CalibrationBin struct {
	LowerBound    float64 `json:"lower_bound"`
	UpperBound    float64 `json:"upper_bound"`
	MeanPredicted float64 `json:"mean_predicted"`
	MeanActual    float64 `json:"mean_actual"`
	Count         int     `json:"count"`
}

// Metrics summarizes a model's fit against a labeled set.
type Metrics struct {
	LogLoss     float64          `json:"log_loss"`
	Accuracy    float64          `json:"accuracy"`
	AUC         float64          `json:"auc"`
	Calibration []CalibrationBin `json:"calibration"`
	Rows        int              `json:"rows"`
}

// Evaluate scores the model against X/y: log-loss, accuracy at the 0.5
// threshold, rank-based AUC, and 10-bin equal-width calibration.
func (m *Model) Evaluate(X [][]float64, y []float64) (Metrics, error) {
	if len(X) != len(y) {
		return Metrics{}, fmt.Errorf("logreg: %d rows but %d labels", len(X), len(y))
	}
	preds := make([]float64, len(X))
	for i, row := range X {
		p, err := m.Predict(row)
		if err != nil {
			return Metrics{}, err
		}
		preds[i] = p
	}

	var loss float64
	correct := 0
	for i, p := range preds {
		cp := clipProb(p)
		loss += -(y[i]*math.Log(cp) + (1-y[i])*math.Log(1-cp))
		if (p >= 0.5) == (y[i] >= 0.5) {
			correct++
		}
	}
	metrics := Metrics{
		AUC:         AUC(preds, y),
		Calibration: calibration(preds, y),
		Rows:        len(X),
	}
	if len(X) > 0 {
		metrics.LogLoss = loss / float64(len(X))
		metrics.Accuracy = float64(correct) / float64(len(X))
	}
	return metrics, nil
}

// AUC computes the area under the ROC curve by trapezoidal integration over
// the score-ranked samples. With no positives or no negatives the ROC is
// degenerate and 0.5 is returned.
func AUC(preds, y []float64) float64 {
	type scored struct {
		p     float64
		label float64
	}
	var pos, neg int
	rows := make([]scored, len(preds))
	for i, p := range preds {
		rows[i] = scored{p: p, label: y[i]}
		if y[i] >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].p > rows[j].p })

	var area, tp, fp float64
	prevTPR, prevFPR := 0.0, 0.0
	i := 0
	for i < len(rows) {
		// Advance through ties as one ROC step so equal scores do not
		// fabricate rank order.
		j := i
		for j < len(rows) && rows[j].p == rows[i].p {
			if rows[j].label >= 0.5 {
				tp++
			} else {
				fp++
			}
			j++
		}
		tpr := tp / float64(pos)
		fpr := fp / float64(neg)
		area += (fpr - prevFPR) * (tpr + prevTPR) / 2
		prevTPR, prevFPR = tpr, fpr
		i = j
	}
	return area
}

func calibration(preds, y []float64) []CalibrationBin {
	const bins = 10
	out := make([]CalibrationBin, bins)
	sums := make([]float64, bins)
	actuals := make([]float64, bins)
	for b := 0; b < bins; b++ {
		out[b].LowerBound = float64(b) / bins
		out[b].UpperBound = float64(b+1) / bins
	}
	for i, p := range preds {
		b := int(p * bins)
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		out[b].Count++
		sums[b] += p
		actuals[b] += y[i]
	}
	for b := 0; b < bins; b++ {
		if out[b].Count > 0 {
			out[b].MeanPredicted = sums[b] / float64(out[b].Count)
			out[b].MeanActual = actuals[b] / float64(out[b].Count)
		}
	}
	return out
}
