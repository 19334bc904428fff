package logreg

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// separableSet builds a linearly separable two-feature set: label is 1 when
// x0+x1 is clearly positive, 0 when clearly negative.
func separableSet(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		if i%2 == 0 {
			X[i] = []float64{1 + rng.Float64(), 1 + rng.Float64()}
			y[i] = 1
		} else {
			X[i] = []float64{-1 - rng.Float64(), -1 - rng.Float64()}
			y[i] = 0
		}
	}
	return X, y
}

func TestTrainSeparableData(t *testing.T) {
	X, y := separableSet(200, 1)
	model, err := Train(X, y, nil, Options{Seed: 7})
	require.NoError(t, err)

	metrics, err := model.Evaluate(X, y)
	require.NoError(t, err)
	require.Greater(t, metrics.AUC, 0.95)
	require.Greater(t, metrics.Accuracy, 0.9)
}

func TestTrainRandomLabels(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X := make([][]float64, 300)
	y := make([]float64, 300)
	for i := range X {
		X[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		y[i] = float64(rng.Intn(2))
	}

	model, err := Train(X, y, nil, Options{Seed: 7})
	require.NoError(t, err)

	metrics, err := model.Evaluate(X, y)
	require.NoError(t, err)
	require.Greater(t, metrics.AUC, 0.35)
	require.Less(t, metrics.AUC, 0.65)
}

func TestModelRoundTripBitIdentical(t *testing.T) {
	X, y := separableSet(100, 5)
	model, err := Train(X, y, nil, Options{Seed: 11})
	require.NoError(t, err)

	data, err := json.Marshal(model)
	require.NoError(t, err)
	var restored Model
	require.NoError(t, json.Unmarshal(data, &restored))

	for _, row := range X {
		want, err := model.Predict(row)
		require.NoError(t, err)
		got, err := restored.Predict(row)
		require.NoError(t, err)
		require.Equal(t, want, got) // bit-identical, not approximate
	}
}

func TestL2ShrinksWeights(t *testing.T) {
	X, y := separableSet(200, 9)

	plain, err := Train(X, y, nil, Options{Seed: 13})
	require.NoError(t, err)
	regularized, err := Train(X, y, nil, Options{Seed: 13, L2: 0.5})
	require.NoError(t, err)

	require.Less(t, maxAbs(regularized.Weights), maxAbs(plain.Weights))
}

func maxAbs(ws []float64) float64 {
	var m float64
	for _, w := range ws {
		if a := math.Abs(w); a > m {
			m = a
		}
	}
	return m
}

func TestSampleWeightsAccepted(t *testing.T) {
	X, y := separableSet(100, 21)
	weights := make([]float64, len(X))
	for i := range weights {
		weights[i] = 1.0
		if i%3 == 0 {
			weights[i] = 0.5
		}
	}
	model, err := Train(X, y, weights, Options{Seed: 2})
	require.NoError(t, err)
	require.Equal(t, 2, model.FeatureCount)
}

func TestTrainInputValidation(t *testing.T) {
	_, err := Train(nil, nil, nil, Options{})
	require.Error(t, err)

	_, err = Train([][]float64{{1}}, []float64{1, 0}, nil, Options{})
	require.Error(t, err)

	_, err = Train([][]float64{{1, 2}, {1}}, []float64{1, 0}, nil, Options{})
	require.Error(t, err)
}

func TestPredictLengthMismatch(t *testing.T) {
	X, y := separableSet(50, 4)
	model, err := Train(X, y, nil, Options{Seed: 1})
	require.NoError(t, err)

	_, err = model.Predict([]float64{1, 2, 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "features")
}

func TestSigmoidClipping(t *testing.T) {
	require.InDelta(t, 1.0, Sigmoid(1e6), 1e-12)
	require.InDelta(t, 0.0, Sigmoid(-1e6), 1e-12)
	require.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	require.False(t, math.IsNaN(Sigmoid(math.Inf(1))))
}

func TestAUCDegenerateClasses(t *testing.T) {
	require.Equal(t, 0.5, AUC([]float64{0.2, 0.8}, []float64{1, 1}))
	require.Equal(t, 0.5, AUC([]float64{0.2, 0.8}, []float64{0, 0}))
}

func TestAUCPerfectRanking(t *testing.T) {
	preds := []float64{0.9, 0.8, 0.2, 0.1}
	y := []float64{1, 1, 0, 0}
	require.InDelta(t, 1.0, AUC(preds, y), 1e-12)
}

func TestAUCTiedScores(t *testing.T) {
	// All predictions identical: no rank information, area collapses to 0.5.
	preds := []float64{0.5, 0.5, 0.5, 0.5}
	y := []float64{1, 0, 1, 0}
	require.InDelta(t, 0.5, AUC(preds, y), 1e-12)
}

func TestCalibrationBins(t *testing.T) {
	X, y := separableSet(100, 8)
	model, err := Train(X, y, nil, Options{Seed: 3})
	require.NoError(t, err)

	metrics, err := model.Evaluate(X, y)
	require.NoError(t, err)
	require.Len(t, metrics.Calibration, 10)

	total := 0
	for _, bin := range metrics.Calibration {
		total += bin.Count
		if bin.Count > 0 {
			require.GreaterOrEqual(t, bin.MeanPredicted, bin.LowerBound-1e-9)
			require.LessOrEqual(t, bin.MeanPredicted, bin.UpperBound+1e-9)
		}
	}
	require.Equal(t, len(X), total)
}

func TestFeatureImportanceOrdering(t *testing.T) {
	model := &Model{
		Weights:      []float64{0.1, -2.5, 1.0},
		FeatureCount: 3,
	}
	imps := model.FeatureImportance([]string{"a", "b", "c"})
	require.Len(t, imps, 3)
	require.Equal(t, "b", imps[0].Feature)
	require.Equal(t, "c", imps[1].Feature)
	require.Equal(t, "a", imps[2].Feature)
}

func TestEarlyStoppingRecordsDiagnostics(t *testing.T) {
	X, y := separableSet(200, 6)
	model, err := Train(X, y, nil, Options{Seed: 5, Epochs: 500, Patience: 5})
	require.NoError(t, err)
	require.Greater(t, model.EpochsRun, 0)
	require.LessOrEqual(t, model.EpochsRun, 500)
	require.False(t, math.IsInf(model.BestValLoss, 1))
}
