package forecast

import (
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syntheticXY builds a regression set with a simple learnable structure.
func syntheticXY(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := float64(i % 7)
		b := float64(i%30) / 30
		X[i] = []float64{a, b, float64(i)}
		y[i] = 3*a + 10*b
	}
	return X, y
}

func TestFitGBMDeterministic(t *testing.T) {
	X, y := syntheticXY(200)
	params := DefaultGBMParams()
	params.NumIterations = 50

	m1 := FitGBM(X, y, params)
	m2 := FitGBM(X, y, params)

	b1, err := json.Marshal(m1)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b2, err := json.Marshal(m2)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assert.Equal(t, b1, b2, "identical input must reproduce identical model bytes")
}

func TestFitGBMImprovesOnMeanPredictor(t *testing.T) {
	X, y := syntheticXY(200)
	params := DefaultGBMParams()
	params.NumIterations = 100

	m := FitGBM(X, y, params)
	preds := m.PredictRaw(X)

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var fitErr, meanErr float64
	for i := range y {
		fitErr += math.Abs(preds[i] - y[i])
		meanErr += math.Abs(mean - y[i])
	}
	assert.Less(t, fitErr, meanErr/2, "boosted fit should beat the mean predictor")
}

func TestSaveLoadModelRoundTrip(t *testing.T) {
	X, y := syntheticXY(120)
	params := DefaultGBMParams()
	params.NumIterations = 20
	m := FitGBM(X, y, params)
	m.FeatureCols = []string{"a", "b", "c"}
	m.TargetTransform = "log1p"

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(m, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	assert.Equal(t, m.FeatureCols, loaded.FeatureCols)
	assert.Equal(t, m.TargetTransform, loaded.TargetTransform)
	assert.Equal(t, m.PredictRaw(X), loaded.PredictRaw(X))
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatalf("expected error for missing model file")
	}
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestFeatureMatrixAlignsToSchema(t *testing.T) {
	rows := EngineerFeatures(demoFacts(14, "P0001"))
	cols := append([]string{"no_such_column"}, FeatureCols...)
	X := featureMatrix(rows, cols)

	assert.Len(t, X, len(rows))
	for _, x := range X {
		assert.Len(t, x, len(cols))
		assert.Equal(t, 0.0, x[0], "unknown column fills with zero")
		for _, v := range x {
			assert.False(t, math.IsNaN(v))
		}
	}
}
