package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBacktestMetrics(t *testing.T) {
	mae, mape := BacktestMetrics([]float64{10, 20, 30}, []float64{11, 19, 31})
	assert.InDelta(t, 1.0, mae, 1e-9)
	assert.Greater(t, mape, 0.0)

	mae, mape = BacktestMetrics(nil, nil)
	assert.Equal(t, 0.0, mae)
	assert.Equal(t, 0.0, mape)
}

func TestTimeBasedSplit(t *testing.T) {
	facts := demoFacts(100, "P0001")
	train, test := TimeBasedSplit(facts, 0.8)

	assert.Len(t, train, 80)
	assert.Len(t, test, 20)
	maxTrain := train[0].Date
	for _, f := range train {
		if f.Date.After(maxTrain) {
			maxTrain = f.Date
		}
	}
	for _, f := range test {
		assert.True(t, f.Date.After(maxTrain), "test dates must follow all train dates")
	}
}

func TestRollingBacktestInsufficientData(t *testing.T) {
	facts := demoFacts(50, "P0001")
	actuals, preds, dates := RollingBacktest(facts, func(rows []Row) []float64 {
		return make([]float64, len(rows))
	}, 90, 7)
	assert.Empty(t, actuals)
	assert.Empty(t, preds)
	assert.Empty(t, dates)
}

func TestRollingBacktestTemporalSeparation(t *testing.T) {
	facts := demoFacts(120, "P0001")
	trainWindow, step := 90, 7

	var evaluated [][]time.Time
	predictFn := func(rows []Row) []float64 {
		var block []time.Time
		for _, r := range rows {
			block = append(block, r.Date)
		}
		evaluated = append(evaluated, block)
		return make([]float64, len(rows))
	}

	actuals, preds, testDates := RollingBacktest(facts, predictFn, trainWindow, step)
	if len(preds) == 0 {
		t.Fatalf("expected predictions from 120 days with window 90 step 7")
	}
	assert.Equal(t, len(actuals), len(preds))
	assert.Equal(t, len(preds), len(testDates))

	start := dateOnly(facts[0].Date)
	firstTest := start.AddDate(0, 0, trainWindow)
	assert.True(t, testDates[0].Equal(firstTest), "first evaluation date must follow the full train window")

	// every evaluation block is strictly after its training block and blocks
	// advance without overlap
	prevEnd := start.AddDate(0, 0, trainWindow-1)
	for _, block := range evaluated {
		for _, d := range block {
			assert.True(t, d.After(prevEnd), "evaluation date %s not after previous block end %s", d, prevEnd)
		}
		prevEnd = block[len(block)-1]
	}
}

func TestRollingBacktestAlignedWhenStepDropsRows(t *testing.T) {
	facts := demoFacts(120, "P0001")
	// a 40-day test block has lag_30 defined for its later rows, so feature
	// engineering drops the early ones; actuals must shrink with it
	actuals, preds, dates := RollingBacktest(facts, func(rows []Row) []float64 {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = r.Quantity
		}
		return out
	}, 40, 40)

	if len(preds) == 0 {
		t.Fatalf("expected predictions from 120 days with window 40 step 40")
	}
	assert.Equal(t, len(actuals), len(preds))
	assert.Equal(t, len(preds), len(dates))

	mae, mape := BacktestMetrics(actuals, preds)
	assert.Equal(t, 0.0, mae, "a perfect predictor must score zero error")
	assert.Equal(t, 0.0, mape)
}

func TestRollingBacktestPredictionCount(t *testing.T) {
	facts := demoFacts(120, "P0001")
	_, preds, _ := RollingBacktest(facts, func(rows []Row) []float64 {
		return make([]float64, len(rows))
	}, 90, 7)
	// steps start at day 90, 97, 104, 111 - four blocks of 7 days
	assert.Len(t, preds, 28)
}
