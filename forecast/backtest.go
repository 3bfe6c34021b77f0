package forecast

import (
	"math"
	"sort"
	"time"

	"app/models"
)

// distinctDates returns the sorted unique observation dates.
func distinctDates(facts []models.SalesFact) []time.Time {
	seen := map[time.Time]bool{}
	var dates []time.Time
	for _, f := range facts {
		d := dateOnly(f.Date)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func factsBetween(facts []models.SalesFact, from, to time.Time) []models.SalesFact {
	var out []models.SalesFact
	for _, f := range facts {
		d := dateOnly(f.Date)
		if !d.Before(from) && !d.After(to) {
			out = append(out, f)
		}
	}
	return out
}

// TimeBasedSplit splits facts by time: the earlier trainPct fraction of
// distinct dates goes to train, the remainder to test.
func TimeBasedSplit(facts []models.SalesFact, trainPct float64) (train, test []models.SalesFact) {
	dates := distinctDates(facts)
	nTrain := int(float64(len(dates)) * trainPct)
	trainSet := map[time.Time]bool{}
	for _, d := range dates[:nTrain] {
		trainSet[d] = true
	}
	for _, f := range facts {
		if trainSet[dateOnly(f.Date)] {
			train = append(train, f)
		} else {
			test = append(test, f)
		}
	}
	return train, test
}

// RollingBacktest slides a training window of trainWindowDays distinct dates
// forward in stepDays increments; each step's evaluation block is the next
// stepDays dates, strictly after every training date. Features for the test
// block are engineered from the test block's own rows only, which themselves
// only look backward, so no future value ever reaches a past prediction.
// Actuals and dates are taken from the engineered rows, so all three returned
// series stay aligned index-for-index even when feature engineering drops
// rows from a block.
//
// Fewer than trainWindowDays+stepDays distinct dates yields empty results,
// which callers interpret as insufficient data rather than an error.
func RollingBacktest(
	facts []models.SalesFact,
	predictFn func([]Row) []float64,
	trainWindowDays, stepDays int,
) (actuals, preds []float64, testDates []time.Time) {
	dates := distinctDates(facts)
	if len(dates) < trainWindowDays+stepDays {
		return nil, nil, nil
	}

	for i := trainWindowDays; i <= len(dates)-stepDays; i += stepDays {
		trainStart := dates[i-trainWindowDays]
		trainEnd := dates[i-1]
		testStart := dates[i]
		endIdx := i + stepDays - 1
		if endIdx > len(dates)-1 {
			endIdx = len(dates) - 1
		}
		testEnd := dates[endIdx]

		trainFacts := factsBetween(facts, trainStart, trainEnd)
		testFacts := factsBetween(facts, testStart, testEnd)
		if len(trainFacts) == 0 || len(testFacts) == 0 {
			continue
		}

		testRows := EngineerFeatures(testFacts)
		stepPreds := predictFn(testRows)

		for _, r := range testRows {
			actuals = append(actuals, r.Quantity)
			testDates = append(testDates, r.Date)
		}
		preds = append(preds, stepPreds...)
	}
	return actuals, preds, testDates
}

// BacktestMetrics computes MAE and MAPE over concatenated backtest series,
// zeros when either series is empty.
func BacktestMetrics(actuals, preds []float64) (mae, mape float64) {
	if len(actuals) == 0 || len(preds) == 0 {
		return 0, 0
	}
	n := len(actuals)
	if len(preds) < n {
		n = len(preds)
	}
	var absSum, pctSum float64
	for i := 0; i < n; i++ {
		absSum += math.Abs(actuals[i] - preds[i])
		pctSum += math.Abs((preds[i] - actuals[i]) / (actuals[i] + 1e-8))
	}
	return absSum / float64(n), pctSum / float64(n) * 100
}
