package forecast

import (
	"math"
	"sort"
	"time"

	"app/models"
)

// Default lag horizons and rolling windows for the feature pipeline.
var (
	defaultLags    = []int{7, 14, 30}
	defaultWindows = []int{7, 30}
)

// Row is one observation plus its engineered features. Feature values that
// are undefined (not enough history yet) are carried as NaN until the final
// drop-or-fill step, so no downstream code ever mistakes "unknown" for zero.
type Row struct {
	ProductID  string
	Date       time.Time
	Quantity   float64
	Revenue    float64
	Price      float64
	PromoFlag  float64
	CategoryID string

	Dow        float64
	DayOfMonth float64
	Month      float64
	WeekOfYear float64
	IsWeekend  float64

	Lag7  float64
	Lag14 float64
	Lag30 float64

	RollingMean7  float64
	RollingMean30 float64

	PriceChangePct     float64
	LogPrice           float64
	RollingMeanPrice30 float64
	PriceVsAvg30       float64
}

// newRows converts raw sales facts into feature rows sorted by product then
// date. A missing price becomes NaN; every feature field starts as NaN.
func newRows(facts []models.SalesFact) []Row {
	rows := make([]Row, 0, len(facts))
	for _, f := range facts {
		r := Row{
			ProductID: f.ProductID,
			Date:      dateOnly(f.Date),
			Quantity:  f.Quantity,
			Revenue:   f.Revenue,
			Price:     math.NaN(),
			PromoFlag: 0,
		}
		if f.Price != nil {
			r.Price = *f.Price
		}
		if f.PromoFlag {
			r.PromoFlag = 1
		}
		if f.CategoryID != nil {
			r.CategoryID = *f.CategoryID
		}
		r.Lag7, r.Lag14, r.Lag30 = math.NaN(), math.NaN(), math.NaN()
		r.RollingMean7, r.RollingMean30 = math.NaN(), math.NaN()
		r.PriceChangePct = math.NaN()
		r.LogPrice = math.NaN()
		r.RollingMeanPrice30 = math.NaN()
		r.PriceVsAvg30 = math.NaN()
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ProductID != rows[j].ProductID {
			return rows[i].ProductID < rows[j].ProductID
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// entitySpans returns the [start,end) index ranges per product in a slice
// already sorted by product then date.
func entitySpans(rows []Row) [][2]int {
	var spans [][2]int
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].ProductID != rows[start].ProductID {
			spans = append(spans, [2]int{start, i})
			start = i
		}
	}
	return spans
}

// buildTimeFeatures derives calendar features from the date.
func buildTimeFeatures(rows []Row) {
	for i := range rows {
		d := rows[i].Date
		// Monday=0 .. Sunday=6
		dow := (int(d.Weekday()) + 6) % 7
		rows[i].Dow = float64(dow)
		rows[i].DayOfMonth = float64(d.Day())
		rows[i].Month = float64(int(d.Month()))
		_, wk := d.ISOWeek()
		rows[i].WeekOfYear = float64(wk)
		if dow >= 5 {
			rows[i].IsWeekend = 1
		} else {
			rows[i].IsWeekend = 0
		}
	}
}

// buildLagFeatures adds shifted target values per product. A row earlier than
// the horizon keeps NaN.
func buildLagFeatures(rows []Row, lags []int) {
	for _, span := range entitySpans(rows) {
		for i := span[0]; i < span[1]; i++ {
			for _, lag := range lags {
				j := i - lag
				v := math.NaN()
				if j >= span[0] {
					v = rows[j].Quantity
				}
				switch lag {
				case 7:
					rows[i].Lag7 = v
				case 14:
					rows[i].Lag14 = v
				case 30:
					rows[i].Lag30 = v
				}
			}
		}
	}
}

// buildRollingFeatures adds trailing means of the target per product. The
// series is shifted one period before windowing so a row's own quantity never
// enters its own feature, and a single prior value is enough (min periods 1).
func buildRollingFeatures(rows []Row, windows []int) {
	for _, span := range entitySpans(rows) {
		for i := span[0]; i < span[1]; i++ {
			for _, w := range windows {
				lo := i - w
				if lo < span[0] {
					lo = span[0]
				}
				sum, n := 0.0, 0
				for j := lo; j < i; j++ {
					sum += rows[j].Quantity
					n++
				}
				v := math.NaN()
				if n >= 1 {
					v = sum / float64(n)
				}
				switch w {
				case 7:
					rows[i].RollingMean7 = v
				case 30:
					rows[i].RollingMean30 = v
				}
			}
		}
	}
}

// buildPriceFeatures adds price-derived features per product: percent change
// from the prior period (0 on the first observation), log price clamped to a
// small positive floor, and price relative to a 30-period trailing average
// price (min 7 periods; a non-finite ratio is treated as "at average").
func buildPriceFeatures(rows []Row) {
	for _, span := range entitySpans(rows) {
		for i := span[0]; i < span[1]; i++ {
			p := rows[i].Price

			pct := math.NaN()
			if i > span[0] {
				prev := rows[i-1].Price
				if !math.IsNaN(prev) && prev != 0 && !math.IsNaN(p) {
					pct = (p - prev) / prev
				}
			}
			if math.IsNaN(pct) {
				pct = 0
			}
			rows[i].PriceChangePct = pct

			if math.IsNaN(p) {
				rows[i].LogPrice = math.NaN()
			} else {
				rows[i].LogPrice = math.Log(math.Max(p, 1e-8))
			}

			lo := i - 30
			if lo < span[0] {
				lo = span[0]
			}
			sum, n := 0.0, 0
			for j := lo; j < i; j++ {
				if !math.IsNaN(rows[j].Price) {
					sum += rows[j].Price
					n++
				}
			}
			rm := math.NaN()
			if n >= 7 {
				rm = sum / float64(n)
			}
			rows[i].RollingMeanPrice30 = rm

			ratio := p / rm
			if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
				ratio = 1
			}
			rows[i].PriceVsAvg30 = ratio
		}
	}
}

// medianPrice returns the median of the defined prices, NaN when none exist.
func medianPrice(rows []Row) float64 {
	var ps []float64
	for i := range rows {
		if !math.IsNaN(rows[i].Price) {
			ps = append(ps, rows[i].Price)
		}
	}
	if len(ps) == 0 {
		return math.NaN()
	}
	sort.Float64s(ps)
	mid := len(ps) / 2
	if len(ps)%2 == 1 {
		return ps[mid]
	}
	return (ps[mid-1] + ps[mid]) / 2
}

// EngineerFeatures runs the full feature pipeline over raw sales facts and
// returns model-ready rows.
//
// Missing prices are filled with the median price of the call's window.
// When at least one row has a defined lag_30, rows without it are dropped,
// so training only sees fully-featured rows. When no row has it, the window
// is too short for lag_30 and every remaining NaN is filled with 0 instead,
// so inference on short history still returns rows.
func EngineerFeatures(facts []models.SalesFact) []Row {
	rows := newRows(facts)

	med := medianPrice(rows)
	for i := range rows {
		if math.IsNaN(rows[i].Price) {
			rows[i].Price = med
		}
	}

	buildTimeFeatures(rows)
	buildLagFeatures(rows, defaultLags)
	buildRollingFeatures(rows, defaultWindows)
	buildPriceFeatures(rows)

	anyLag30 := false
	for i := range rows {
		if !math.IsNaN(rows[i].Lag30) {
			anyLag30 = true
			break
		}
	}

	if anyLag30 {
		out := rows[:0]
		for _, r := range rows {
			if !math.IsNaN(r.Lag30) {
				out = append(out, r)
			}
		}
		return out
	}

	for i := range rows {
		fillNaN(&rows[i].Price)
		fillNaN(&rows[i].Lag7)
		fillNaN(&rows[i].Lag14)
		fillNaN(&rows[i].Lag30)
		fillNaN(&rows[i].RollingMean7)
		fillNaN(&rows[i].RollingMean30)
		fillNaN(&rows[i].PriceChangePct)
		fillNaN(&rows[i].LogPrice)
		fillNaN(&rows[i].RollingMeanPrice30)
		fillNaN(&rows[i].PriceVsAvg30)
	}
	return rows
}

func fillNaN(v *float64) {
	if math.IsNaN(*v) {
		*v = 0
	}
}

// ApplyPriceDelta returns a copy of the facts with prices scaled by
// (1 + deltaPct/100). It must run before feature engineering so the
// price-derived features reflect the perturbed price.
func ApplyPriceDelta(facts []models.SalesFact, deltaPct float64) []models.SalesFact {
	factor := 1.0 + deltaPct/100.0
	out := make([]models.SalesFact, len(facts))
	for i, f := range facts {
		out[i] = f
		if f.Price != nil {
			p := *f.Price * factor
			out[i].Price = &p
		}
	}
	return out
}

// AggregateByDate collapses duplicate (product, date) rows: quantity and
// revenue are summed, price averaged over defined values, the promo flag
// OR'd and the category taken from the first row seen. Output is sorted by
// product then date, so every product's series has unique dates.
func AggregateByDate(facts []models.SalesFact) []models.SalesFact {
	type agg struct {
		fact     models.SalesFact
		priceSum float64
		priceN   int
	}
	byKey := map[string]*agg{}
	var order []string
	for _, f := range facts {
		key := f.ProductID + "|" + dateOnly(f.Date).Format("2006-01-02")
		a, ok := byKey[key]
		if !ok {
			a = &agg{fact: f}
			a.fact.Date = dateOnly(f.Date)
			a.fact.Quantity = 0
			a.fact.Revenue = 0
			a.fact.Price = nil
			a.fact.PromoFlag = false
			byKey[key] = a
			order = append(order, key)
		}
		a.fact.Quantity += f.Quantity
		a.fact.Revenue += f.Revenue
		if f.Price != nil {
			a.priceSum += *f.Price
			a.priceN++
		}
		if f.PromoFlag {
			a.fact.PromoFlag = true
		}
	}
	out := make([]models.SalesFact, 0, len(order))
	for _, key := range order {
		a := byKey[key]
		if a.priceN > 0 {
			p := a.priceSum / float64(a.priceN)
			a.fact.Price = &p
		}
		out = append(out, a.fact)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
