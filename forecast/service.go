package forecast

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"app/models"
)

// lookbackDays is the history window fetched before a forecast range so lag
// and rolling features are computable at the range start.
const lookbackDays = 60

// productAliases maps short demo product IDs to their canonical form.
var productAliases = map[string]string{
	"P001": "P0001",
	"P002": "P0002",
	"P003": "P0003",
}

func resolveProduct(productID string) string {
	if canonical, ok := productAliases[productID]; ok {
		return canonical
	}
	return productID
}

// Service orchestrates training, forecasting, scenarios, backtests and price
// optimization over an injected Repository.
type Service struct {
	repo         Repository
	artifactsDir string
}

func NewService(repo Repository, artifactsDir string) *Service {
	return &Service{repo: repo, artifactsDir: artifactsDir}
}

// Train fits a model on historical data in [from, to] and persists the
// artifact as the new active model.
func (s *Service) Train(ctx context.Context, from, to time.Time) (*models.TrainResult, error) {
	facts, err := s.repo.GetSales(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}
	_, meta, err := TrainModel(facts, from, to, s.artifactsDir)
	if err != nil {
		return nil, err
	}
	art, err := s.repo.CreateModelArtifact(ctx, meta.Version, meta.FilePath, meta.TrainedAt, from, to, meta.MAE, meta.MAPE)
	if err != nil {
		return nil, fmt.Errorf("failed to persist model artifact: %w", err)
	}
	return &models.TrainResult{
		Version:    meta.Version,
		MAE:        meta.MAE,
		MAPE:       meta.MAPE,
		ArtifactID: art.ID,
	}, nil
}

// fetchWindow loads the raw history for a forecast request: the lookback
// window before from through to, falling back to the most recent available
// window when the requested range lies beyond the data's tail.
func (s *Service) fetchWindow(ctx context.Context, productID string, from, to time.Time) ([]models.SalesFact, error) {
	histStart := from.AddDate(0, 0, -lookbackDays)
	facts, err := s.repo.GetSales(ctx, histStart, to, []string{productID})
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		facts, err = s.repo.GetLatestSales(ctx, []string{productID}, lookbackDays+30)
		if err != nil {
			return nil, err
		}
	}
	return facts, nil
}

// loadActiveModel returns the active model and its version, or (nil, "") when
// no usable artifact exists.
func (s *Service) loadActiveModel(ctx context.Context) (*GBMModel, string, error) {
	path, err := s.repo.GetActiveModelPath(ctx)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, "", nil
	}
	model, err := LoadModel(path)
	if err != nil {
		return nil, "", nil
	}
	version, err := s.repo.GetActiveModelVersion(ctx)
	if err != nil {
		return nil, "", err
	}
	return model, version, nil
}

// gapFillDaily builds a gap-free daily calendar from the earliest observation
// through end: missing days are forward-filled, then leading gaps
// backward-filled, so every day replays the last-known state instead of
// fabricating new values.
func gapFillDaily(facts []models.SalesFact, productID string, end time.Time) []models.SalesFact {
	if len(facts) == 0 {
		return nil
	}
	byDate := map[time.Time]models.SalesFact{}
	start := dateOnly(facts[0].Date)
	for _, f := range facts {
		d := dateOnly(f.Date)
		if d.Before(start) {
			start = d
		}
		byDate[d] = f
	}

	end = dateOnly(end)
	var filled []models.SalesFact
	known := []bool{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		f, ok := byDate[d]
		if ok {
			f.Date = d
			f.ProductID = productID
		}
		filled = append(filled, f)
		known = append(known, ok)
	}

	// forward fill, then backward fill leading gaps
	for i := 1; i < len(filled); i++ {
		if !known[i] && known[i-1] {
			f := filled[i-1]
			f.Date = filled[i-1].Date.AddDate(0, 0, 1)
			f.ProductID = productID
			filled[i] = f
			known[i] = true
		}
	}
	for i := len(filled) - 2; i >= 0; i-- {
		if !known[i] && known[i+1] {
			f := filled[i+1]
			f.Date = filled[i+1].Date.AddDate(0, 0, -1)
			f.ProductID = productID
			filled[i] = f
			known[i] = true
		}
	}
	return filled
}

// predictRange runs the shared gap-fill + feature + predict pipeline and
// returns points filtered to [from, to]. Quantities are clamped to zero.
func predictRange(model *GBMModel, facts []models.SalesFact, productID string, from, to time.Time) []models.ForecastPoint {
	agg := AggregateByDate(facts)
	filled := gapFillDaily(agg, productID, to)
	rows := EngineerFeatures(filled)
	preds := Predict(model, rows)

	from = dateOnly(from)
	to = dateOnly(to)
	var points []models.ForecastPoint
	for i := range rows {
		d := rows[i].Date
		if d.Before(from) || d.After(to) {
			continue
		}
		qty := preds[i]
		if qty < 0 {
			qty = 0
		}
		point := models.ForecastPoint{
			Date:              d.Format("2006-01-02"),
			ProductID:         productID,
			PredictedQuantity: qty,
		}
		if rev := qty * rows[i].Price; !math.IsNaN(rev) {
			point.PredictedRevenue = &rev
		}
		points = append(points, point)
	}
	return points
}

// GetForecast generates point forecasts for a product over [from, to].
// Missing data or a missing active model yields an empty result, not an
// error.
func (s *Service) GetForecast(ctx context.Context, productID string, from, to time.Time) ([]models.ForecastPoint, string, error) {
	productID = resolveProduct(productID)

	facts, err := s.fetchWindow(ctx, productID, from, to)
	if err != nil {
		return nil, "", err
	}
	if len(facts) == 0 {
		return nil, "", nil
	}

	model, version, err := s.loadActiveModel(ctx)
	if err != nil || model == nil {
		return nil, "", err
	}

	return predictRange(model, facts, productID, from, to), version, nil
}

// ScenarioPriceChange recomputes the forecast under a hypothetical price
// change and reports percentage deltas against the base forecast.
func (s *Service) ScenarioPriceChange(ctx context.Context, productID string, from, to time.Time, priceDeltaPct float64) (*models.ScenarioPriceChangeResponse, error) {
	productID = resolveProduct(productID)
	resp := &models.ScenarioPriceChangeResponse{
		ProductID:     productID,
		FromDate:      from.Format("2006-01-02"),
		ToDate:        to.Format("2006-01-02"),
		PriceDeltaPct: priceDeltaPct,
	}

	basePoints, _, err := s.GetForecast(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}
	if len(basePoints) == 0 {
		return resp, nil
	}
	resp.BaseForecastPoints = basePoints

	facts, err := s.fetchWindow(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return resp, nil
	}

	model, _, err := s.loadActiveModel(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return resp, nil
	}

	scenarioFacts := ApplyPriceDelta(facts, priceDeltaPct)
	scenarioPoints := predictRange(model, scenarioFacts, productID, from, to)
	resp.ScenarioForecastPoints = scenarioPoints

	var baseRev, baseQty, scenRev, scenQty float64
	for _, p := range basePoints {
		if p.PredictedRevenue != nil {
			baseRev += *p.PredictedRevenue
		}
		baseQty += p.PredictedQuantity
	}
	for _, p := range scenarioPoints {
		if p.PredictedRevenue != nil {
			scenRev += *p.PredictedRevenue
		}
		scenQty += p.PredictedQuantity
	}

	if baseRev != 0 {
		d := (scenRev - baseRev) / (baseRev + 1e-8) * 100
		resp.DeltaRevenuePct = &d
	}
	if baseQty != 0 {
		d := (scenQty - baseQty) / (baseQty + 1e-8) * 100
		resp.DeltaQuantityPct = &d
	}
	return resp, nil
}

// RunBacktest evaluates the active model over [from, to] with a rolling
// window and returns aggregate accuracy metrics. Insufficient data or a
// missing model produce a message payload, not an error.
func (s *Service) RunBacktest(ctx context.Context, productID string, from, to time.Time, trainWindowDays, stepDays int) (*models.BacktestResult, error) {
	productID = resolveProduct(productID)
	if trainWindowDays <= 0 {
		trainWindowDays = 90
	}
	if stepDays <= 0 {
		stepDays = 7
	}

	histStart := from.AddDate(0, 0, -trainWindowDays)
	facts, err := s.repo.GetSales(ctx, histStart, to, []string{productID})
	if err != nil {
		return nil, err
	}
	facts = AggregateByDate(facts)
	if len(facts) < trainWindowDays+stepDays {
		return &models.BacktestResult{Message: "Insufficient data"}, nil
	}

	model, _, err := s.loadActiveModel(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return &models.BacktestResult{Message: "No trained model"}, nil
	}

	predictFn := func(rows []Row) []float64 {
		return Predict(model, rows)
	}
	actuals, preds, _ := RollingBacktest(facts, predictFn, trainWindowDays, stepDays)
	mae, mape := BacktestMetrics(actuals, preds)

	return &models.BacktestResult{
		MAE:          &mae,
		MAPE:         &mape,
		ProductID:    productID,
		FromDate:     from.Format("2006-01-02"),
		ToDate:       to.Format("2006-01-02"),
		NPredictions: len(preds),
	}, nil
}
