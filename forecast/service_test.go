package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"app/models"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	facts     []models.SalesFact
	artifacts []models.ModelArtifact
	nextID    int64
}

func (r *fakeRepo) GetSales(_ context.Context, from, to time.Time, productIDs []string) ([]models.SalesFact, error) {
	match := func(pid string) bool {
		if len(productIDs) == 0 {
			return true
		}
		for _, id := range productIDs {
			if id == pid {
				return true
			}
		}
		return false
	}
	var out []models.SalesFact
	for _, f := range r.facts {
		d := dateOnly(f.Date)
		if !d.Before(dateOnly(from)) && !d.After(dateOnly(to)) && match(f.ProductID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetLatestSales(ctx context.Context, productIDs []string, minDays int) ([]models.SalesFact, error) {
	var latest time.Time
	for _, f := range r.facts {
		for _, id := range productIDs {
			if f.ProductID == id && f.Date.After(latest) {
				latest = f.Date
			}
		}
	}
	if latest.IsZero() {
		return nil, nil
	}
	return r.GetSales(ctx, latest.AddDate(0, 0, -minDays), latest, productIDs)
}

func (r *fakeRepo) GetActiveModelPath(context.Context) (string, error) {
	for _, a := range r.artifacts {
		if a.IsActive {
			return a.FilePath, nil
		}
	}
	return "", nil
}

func (r *fakeRepo) GetActiveModelVersion(context.Context) (string, error) {
	for _, a := range r.artifacts {
		if a.IsActive {
			return a.Version, nil
		}
	}
	return "", nil
}

func (r *fakeRepo) CreateModelArtifact(_ context.Context, version, filePath string, trainedAt, dataFrom, dataTo time.Time, mae, mape float64) (*models.ModelArtifact, error) {
	for i := range r.artifacts {
		r.artifacts[i].IsActive = false
	}
	r.nextID++
	art := models.ModelArtifact{
		ID:        r.nextID,
		Version:   version,
		FilePath:  filePath,
		TrainedAt: trainedAt,
		DataFrom:  dataFrom,
		DataTo:    dataTo,
		MAE:       mae,
		MAPE:      mape,
		IsActive:  true,
		CreatedAt: trainedAt,
	}
	r.artifacts = append(r.artifacts, art)
	return &art, nil
}

// newTrainedService seeds the fake repo with demo data and trains a model.
func newTrainedService(t *testing.T, days int) (*Service, *fakeRepo, time.Time, time.Time) {
	t.Helper()
	repo := &fakeRepo{facts: demoFacts(days, "P0001")}
	svc := NewService(repo, t.TempDir())

	from := dateOnly(repo.facts[0].Date)
	to := dateOnly(repo.facts[len(repo.facts)-1].Date)
	result, err := svc.Train(context.Background(), from, to)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	assert.NotEmpty(t, result.Version)
	assert.GreaterOrEqual(t, result.MAE, 0.0)
	return svc, repo, from, to
}

func TestServiceTrainActivatesSingleArtifact(t *testing.T) {
	svc, repo, from, to := newTrainedService(t, 120)

	if _, err := svc.Train(context.Background(), from, to); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	active := 0
	for _, a := range repo.artifacts {
		if a.IsActive {
			active++
		}
	}
	assert.Equal(t, 2, len(repo.artifacts))
	assert.Equal(t, 1, active, "exactly one artifact active after retrain")
}

func TestServiceTrainInsufficientData(t *testing.T) {
	repo := &fakeRepo{facts: demoFacts(20, "P0001")}
	svc := NewService(repo, t.TempDir())
	_, err := svc.Train(context.Background(), dateOnly(repo.facts[0].Date), dateOnly(repo.facts[len(repo.facts)-1].Date))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestServiceGetForecastLastWeek(t *testing.T) {
	svc, _, _, to := newTrainedService(t, 120)

	from := to.AddDate(0, 0, -6)
	points, version, err := svc.GetForecast(context.Background(), "P0001", from, to)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	assert.NotEmpty(t, version)
	assert.Len(t, points, 7)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.PredictedQuantity, 0.0)
		if assert.NotNil(t, p.PredictedRevenue) {
			assert.GreaterOrEqual(t, *p.PredictedRevenue, 0.0)
		}
	}
}

func TestServiceGetForecastNoData(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, t.TempDir())
	points, version, err := svc.GetForecast(context.Background(), "P0001",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Empty(t, points)
	assert.Empty(t, version)
}

func TestServiceGetForecastNoModel(t *testing.T) {
	repo := &fakeRepo{facts: demoFacts(120, "P0001")}
	svc := NewService(repo, t.TempDir())
	to := dateOnly(repo.facts[len(repo.facts)-1].Date)
	points, version, err := svc.GetForecast(context.Background(), "P0001", to.AddDate(0, 0, -6), to)
	assert.NoError(t, err)
	assert.Empty(t, points)
	assert.Empty(t, version)
}

func TestServiceForecastBeyondDataTail(t *testing.T) {
	svc, _, _, to := newTrainedService(t, 120)

	// a range entirely past the data still forecasts from the latest window
	from := to.AddDate(0, 0, 70)
	end := from.AddDate(0, 0, 6)
	points, _, err := svc.GetForecast(context.Background(), "P0001", from, end)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	assert.Len(t, points, 7)
}

func TestServiceProductAlias(t *testing.T) {
	svc, _, _, to := newTrainedService(t, 120)
	points, _, err := svc.GetForecast(context.Background(), "P001", to.AddDate(0, 0, -6), to)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if assert.NotEmpty(t, points) {
		assert.Equal(t, "P0001", points[0].ProductID)
	}
}

func TestScenarioZeroDeltaMatchesBase(t *testing.T) {
	svc, _, _, to := newTrainedService(t, 120)
	from := to.AddDate(0, 0, -6)

	resp, err := svc.ScenarioPriceChange(context.Background(), "P0001", from, to, 0)
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	assert.Len(t, resp.BaseForecastPoints, 7)
	assert.Len(t, resp.ScenarioForecastPoints, 7)
	for i := range resp.BaseForecastPoints {
		assert.Equal(t, resp.BaseForecastPoints[i].PredictedQuantity, resp.ScenarioForecastPoints[i].PredictedQuantity)
	}
	if assert.NotNil(t, resp.DeltaRevenuePct) {
		assert.InDelta(t, 0.0, *resp.DeltaRevenuePct, 1e-6)
	}
	if assert.NotNil(t, resp.DeltaQuantityPct) {
		assert.InDelta(t, 0.0, *resp.DeltaQuantityPct, 1e-6)
	}
}

func TestScenarioNonNegativeQuantities(t *testing.T) {
	svc, _, _, to := newTrainedService(t, 120)
	from := to.AddDate(0, 0, -6)

	resp, err := svc.ScenarioPriceChange(context.Background(), "P0001", from, to, 25)
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	for _, p := range resp.ScenarioForecastPoints {
		assert.GreaterOrEqual(t, p.PredictedQuantity, 0.0)
	}
}

func TestScenarioNoDataReturnsEmptyResult(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, t.TempDir())
	resp, err := svc.ScenarioPriceChange(context.Background(), "P0001",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), 5)
	assert.NoError(t, err)
	assert.Empty(t, resp.BaseForecastPoints)
	assert.Nil(t, resp.DeltaRevenuePct)
}

func TestServiceRunBacktest(t *testing.T) {
	svc, _, from, to := newTrainedService(t, 120)

	result, err := svc.RunBacktest(context.Background(), "P0001", from.AddDate(0, 0, 90), to, 90, 7)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	assert.Empty(t, result.Message)
	if assert.NotNil(t, result.MAE) {
		assert.GreaterOrEqual(t, *result.MAE, 0.0)
	}
	assert.Greater(t, result.NPredictions, 0)
}

func TestServiceRunBacktestAggregatesDuplicates(t *testing.T) {
	svc, repo, from, to := newTrainedService(t, 120)
	// a second source row per (product, date) must collapse before evaluation
	repo.facts = append(repo.facts, demoFacts(120, "P0001")...)

	result, err := svc.RunBacktest(context.Background(), "P0001", from.AddDate(0, 0, 90), to, 90, 7)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	assert.Empty(t, result.Message)
	assert.Equal(t, 28, result.NPredictions)
}

func TestServiceRunBacktestInsufficientData(t *testing.T) {
	repo := &fakeRepo{facts: demoFacts(40, "P0001")}
	svc := NewService(repo, t.TempDir())
	to := dateOnly(repo.facts[len(repo.facts)-1].Date)
	result, err := svc.RunBacktest(context.Background(), "P0001", to.AddDate(0, 0, -10), to, 90, 7)
	assert.NoError(t, err)
	assert.Equal(t, "Insufficient data", result.Message)
	assert.Nil(t, result.MAE)
}

func TestGapFillDaily(t *testing.T) {
	facts := demoFacts(20, "P0001")
	// punch holes in the series
	gapped := append([]models.SalesFact{}, facts[:5]...)
	gapped = append(gapped, facts[9:15]...)
	gapped = append(gapped, facts[18:]...)

	end := dateOnly(facts[len(facts)-1].Date)
	filled := gapFillDaily(gapped, "P0001", end)

	assert.Len(t, filled, 20)
	for i := 1; i < len(filled); i++ {
		assert.Equal(t, filled[i-1].Date.AddDate(0, 0, 1), filled[i].Date, "calendar must be gap-free")
	}
	// day 5 replays day 4's state
	assert.Equal(t, filled[4].Quantity, filled[5].Quantity)
	assert.Equal(t, *filled[4].Price, *filled[5].Price)
}
