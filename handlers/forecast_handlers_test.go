package handlers

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"app/forecast"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	api := app.Group("/api/v1")
	api.Get("/forecast", HandleGetForecast)
	api.Post("/scenario/price-change", HandleScenarioPriceChange)
	api.Get("/backtest", HandleRunBacktest)
	api.Post("/pricing/optimize", HandlePricingOptimize)
	return app
}

func TestForecastRouteNotFound(t *testing.T) {
	app := fiber.New()
	// route not registered; expect 404
	req := httptest.NewRequest("GET", "/api/v1/forecast", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestGetForecastMissingProductID(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("GET", "/api/v1/forecast?from_date=2024-01-01&to_date=2024-01-07", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetForecastBadDate(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("GET", "/api/v1/forecast?product_id=P0001&from_date=01/01/2024&to_date=2024-01-07", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestBacktestMissingProductID(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("GET", "/api/v1/backtest?from_date=2024-01-01&to_date=2024-03-01", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestScenarioInvalidBody(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("POST", "/api/v1/scenario/price-change", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPricingOptimizeInvalidParams(t *testing.T) {
	app := newTestApp()
	// price_min >= price_max fails validation before any DB access
	body := `{"product_id":"P0001","cost":8,"price_min":30,"price_max":10}`
	req := httptest.NewRequest("POST", "/api/v1/pricing/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, statusForError(forecast.ErrInsufficientData))
	assert.Equal(t, fiber.StatusBadRequest, statusForError(forecast.ErrInvalidParameter))
	assert.Equal(t, fiber.StatusBadRequest, statusForError(forecast.ErrModelUnavailable))
	assert.Equal(t, fiber.StatusInternalServerError, statusForError(errors.New("boom")))
}
