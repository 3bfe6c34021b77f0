package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"app/config"
	"app/database"
	"app/forecast"
	"app/models"
	"app/utils"
)

func getForecastService() *forecast.Service {
	repo := forecast.NewPgRepository(database.GetDB())
	return forecast.NewService(repo, config.AppConfig.ArtifactsPath)
}

// statusForError maps the forecasting error taxonomy to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, forecast.ErrInsufficientData),
		errors.Is(err, forecast.ErrInvalidParameter),
		errors.Is(err, forecast.ErrModelUnavailable):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// HandleTrainModel trains the forecasting model over a date range.
// POST /api/v1/admin/train?from_date=...&to_date=...
func HandleTrainModel(c *fiber.Ctx) error {
	fromDate, err := utils.ParseDate(c.Query("from_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	toDate, err := utils.ParseDate(c.Query("to_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	result, err := getForecastService().Train(c.Context(), fromDate, toDate)
	if err != nil {
		log.Printf("Error training model: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "success", "data": result})
}

// HandleGetForecast returns point forecasts for a product and date range.
// GET /api/v1/forecast?product_id=...&from_date=...&to_date=...
func HandleGetForecast(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "product_id is required"})
	}
	fromDate, err := utils.ParseDate(c.Query("from_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	toDate, err := utils.ParseDate(c.Query("to_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	points, version, err := getForecastService().GetForecast(c.Context(), productID, fromDate, toDate)
	if err != nil {
		log.Printf("Error generating forecast: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{"status": "error", "message": "Failed to generate forecast"})
	}
	if points == nil {
		points = []models.ForecastPoint{}
	}
	return c.JSON(models.ForecastResponse{
		ProductID:    productID,
		FromDate:     utils.FormatDate(fromDate),
		ToDate:       utils.FormatDate(toDate),
		Points:       points,
		ModelVersion: version,
	})
}

// HandleScenarioPriceChange computes a forecast under a hypothetical price change.
// POST /api/v1/scenario/price-change
func HandleScenarioPriceChange(c *fiber.Ctx) error {
	var req models.ScenarioPriceChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid request body"})
	}
	fromDate, err := utils.ParseDate(req.FromDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	toDate, err := utils.ParseDate(req.ToDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	result, err := getForecastService().ScenarioPriceChange(c.Context(), req.ProductID, fromDate, toDate, req.PriceDeltaPct)
	if err != nil {
		log.Printf("Error computing scenario: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{"status": "error", "message": "Failed to compute scenario"})
	}
	return c.JSON(result)
}

// HandleRunBacktest runs a rolling backtest for a product and date range.
// GET /api/v1/backtest?product_id=...&from_date=...&to_date=...
func HandleRunBacktest(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "product_id is required"})
	}
	fromDate, err := utils.ParseDate(c.Query("from_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	toDate, err := utils.ParseDate(c.Query("to_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	trainWindowDays := c.QueryInt("train_window_days", 90)
	stepDays := c.QueryInt("step_days", 7)

	result, err := getForecastService().RunBacktest(c.Context(), productID, fromDate, toDate, trainWindowDays, stepDays)
	if err != nil {
		log.Printf("Error running backtest: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{"status": "error", "message": "Failed to run backtest"})
	}
	return c.JSON(result)
}

// HandleSeedDemoData loads 120 days of demo sales facts for three products.
// POST /api/v1/admin/seed (API key required)
func HandleSeedDemoData(c *fiber.Ctx) error {
	db := database.GetDB()
	ctx := context.Background()

	var count int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM sales_facts`).Scan(&count); err != nil {
		log.Printf("Error counting sales facts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to check existing data"})
	}
	if count > 0 {
		return c.JSON(fiber.Map{"status": "ok", "message": "Data already exists", "rows": count})
	}

	type demoProduct struct {
		id       string
		price    float64
		category string
	}
	products := []demoProduct{
		{"P0001", 19.99, "C1"},
		{"P0002", 24.99, "C2"},
		{"P0003", 29.99, "C3"},
	}

	start := time.Now().UTC().AddDate(0, 0, -120)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	tx, err := db.Begin(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to start transaction"})
	}
	defer tx.Rollback(ctx)

	rows := 0
	for i := 0; i < 120; i++ {
		d := start.AddDate(0, 0, i)
		for j, p := range products {
			qty := float64(10 + j*5 + d.Day()%7)
			// Friday/Saturday promotions at 10% off
			promo := d.Weekday() == time.Friday || d.Weekday() == time.Saturday
			price := p.price
			if promo {
				price = p.price * 0.9
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO sales_facts (product_id, date, quantity, revenue, price, promo_flag, category_id, source)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'seed')
			`, p.id, d, qty, qty*price, price, promo, p.category)
			if err != nil {
				log.Printf("Error inserting demo sales fact: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to seed data"})
			}
			rows++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to commit transaction"})
	}
	return c.JSON(fiber.Map{"status": "ok", "message": "Seeded demo sales facts", "rows": rows})
}
