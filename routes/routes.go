package routes

import (
	"app/handlers"
	"app/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes defines all the routes for the application.
func SetupRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// --- Admin Routes (API key required) ---
	admin := api.Group("/admin", middleware.APIKeyRequired)
	admin.Post("/seed", handlers.HandleSeedDemoData)
	admin.Post("/train", handlers.HandleTrainModel)

	// --- Forecasting Routes ---
	api.Get("/forecast", handlers.HandleGetForecast)
	api.Post("/scenario/price-change", handlers.HandleScenarioPriceChange)
	api.Get("/backtest", handlers.HandleRunBacktest)

	// --- Pricing Routes ---
	api.Post("/pricing/optimize", handlers.HandlePricingOptimize)

	// --- Assistant Routes ---
	api.Post("/assistant/ask", handlers.HandleAssistantAsk)
}
