package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"app/models"
)

// HandlePricingOptimize runs the price simulation for a product and returns
// the profit-optimal recommendation after business constraints.
// POST /api/v1/pricing/optimize
func HandlePricingOptimize(c *fiber.Ctx) error {
	var req models.PricingOptimizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid request body"})
	}

	result, err := getForecastService().OptimizePrice(c.Context(), req)
	if err != nil {
		log.Printf("Error optimizing price: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	return c.JSON(result)
}
