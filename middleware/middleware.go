package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"app/config"
)

// APIKeyRequired guards admin endpoints with the X-API-Key header.
func APIKeyRequired(c *fiber.Ctx) error {
	key := c.Get("X-API-Key")
	expected := config.AppConfig.AdminAPIKey
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid or missing API key",
		})
	}
	return c.Next()
}
