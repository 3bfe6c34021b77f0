package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"app/config"
)

func makeGuardedApp() *fiber.App {
	app := fiber.New()
	app.Use(APIKeyRequired)
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(200).SendString("ok")
	})
	return app
}

func TestAPIKeyRequired_AllowsValidKey(t *testing.T) {
	config.AppConfig.AdminAPIKey = "secret-key"
	app := makeGuardedApp()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "secret-key")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for valid key, got %d", resp.StatusCode)
	}
}

func TestAPIKeyRequired_DeniesWrongKey(t *testing.T) {
	config.AppConfig.AdminAPIKey = "secret-key"
	app := makeGuardedApp()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 for wrong key, got %d", resp.StatusCode)
	}
}

func TestAPIKeyRequired_DeniesMissingKey(t *testing.T) {
	config.AppConfig.AdminAPIKey = "secret-key"
	app := makeGuardedApp()
	req := httptest.NewRequest("GET", "/test", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test error: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 for missing key, got %d", resp.StatusCode)
	}
}
