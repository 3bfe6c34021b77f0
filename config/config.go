package config

import "os"

// Config struct holds application configuration
// This is a simple way to make config accessible globally.
// A more advanced approach might use dependency injection.
type Config struct {
	AdminAPIKey   string
	GeminiAPIKey  string
	ArtifactsPath string
}

// AppConfig holds the application-wide configuration
var AppConfig Config

// Load populates AppConfig from environment variables.
func Load() {
	AppConfig.AdminAPIKey = getenv("ADMIN_API_KEY", "dev-admin-key-change-in-production")
	AppConfig.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	AppConfig.ArtifactsPath = getenv("ARTIFACTS_PATH", "./artifacts")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
