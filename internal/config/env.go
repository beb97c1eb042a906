package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file from the working directory into the
// process environment, if one exists. Provider credentials referenced by
// model bindings are resolved from the environment at call time.
func LoadDotenv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
		return
	}
	slog.Debug("Loaded environment from .env")
}
