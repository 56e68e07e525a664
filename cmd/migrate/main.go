// migrate applies the embedded SQL migrations for the dialect named by DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"os"

	"crm-dashboard/backend/internal/config"
	"crm-dashboard/backend/internal/db/migrate"
	"crm-dashboard/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.Env, Service: "crm-migrate"})

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("migrate failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "direction", *direction)
}
