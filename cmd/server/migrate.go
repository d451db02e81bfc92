package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/kartikbazzad/bunbase/opbridge/internal/config"
)

const migrationsDir = "./migrations"

// bootstrapSchema applies any pending migrations against the configured
// default database before serving requests. It is a no-op when no
// default database is configured, so the broker still runs purely off
// generic/json data sources in development.
func bootstrapSchema(cfg *config.Config, log *slog.Logger) error {
	dbc, _, ok := cfg.Lookup("")
	if !ok || dbc.Connection == "" {
		log.Info("schema bootstrap: no default database configured, skipping")
		return nil
	}

	if _, err := os.Stat(migrationsDir); err != nil {
		log.Info("schema bootstrap: no migrations directory, skipping")
		return nil
	}

	m, err := migrate.New("file://"+migrationsDir, dbc.Connection)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema bootstrap: already up to date")
			return nil
		}
		return err
	}
	log.Info("schema bootstrap: applied pending migrations")
	return nil
}
