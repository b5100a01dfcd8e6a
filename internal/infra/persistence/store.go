// Package persistence selects the run ledger backend.
package persistence

import (
	"context"
	"fmt"

	"tcrkp/internal/infra/persistence/memory"
	"tcrkp/internal/infra/persistence/postgres"
	"tcrkp/internal/infra/persistence/sqlite"
	"tcrkp/internal/runs"
)

// Driver identifies a concrete ledger implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / dry runs)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Config selects and configures the ledger. An empty Driver means sqlite.
type Config struct {
	Driver      Driver `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Open returns the ledger described by cfg.
func Open(ctx context.Context, cfg Config) (runs.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver %s", driver)
	}
}
