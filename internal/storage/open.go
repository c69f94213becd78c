package storage

import (
	"context"
	"fmt"
	"strings"
)

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverLocal    = "local"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver      string
	Dir         string
	SQLitePath  string
	DatabaseURL string
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return Nop{}, nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverLocal:
		return NewLocal(cfg.Dir)
	case DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres storage: DATABASE_URL is required")
		}
		return ConnectPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
