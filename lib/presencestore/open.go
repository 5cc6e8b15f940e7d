// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presencestore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/presence/lib/presence"
)

// Backend names accepted by [Config].
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of BackendMemory, BackendSQLite, BackendPostgres.
	Backend string `yaml:"backend" json:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path"`

	// PoolSize is the SQLite connection count. Zero means the pool
	// default.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn" json:"dsn"`
}

// Validate checks that the fields the chosen backend needs are set.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
		return nil
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
		return nil
	case "":
		return fmt.Errorf("store.backend is required")
	default:
		return fmt.Errorf("unknown store backend %q (want %s, %s, or %s)",
			c.Backend, BackendMemory, BackendSQLite, BackendPostgres)
	}
}

// Open returns the configured Store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (presence.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		return OpenSQLite(cfg.Path, cfg.PoolSize, logger)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN, logger)
	default:
		return NewMemory(), nil
	}
}
