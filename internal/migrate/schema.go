// Package migrate creates the PostgreSQL objects the service needs.
package migrate

import (
	"context"
	"database/sql"

	"regionmap/internal/logger"
)

// Execer is the subset of *sql.DB used here.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var statements = []string{
	`CREATE TABLE IF NOT EXISTS _map_prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_map_prefs_updated ON _map_prefs(updated_at)`,
}

// EnsureSchema runs idempotent CREATE ... IF NOT EXISTS statements.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, s := range statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
