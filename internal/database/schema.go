package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used for schema setup.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema statements, applied in order. Each is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS sync_events (
		id          UUID PRIMARY KEY,
		instance    TEXT NOT NULL,
		station     INTEGER NOT NULL,
		source      TEXT NOT NULL,
		key         TEXT NOT NULL,
		payload     JSONB,
		error_kind  TEXT,
		schedule_id BIGINT NOT NULL DEFAULT 0,
		received_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sync_events_key_received_idx
		ON sync_events (station, key, received_at)`,
	`CREATE INDEX IF NOT EXISTS sync_events_schedule_idx
		ON sync_events (station, schedule_id)`,
}

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
