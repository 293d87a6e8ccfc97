package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const photosSchema = `
CREATE TABLE IF NOT EXISTS photos (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	progress     INT NOT NULL DEFAULT 0,
	uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at TIMESTAMPTZ,
	error        TEXT,
	logs         JSONB NOT NULL DEFAULT '[]',
	retry_count  INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_photos_status ON photos (status);
`

// EnsureSchema creates the photos table on first boot. Kept in-process rather
// than as external migrations since there is a single table.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, photosSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
