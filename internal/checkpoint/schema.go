// Package checkpoint provides SQLite persistence for population snapshots.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the checkpoint store.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS checkpoints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    tick INTEGER NOT NULL,
    label TEXT,
    metrics TEXT  -- JSON metrics snapshot
);

-- One row per live agent (denormalized across tiers; lower tiers leave
-- motion and adaptation columns at their zero values)
CREATE TABLE IF NOT EXISTS agents (
    checkpoint_id INTEGER NOT NULL REFERENCES checkpoints(id) ON DELETE CASCADE,
    agent_id INTEGER NOT NULL,
    tier INTEGER NOT NULL,
    predicted REAL NOT NULL,
    wake_mask INTEGER NOT NULL,
    x REAL NOT NULL DEFAULT 0,
    y REAL NOT NULL DEFAULT 0,
    vx REAL NOT NULL DEFAULT 0,
    vy REAL NOT NULL DEFAULT 0,
    health REAL NOT NULL DEFAULT 0,
    activity REAL NOT NULL DEFAULT 0,
    low_streak INTEGER NOT NULL DEFAULT 0,
    eagerness REAL NOT NULL DEFAULT 0,
    share_prob REAL NOT NULL DEFAULT 0,
    eligibility REAL NOT NULL DEFAULT 0,
    retries INTEGER NOT NULL DEFAULT 0,
    actions TEXT,  -- JSON array
    PRIMARY KEY (checkpoint_id, agent_id)
);
CREATE INDEX IF NOT EXISTS idx_agents_checkpoint ON agents(checkpoint_id);

CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);
`

// InitSchema creates the checkpoint tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_meta`).Scan(&count); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_meta (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("writing schema version: %w", err)
		}
	}
	return nil
}
