package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
	"github.com/nvandessel/swarmlod/internal/engine"
)

// Store persists population snapshots to a SQLite database. It is safe for
// use from one goroutine at a time; SQLite works best with a single writer.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Info describes one saved checkpoint.
type Info struct {
	ID        int64
	CreatedAt time.Time
	Tick      uint64
	Label     string
	Agents    int
}

// Open creates or opens the checkpoint database under dir (the file is
// dir/swarm.db).
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	dbPath := filepath.Join(dir, "swarm.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Save writes a snapshot and returns the new checkpoint ID.
func (s *Store) Save(ctx context.Context, rows []engine.SnapshotRow, tick uint64, label string, metrics engine.Metrics) (int64, error) {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return 0, fmt.Errorf("encoding metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (created_at, tick, label, metrics) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), tick, label, string(metricsJSON))
	if err != nil {
		return 0, fmt.Errorf("inserting checkpoint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading checkpoint id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO agents
		(checkpoint_id, agent_id, tier, predicted, wake_mask,
		 x, y, vx, vy, health, activity, low_streak,
		 eagerness, share_prob, eligibility, retries, actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing agent insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		actionsJSON, err := json.Marshal(r.Row.Actions)
		if err != nil {
			return 0, fmt.Errorf("encoding actions for agent %d: %w", r.Row.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			id, int64(r.Row.ID), int(r.Tier), r.Row.Predicted, int64(r.Row.Wake),
			r.Row.X, r.Row.Y, r.Row.VX, r.Row.VY, r.Row.Health, r.Row.Activity, r.Row.LowStreak,
			r.Row.RL.Eagerness, r.Row.RL.ShareProb, r.Row.RL.Eligibility, r.Row.Retries,
			string(actionsJSON)); err != nil {
			return 0, fmt.Errorf("inserting agent %d: %w", r.Row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing checkpoint: %w", err)
	}
	return id, nil
}

// Load reads the checkpoint with the given ID.
func (s *Store) Load(ctx context.Context, id int64) ([]engine.SnapshotRow, uint64, error) {
	var tick uint64
	if err := s.db.QueryRowContext(ctx, `SELECT tick FROM checkpoints WHERE id = ?`, id).Scan(&tick); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, fmt.Errorf("checkpoint %d not found", id)
		}
		return nil, 0, fmt.Errorf("reading checkpoint %d: %w", id, err)
	}

	dbRows, err := s.db.QueryContext(ctx, `SELECT
		agent_id, tier, predicted, wake_mask,
		x, y, vx, vy, health, activity, low_streak,
		eagerness, share_prob, eligibility, retries, actions
		FROM agents WHERE checkpoint_id = ? ORDER BY agent_id`, id)
	if err != nil {
		return nil, 0, fmt.Errorf("reading agents: %w", err)
	}
	defer dbRows.Close()

	var out []engine.SnapshotRow
	for dbRows.Next() {
		var (
			agentID, wake, tier, lowStreak, retries int64
			r                                       columnar.CognitiveRow
			actionsJSON                             string
		)
		if err := dbRows.Scan(
			&agentID, &tier, &r.Predicted, &wake,
			&r.X, &r.Y, &r.VX, &r.VY, &r.Health, &r.Activity, &lowStreak,
			&r.RL.Eagerness, &r.RL.ShareProb, &r.RL.Eligibility, &retries,
			&actionsJSON); err != nil {
			return nil, 0, fmt.Errorf("scanning agent row: %w", err)
		}
		r.ID = agent.ID(agentID)
		r.Wake = agent.TriggerMask(wake)
		r.LowStreak = int(lowStreak)
		r.Retries = int(retries)
		if actionsJSON != "" {
			if err := json.Unmarshal([]byte(actionsJSON), &r.Actions); err != nil {
				return nil, 0, fmt.Errorf("decoding actions for agent %d: %w", agentID, err)
			}
		}
		out = append(out, engine.SnapshotRow{Tier: agent.Tier(tier), Row: r})
	}
	if err := dbRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating agents: %w", err)
	}
	return out, tick, nil
}

// Latest returns the most recent checkpoint's ID, or an error when the store
// is empty.
func (s *Store) Latest(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM checkpoints ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no checkpoints saved")
	}
	if err != nil {
		return 0, fmt.Errorf("reading latest checkpoint: %w", err)
	}
	return id, nil
}

// List returns all saved checkpoints, newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		c.id, c.created_at, c.tick, COALESCE(c.label, ''),
		(SELECT COUNT(*) FROM agents a WHERE a.checkpoint_id = c.id)
		FROM checkpoints c ORDER BY c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var created string
		if err := rows.Scan(&info.ID, &created, &info.Tick, &info.Label, &info.Agents); err != nil {
			return nil, fmt.Errorf("scanning checkpoint row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a checkpoint and its agent rows.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting checkpoint %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("checkpoint %d not found", id)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
