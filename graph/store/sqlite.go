package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/weave-run/weavegraph-go/graph"
	_ "modernc.org/sqlite"
)

// SQLiteCheckpointer is a SQLite-backed Checkpointer, suitable for
// single-process durability with zero external setup.
//
// Schema:
//   - session_checkpoints: full step history, one row per (session_id, step)
//
// LoadLatest selects the highest step for a session, which makes it
// safe to call Save out of order: an older step written after a newer
// one never regresses the latest pointer, since "latest" is computed
// from MAX(step) rather than insertion order.
type SQLiteCheckpointer struct {
	db *sql.DB
}

// NewSQLiteCheckpointer opens (creating if necessary) a SQLite database
// at path and ensures its schema exists. Use ":memory:" for an
// in-process, non-durable database.
func NewSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	c := &SQLiteCheckpointer{db: db}
	if err := c.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCheckpointer) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			payload TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (session_id, step)
		)
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create session_checkpoints table: %w", err)
	}
	if _, err := c.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_session_checkpoints_session ON session_checkpoints(session_id, step DESC)"); err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *SQLiteCheckpointer) Close() error {
	return c.db.Close()
}

// Save inserts checkpoint as a new row in the step history, replacing
// any existing row for the same (session, step).
func (c *SQLiteCheckpointer) Save(ctx context.Context, checkpoint graph.Checkpoint) error {
	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return graph.OtherCheckpointError("marshal checkpoint", err)
	}

	const query = `
		INSERT INTO session_checkpoints (session_id, step, payload, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, step) DO UPDATE SET
			payload = excluded.payload,
			idempotency_key = excluded.idempotency_key,
			created_at = excluded.created_at
	`
	if _, err := c.db.ExecContext(ctx, query,
		checkpoint.SessionID, checkpoint.Step, string(payload), checkpoint.IdempotencyKey, checkpoint.CreatedAt,
	); err != nil {
		return graph.BackendError("insert checkpoint", err)
	}
	return nil
}

// SaveWithConcurrencyCheck saves checkpoint only if the session's
// current max step equals expectedLastStep, inside a transaction to
// avoid a race between the check and the insert.
func (c *SQLiteCheckpointer) SaveWithConcurrencyCheck(ctx context.Context, checkpoint graph.Checkpoint, expectedLastStep uint64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return graph.BackendError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentMax sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(step) FROM session_checkpoints WHERE session_id = ?", checkpoint.SessionID,
	).Scan(&currentMax); err != nil {
		return graph.BackendError("read current step", err)
	}

	var observed uint64
	if currentMax.Valid {
		observed = uint64(currentMax.Int64)
	}
	if currentMax.Valid && observed != expectedLastStep {
		return graph.BackendError("concurrent write detected", nil)
	}
	if !currentMax.Valid && expectedLastStep != 0 {
		return graph.BackendError("concurrent write detected", nil)
	}

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return graph.OtherCheckpointError("marshal checkpoint", err)
	}
	const insert = `
		INSERT INTO session_checkpoints (session_id, step, payload, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, step) DO UPDATE SET
			payload = excluded.payload,
			idempotency_key = excluded.idempotency_key,
			created_at = excluded.created_at
	`
	if _, err := tx.ExecContext(ctx, insert,
		checkpoint.SessionID, checkpoint.Step, string(payload), checkpoint.IdempotencyKey, checkpoint.CreatedAt,
	); err != nil {
		return graph.BackendError("insert checkpoint", err)
	}

	if err := tx.Commit(); err != nil {
		return graph.BackendError("commit transaction", err)
	}
	return nil
}

// LoadLatest returns the checkpoint with the highest step for sessionID.
func (c *SQLiteCheckpointer) LoadLatest(ctx context.Context, sessionID string) (graph.Checkpoint, error) {
	const query = `
		SELECT payload FROM session_checkpoints
		WHERE session_id = ?
		ORDER BY step DESC
		LIMIT 1
	`
	var payload string
	err := c.db.QueryRowContext(ctx, query, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return graph.Checkpoint{}, graph.NotFoundError(sessionID)
	}
	if err != nil {
		return graph.Checkpoint{}, graph.BackendError("query latest checkpoint", err)
	}

	var cp graph.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return graph.Checkpoint{}, graph.OtherCheckpointError("unmarshal checkpoint", err)
	}
	return cp, nil
}

// ListSessions enumerates distinct session ids with at least one
// checkpoint row.
func (c *SQLiteCheckpointer) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT session_id FROM session_checkpoints ORDER BY session_id")
	if err != nil {
		return nil, graph.BackendError("query session ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, graph.BackendError("scan session id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, graph.BackendError("iterate session ids", err)
	}
	return ids, nil
}

var (
	_ graph.Checkpointer            = (*SQLiteCheckpointer)(nil)
	_ graph.ConcurrencyCheckpointer = (*SQLiteCheckpointer)(nil)
)
