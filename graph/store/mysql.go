package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weave-run/weavegraph-go/graph"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLCheckpointer is a MySQL/MariaDB-backed Checkpointer for
// production deployments where sessions must survive process restarts
// and be resumable from any worker.
//
// Schema:
//   - session_checkpoints: full step history, one row per (session_id, step)
type MySQLCheckpointer struct {
	db *sql.DB
}

// NewMySQLCheckpointer opens a connection pool for dsn and ensures the
// schema exists. dsn follows the go-sql-driver/mysql DSN format, e.g.
// "user:pass@tcp(127.0.0.1:3306)/weavegraph?parseTime=true".
func NewMySQLCheckpointer(dsn string) (*MySQLCheckpointer, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	c := &MySQLCheckpointer{db: db}
	if err := c.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *MySQLCheckpointer) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id VARCHAR(255) NOT NULL,
			step BIGINT UNSIGNED NOT NULL,
			payload JSON NOT NULL,
			idempotency_key VARCHAR(128) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (session_id, step),
			INDEX idx_session_latest (session_id, step DESC)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create session_checkpoints table: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *MySQLCheckpointer) Close() error {
	return c.db.Close()
}

// Save inserts or replaces the row for (checkpoint.SessionID, checkpoint.Step).
func (c *MySQLCheckpointer) Save(ctx context.Context, checkpoint graph.Checkpoint) error {
	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return graph.OtherCheckpointError("marshal checkpoint", err)
	}

	const query = `
		INSERT INTO session_checkpoints (session_id, step, payload, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			idempotency_key = VALUES(idempotency_key),
			created_at = VALUES(created_at)
	`
	if _, err := c.db.ExecContext(ctx, query,
		checkpoint.SessionID, checkpoint.Step, string(payload), checkpoint.IdempotencyKey, checkpoint.CreatedAt,
	); err != nil {
		return graph.BackendError("insert checkpoint", err)
	}
	return nil
}

// SaveWithConcurrencyCheck saves checkpoint only if the session's
// current max step equals expectedLastStep, guarded inside a
// transaction with a row lock on the session's existing rows.
func (c *MySQLCheckpointer) SaveWithConcurrencyCheck(ctx context.Context, checkpoint graph.Checkpoint, expectedLastStep uint64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return graph.BackendError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentMax sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(step) FROM session_checkpoints WHERE session_id = ? FOR UPDATE", checkpoint.SessionID,
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
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			idempotency_key = VALUES(idempotency_key),
			created_at = VALUES(created_at)
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
func (c *MySQLCheckpointer) LoadLatest(ctx context.Context, sessionID string) (graph.Checkpoint, error) {
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
func (c *MySQLCheckpointer) ListSessions(ctx context.Context) ([]string, error) {
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
	_ graph.Checkpointer            = (*MySQLCheckpointer)(nil)
	_ graph.ConcurrencyCheckpointer = (*MySQLCheckpointer)(nil)
)
