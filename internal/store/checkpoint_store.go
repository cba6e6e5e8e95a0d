package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"briefer/internal/checkpoint"
	"briefer/internal/logging"
)

// CheckpointStore is a checkpoint.Sink writing to the run_checkpoints table.
type CheckpointStore struct {
	db *sql.DB
	mu sync.Mutex
}

// CheckpointRecord is one stored checkpoint, for offline inspection.
type CheckpointRecord struct {
	RunID      string
	Step       string
	RecordedAt time.Time
	Doc        string
}

// NewCheckpointStore shares the LocalStore database.
func NewCheckpointStore(local *LocalStore) *CheckpointStore {
	return &CheckpointStore{db: local.DB()}
}

var _ checkpoint.Sink = (*CheckpointStore)(nil)

// Write implements checkpoint.Sink.
func (c *CheckpointStore) Write(ctx context.Context, cp checkpoint.Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO run_checkpoints (run_id, step, recorded_at, doc) VALUES (?, ?, ?, ?)`,
		cp.RunID, cp.Step, cp.At.UnixMilli(), string(cp.Doc))
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// ForRun returns a run's checkpoints in the order they were recorded.
func (c *CheckpointStore) ForRun(ctx context.Context, runID string) ([]CheckpointRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT run_id, step, recorded_at, doc FROM run_checkpoints WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []CheckpointRecord
	for rows.Next() {
		var rec CheckpointRecord
		var ms int64
		if err := rows.Scan(&rec.RunID, &rec.Step, &ms, &rec.Doc); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		rec.RecordedAt = time.UnixMilli(ms)
		out = append(out, rec)
	}
	logging.StoreDebug("Loaded %d checkpoints for run %s", len(out), runID)
	return out, rows.Err()
}
