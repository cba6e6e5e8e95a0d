package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"briefer/internal/logging"
	"briefer/internal/schema"

	_ "modernc.org/sqlite"
)

// LocalStore is the SQLite-backed history store. Its database also hosts the
// run_checkpoints table used by CheckpointStore.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; concurrent runs queue on the connection
	// instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("Failed to apply %q: %v", pragma, err)
		}
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		logging.Get(logging.CategoryStore).Error("Failed to ensure history schema: %v", err)
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}

	logging.Store("LocalStore opened at %s", path)
	return s, nil
}

// ensureSchema creates the history and checkpoint tables if they don't exist.
func (s *LocalStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS brief_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		brief_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_history_user ON brief_history(user_id, seq);

	CREATE TABLE IF NOT EXISTS run_checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON run_checkpoints(run_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying connection so other tables can share the file.
func (s *LocalStore) DB() *sql.DB {
	return s.db
}

// Path returns the database path.
func (s *LocalStore) Path() string {
	return s.dbPath
}

// History returns the user's briefs in append order.
func (s *LocalStore) History(ctx context.Context, userID string) ([]schema.Brief, error) {
	timer := logging.StartTimer(logging.CategoryStore, "History")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM brief_history WHERE user_id = ? ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	briefs := make([]schema.Brief, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		var b schema.Brief
		if err := json.Unmarshal([]byte(payload), &b); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping corrupt history row for %s: %v", userID, err)
			continue
		}
		briefs = append(briefs, b)
	}
	return briefs, rows.Err()
}

// Append stores b as the newest entry of the user's history.
func (s *LocalStore) Append(ctx context.Context, userID string, b *schema.Brief) error {
	timer := logging.StartTimer(logging.CategoryStore, "Append")
	defer timer.Stop()

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal brief: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO brief_history (user_id, brief_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		userID, b.BriefID, string(payload), time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to append brief: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}

	logging.StoreDebug("Appended brief %s for user %s", b.BriefID, userID)
	return nil
}

// Users lists every user with at least one brief, most recent first.
func (s *LocalStore) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM brief_history GROUP BY user_id ORDER BY MAX(seq) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
