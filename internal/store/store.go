// Package store persists briefs per user and run checkpoints.
//
// Three history backends share one interface:
//   - LocalStore: SQLite (modernc.org/sqlite), the default; append is one INSERT.
//   - JSONFileHistory: a single {user: [brief, ...]} JSON document guarded by flock(2).
//   - FirestoreHistory: users/{user}/briefs/<auto id> documents ordered by seq.
package store

import (
	"context"
	"fmt"
	"strings"

	"briefer/internal/schema"
)

// HistoryStore is the durable per-user append log of briefs.
type HistoryStore interface {
	// History returns the user's briefs, oldest first. Unknown users have none.
	History(ctx context.Context, userID string) ([]schema.Brief, error)
	// Append adds b to the end of the user's history.
	Append(ctx context.Context, userID string, b *schema.Brief) error
	Close() error
}

// Options selects and configures a history backend.
type Options struct {
	Backend             string // sqlite, json, firestore
	DatabasePath        string
	JSONPath            string
	FirestoreProject    string
	FirestoreCollection string
}

// OpenHistory opens the backend named by opts.Backend.
func OpenHistory(ctx context.Context, opts Options) (HistoryStore, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "sqlite":
		return NewLocalStore(opts.DatabasePath)
	case "json":
		return NewJSONFileHistory(opts.JSONPath), nil
	case "firestore":
		return NewFirestoreHistory(ctx, opts.FirestoreProject, opts.FirestoreCollection)
	default:
		return nil, fmt.Errorf("unknown history backend: %q", opts.Backend)
	}
}
