package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"briefer/internal/logging"
	"briefer/internal/schema"
)

// JSONFileHistory keeps every user's history in one JSON document,
// {"<user>": [brief, ...]}. Append is read-modify-write, so it is guarded
// by a process mutex plus an advisory lock file (<path>.lock) for other
// processes sharing the document. The document is replaced atomically.
type JSONFileHistory struct {
	mu   sync.Mutex
	path string
}

// NewJSONFileHistory returns a store backed by the document at path.
func NewJSONFileHistory(path string) *JSONFileHistory {
	return &JSONFileHistory{path: path}
}

type historyDoc map[string][]schema.Brief

func (h *JSONFileHistory) load() (historyDoc, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return historyDoc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return historyDoc{}, nil
	}
	doc := historyDoc{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal history file: %w", err)
	}
	return doc, nil
}

// History implements HistoryStore.
func (h *JSONFileHistory) History(ctx context.Context, userID string) ([]schema.Brief, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, err := lockFile(h.path + ".lock")
	if errors.Is(err, fs.ErrNotExist) {
		// No directory yet, so no history either.
		return []schema.Brief{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	doc, err := h.load()
	if err != nil {
		return nil, err
	}
	briefs := doc[userID]
	if briefs == nil {
		briefs = []schema.Brief{}
	}
	return briefs, nil
}

// Append implements HistoryStore.
func (h *JSONFileHistory) Append(ctx context.Context, userID string, b *schema.Brief) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	lock, err := lockFile(h.path + ".lock")
	if err != nil {
		return err
	}
	defer lock.Unlock()

	doc, err := h.load()
	if err != nil {
		return err
	}
	doc[userID] = append(doc[userID], *b)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}

	logging.StoreDebug("Appended brief %s for user %s to %s", b.BriefID, userID, h.path)
	return nil
}

// Close implements HistoryStore.
func (h *JSONFileHistory) Close() error {
	return nil
}
