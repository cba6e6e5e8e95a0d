package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSink writes one JSON file per checkpoint named
// <run>_<unix-ms>_<step>.json under Dir.
type FileSink struct {
	mu  sync.Mutex
	dir string
}

// NewFileSink returns a FileSink rooted at dir. The directory is created lazily.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Dir returns the directory checkpoints are written to.
func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) Write(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create trace dir: %w", err)
	}
	name := fmt.Sprintf("%s_%d_%s.json", safeName(cp.RunID), cp.At.UnixMilli(), safeName(cp.Step))
	path := filepath.Join(s.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, cp.Doc, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// safeName keeps checkpoint file names inside the trace dir.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
}
