// Package checkpoint records a snapshot of each stage's output for offline
// inspection. Recording is best-effort: failures are logged, never returned,
// and nothing here is ever read back by the pipeline.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"briefer/internal/logging"
)

// Checkpoint is one snapshot handed to a Sink.
type Checkpoint struct {
	RunID string
	Step  string
	At    time.Time
	// Doc is the JSON document {"step": ..., "state": ...}.
	Doc json.RawMessage
}

// Sink persists checkpoints. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, cp Checkpoint) error
}

// Recorder marshals stage payloads and hands them to a Sink.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder returns a Recorder writing to sink. A nil sink records nothing.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Nop returns a Recorder that drops everything.
func Nop() *Recorder {
	return &Recorder{now: time.Now}
}

type document struct {
	Step  string `json:"step"`
	State any    `json:"state"`
}

// Record snapshots payload under (runID, step).
func (r *Recorder) Record(ctx context.Context, runID, step string, payload any) {
	if r == nil || r.sink == nil {
		return
	}
	doc, err := json.Marshal(document{Step: step, State: payload})
	if err != nil {
		logging.Get(logging.CategoryCheckpoint).Warn("checkpoint %s/%s: marshal failed: %v", runID, step, err)
		return
	}
	cp := Checkpoint{RunID: runID, Step: step, At: r.now(), Doc: doc}
	// A run that was just canceled still leaves its last snapshot behind.
	if err := r.sink.Write(context.WithoutCancel(ctx), cp); err != nil {
		logging.Get(logging.CategoryCheckpoint).Warn("checkpoint %s/%s: write failed: %v", runID, step, err)
		return
	}
	logging.CheckpointDebug("checkpoint %s/%s recorded (%d bytes)", runID, step, len(doc))
}

// MultiSink fans a checkpoint out to every sink; all are attempted.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, cp Checkpoint) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, cp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
