package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"briefer/internal/schema"
)

// RunState is everything one run knows. Identity is fixed at creation;
// every artifact field is written at most once, through merge.
type RunState struct {
	RunID     string
	Topic     string
	Depth     int
	FollowUp  bool
	UserID    string
	StartedAt time.Time

	HistorySummary string
	Steps          []schema.Step
	Hits           []schema.Hit
	Pages          []schema.Page
	Summaries      []schema.SourceSummary
	Brief          *schema.Brief

	written field
}

func newRunState(runID string, req Request, started time.Time) *RunState {
	return &RunState{
		RunID:     runID,
		Topic:     strings.TrimSpace(req.Topic),
		Depth:     req.Depth,
		FollowUp:  req.FollowUp,
		UserID:    req.UserID,
		StartedAt: started,
	}
}

// Delta is a stage's partial update. A nil field is "not written"; stages
// use empty non-nil slices for empty results.
type Delta struct {
	HistorySummary *string
	Steps          []schema.Step
	Hits           []schema.Hit
	Pages          []schema.Page
	Summaries      []schema.SourceSummary
	Brief          *schema.Brief

	// Checkpoint is the payload recorded for the stage. Nil skips it.
	Checkpoint any
}

type field uint8

const (
	fieldHistorySummary field = 1 << iota
	fieldSteps
	fieldHits
	fieldPages
	fieldSummaries
	fieldBrief
)

var fieldNames = []string{"history_summary", "planning_steps", "search_results", "fetched_pages", "source_summaries", "final_brief"}

func (f field) String() string {
	var names []string
	for i, n := range fieldNames {
		if f&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, ",")
}

func (d Delta) fields() field {
	var f field
	if d.HistorySummary != nil {
		f |= fieldHistorySummary
	}
	if d.Steps != nil {
		f |= fieldSteps
	}
	if d.Hits != nil {
		f |= fieldHits
	}
	if d.Pages != nil {
		f |= fieldPages
	}
	if d.Summaries != nil {
		f |= fieldSummaries
	}
	if d.Brief != nil {
		f |= fieldBrief
	}
	return f
}

var errFieldRewritten = errors.New("run state field already written")

// merge applies d on behalf of stage. Rewriting a field is refused, except
// the brief rewrite by post-processing.
func (s *RunState) merge(stage string, d Delta) error {
	f := d.fields()
	conflict := s.written & f
	if stage == StagePostProcess {
		conflict &^= fieldBrief
	}
	if conflict != 0 {
		return fmt.Errorf("%w: %s by %s", errFieldRewritten, conflict, stage)
	}

	if d.HistorySummary != nil {
		s.HistorySummary = *d.HistorySummary
	}
	if d.Steps != nil {
		s.Steps = d.Steps
	}
	if d.Hits != nil {
		s.Hits = d.Hits
	}
	if d.Pages != nil {
		s.Pages = d.Pages
	}
	if d.Summaries != nil {
		s.Summaries = d.Summaries
	}
	if d.Brief != nil {
		s.Brief = d.Brief
	}
	s.written |= f
	return nil
}
