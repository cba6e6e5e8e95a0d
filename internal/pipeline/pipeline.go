// Package pipeline turns a topic into a validated research brief.
//
// A run walks a fixed sequence of stages:
//
//	context_summary → planning → search → fetch → per_source → synthesis → post_process
//
// Each stage reads the RunState and returns a Delta; the orchestrator merges
// it and records a checkpoint tagged with the stage name. Stages degrade to
// deterministic fallbacks instead of failing, so a run only errors on
// cancellation, an invalid final brief, or a history-store failure.
package pipeline

import (
	"context"
	"errors"
	"time"

	"briefer/internal/checkpoint"
	"briefer/internal/logging"
	"briefer/internal/perception"
	"briefer/internal/retry"
	"briefer/internal/schema"
	"briefer/internal/store"
	"briefer/internal/tools/research"

	"github.com/google/uuid"
)

// DefaultFetchConcurrency bounds parallel page fetches.
const DefaultFetchConcurrency = 4

// Deps are the collaborators a Pipeline is built from. They are created once
// per process and shared by every run.
type Deps struct {
	Models   perception.Models
	Searcher research.Searcher
	Fetcher  research.Fetcher
	History  store.HistoryStore
	// Recorder may be nil, in which case nothing is checkpointed.
	Recorder *checkpoint.Recorder
}

// Options tune a Pipeline.
type Options struct {
	Retry            retry.Config
	FetchConcurrency int
}

// DefaultOptions returns the standard retry policy and fetch pool size.
func DefaultOptions() Options {
	return Options{
		Retry:            retry.DefaultConfig(),
		FetchConcurrency: DefaultFetchConcurrency,
	}
}

// Pipeline runs briefs. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	models           perception.Models
	searcher         research.Searcher
	fetcher          research.Fetcher
	history          store.HistoryStore
	recorder         *checkpoint.Recorder
	retry            retry.Config
	fetchConcurrency int
	now              func() time.Time
}

// New validates deps and builds a Pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if err := deps.Models.Validate(); err != nil {
		return nil, err
	}
	if deps.Searcher == nil {
		return nil, errors.New("pipeline: searcher is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("pipeline: fetcher is required")
	}
	if deps.History == nil {
		return nil, errors.New("pipeline: history store is required")
	}
	if opts.Retry.MaxRetries < 0 {
		opts.Retry.MaxRetries = 0
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = checkpoint.Nop()
	}
	return &Pipeline{
		models:           deps.Models,
		searcher:         deps.Searcher,
		fetcher:          deps.Fetcher,
		history:          deps.History,
		recorder:         recorder,
		retry:            opts.Retry,
		fetchConcurrency: opts.FetchConcurrency,
		now:              time.Now,
	}, nil
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{StageContextSummary, p.contextSummary},
		{StagePlanning, p.planning},
		{StageSearch, p.search},
		{StageFetch, p.fetch},
		{StagePerSource, p.perSource},
		{StageSynthesis, p.synthesis},
		{StagePostProcess, p.postProcess},
	}
}

// Run executes one request end to end and returns the persisted brief.
// Every error is a *Error; use errors.Is with ErrInput, ErrComputation or
// ErrPersistence to classify it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*schema.Brief, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	st := newRunState(runID, req, p.now())

	log := logging.Get(logging.CategoryPipeline).With("run_id", runID)
	log.Info("run started: topic=%q depth=%d follow_up=%v user=%s", st.Topic, st.Depth, st.FollowUp, st.UserID)
	timer := logging.StartTimer(logging.CategoryPipeline, "run "+runID)
	defer timer.Stop()

	for _, s := range p.stages() {
		if err := ctx.Err(); err != nil {
			log.Warn("run canceled before %s: %v", s.name, err)
			return nil, computationError(s.name, err)
		}

		start := time.Now()
		delta, err := s.run(ctx, st)
		if err != nil {
			log.Error("stage %s failed: %v", s.name, err)
			return nil, computationError(s.name, err)
		}
		if err := st.merge(s.name, delta); err != nil {
			return nil, computationError(s.name, err)
		}
		if delta.Checkpoint != nil {
			p.recorder.Record(ctx, runID, s.name, delta.Checkpoint)
		}
		log.Debug("stage %s done in %v", s.name, time.Since(start))
	}

	log.Info("run finished: brief=%s refs=%d summaries=%d", st.Brief.BriefID, len(st.Brief.References), len(st.Brief.SourceSummaries))
	return st.Brief, nil
}
