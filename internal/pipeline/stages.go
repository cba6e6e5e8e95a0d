package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"briefer/internal/extract"
	"briefer/internal/logging"
	"briefer/internal/retry"
	"briefer/internal/schema"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage names, also used as checkpoint step names.
const (
	StageContextSummary = "context_summary"
	StagePlanning       = "planning"
	StageSearch         = "search"
	StageFetch          = "fetch"
	StagePerSource      = "per_source"
	StageSynthesis      = "synthesis"
	StagePostProcess    = "post_process"
)

// Stages lists the stage names in execution order.
var Stages = []string{
	StageContextSummary,
	StagePlanning,
	StageSearch,
	StageFetch,
	StagePerSource,
	StageSynthesis,
	StagePostProcess,
}

type stageFunc func(ctx context.Context, st *RunState) (Delta, error)

type stage struct {
	name string
	run  stageFunc
}

// sourceLimit is the number of search hits requested and of pages
// summarized: clamp(depth*4, 3, 12).
func sourceLimit(depth int) int {
	return min(max(depth*4, 3), 12)
}

// =============================================================================
// CONTEXT SUMMARY
// =============================================================================

func (p *Pipeline) contextSummary(ctx context.Context, st *RunState) (Delta, error) {
	summary := ""
	d := Delta{HistorySummary: &summary}
	d.Checkpoint = map[string]any{"summary": ""}

	if !st.FollowUp {
		return d, nil
	}

	prev, err := p.history.History(ctx, st.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return Delta{}, ctx.Err()
		}
		logging.PipelineWarn("context_summary: history unavailable for %s: %v", st.UserID, err)
		return d, nil
	}
	if len(prev) == 0 {
		return d, nil
	}

	blob, err := json.Marshal(prev)
	if err != nil {
		return Delta{}, fmt.Errorf("marshal history: %w", err)
	}
	prompt := buildContextSummaryPrompt(blob)

	out, err := retry.WithFallback(ctx, p.retry, StageContextSummary,
		func(ctx context.Context) (string, error) {
			return p.models.Fast.Complete(ctx, prompt)
		},
		func(error) string { return "" },
	)
	if err != nil {
		return Delta{}, err
	}

	summary = out
	d.Checkpoint = map[string]any{"summary": out}
	logging.PipelineDebug("context_summary: %d prior briefs -> %d chars", len(prev), len(out))
	return d, nil
}

// =============================================================================
// PLANNING
// =============================================================================

func (p *Pipeline) planning(ctx context.Context, st *RunState) (Delta, error) {
	prompt := buildPlanningPrompt(st.Topic, st.HistorySummary, st.Depth)

	raw, err := retry.WithFallback(ctx, p.retry, StagePlanning,
		func(ctx context.Context) (string, error) {
			return p.models.Fast.Complete(ctx, prompt)
		},
		func(error) string { return "" },
	)
	if err != nil {
		return Delta{}, err
	}

	steps := planSteps(raw)
	return Delta{Steps: steps, Checkpoint: map[string]any{"steps": steps}}, nil
}

// planSteps turns raw planner output into a valid, non-empty step list.
func planSteps(raw string) []schema.Step {
	var entries []any
	if obj, ok := extract.ExtractObject(raw); ok {
		entries, _ = obj["steps"].([]any)
	}
	if len(entries) == 0 {
		return schema.DefaultPlan()
	}

	steps := make([]schema.Step, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			m = map[string]any{}
			logging.PipelineDebug("planning: entry %d is %T, using defaults", i, e)
		}
		s, err := schema.DecodeStep(schema.StepDefaults(m, i))
		if err != nil {
			logging.PipelineDebug("planning: entry %d invalid, using placeholder: %v", i, err)
			s = schema.PlaceholderStep(i)
		}
		s.StepID = uniqueStepID(s.StepID, i, seen)
		seen[s.StepID] = true
		steps = append(steps, s)
	}
	return steps
}

// uniqueStepID keeps id unless it was already used, then falls back to
// s<i+1> and finally to a suffixed form.
func uniqueStepID(id string, i int, seen map[string]bool) string {
	if !seen[id] {
		return id
	}
	id = fmt.Sprintf("s%d", i+1)
	for n := 2; seen[id]; n++ {
		id = fmt.Sprintf("s%d-%d", i+1, n)
	}
	return id
}

// =============================================================================
// SEARCH
// =============================================================================

func (p *Pipeline) search(ctx context.Context, st *RunState) (Delta, error) {
	k := sourceLimit(st.Depth)

	results, err := p.searcher.Search(ctx, st.Topic, k)
	if err != nil {
		if ctx.Err() != nil {
			return Delta{}, ctx.Err()
		}
		logging.PipelineWarn("search: %q failed, continuing with no hits: %v", st.Topic, err)
		results = nil
	}
	if len(results) > k {
		results = results[:k]
	}

	hits := make([]schema.Hit, 0, len(results))
	for i, r := range results {
		hits = append(hits, schema.Hit{
			ID:      fmt.Sprintf("src-%d", i+1),
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}
	return Delta{Hits: hits, Checkpoint: map[string]any{"hits": hits}}, nil
}

// =============================================================================
// FETCH
// =============================================================================

func (p *Pipeline) fetch(ctx context.Context, st *RunState) (Delta, error) {
	targets := make([]schema.Hit, 0, len(st.Hits))
	for _, h := range st.Hits {
		if strings.TrimSpace(h.URL) != "" {
			targets = append(targets, h)
		}
	}

	pages := make([]schema.Page, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fetchConcurrency)
	for i, h := range targets {
		g.Go(func() error {
			text := p.fetcher.Fetch(gctx, h.URL)
			pages[i] = schema.Page{
				ID:    h.ID,
				URL:   h.URL,
				Title: h.Title,
				Text:  schema.Truncate(text, schema.MaxPageText),
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}

	return Delta{Pages: pages, Checkpoint: map[string]any{"count": len(pages)}}, nil
}

// =============================================================================
// PER-SOURCE SUMMARIES
// =============================================================================

func (p *Pipeline) perSource(ctx context.Context, st *RunState) (Delta, error) {
	pages := st.Pages
	if limit := sourceLimit(st.Depth); len(pages) > limit {
		pages = pages[:limit]
	}

	summaries := make([]schema.SourceSummary, 0, len(pages))
	for _, page := range pages {
		rec, err := p.summarizeSource(ctx, page)
		if err != nil {
			return Delta{}, err
		}
		summaries = append(summaries, rec)
		p.recorder.Record(ctx, st.RunID, StagePerSource+"_"+page.ID, rec)
	}
	return Delta{Summaries: summaries, Checkpoint: map[string]any{"count": len(summaries)}}, nil
}

// summarizeSource always yields a summary keyed to page.ID; only
// cancellation is returned as an error.
func (p *Pipeline) summarizeSource(ctx context.Context, page schema.Page) (schema.SourceSummary, error) {
	prompt := buildPerSourcePrompt(page)
	op := StagePerSource + " " + page.ID

	return retry.WithFallback(ctx, p.retry, op,
		func(ctx context.Context) (schema.SourceSummary, error) {
			raw, err := p.models.Fast.Complete(ctx, prompt)
			if err != nil {
				return schema.SourceSummary{}, err
			}
			data, ok := extract.ExtractObject(raw)
			if !ok || len(data) == 0 {
				data = schema.RawSourceRecord(page, raw)
			}
			data["source_id"] = page.ID
			rec, err := schema.DecodeSourceSummary(data)
			if err != nil {
				logging.PipelineDebug("%s: invalid record, using partial fields: %v", op, err)
				return schema.FallbackSourceSummary(page, data), nil
			}
			rec.SourceID = page.ID
			return rec, nil
		},
		func(error) schema.SourceSummary {
			return schema.FallbackSourceSummary(page, nil)
		},
	)
}

// =============================================================================
// SYNTHESIS
// =============================================================================

func (p *Pipeline) synthesis(ctx context.Context, st *RunState) (Delta, error) {
	start := time.Now()

	steps := nonNil(st.Steps)
	sums := nonNil(st.Summaries)
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return Delta{}, fmt.Errorf("marshal steps: %w", err)
	}
	sumsJSON, err := json.Marshal(sums)
	if err != nil {
		return Delta{}, fmt.Errorf("marshal summaries: %w", err)
	}
	prompt := buildSynthesisPrompt(st.Topic, st.Depth, st.UserID, stepsJSON, sumsJSON)

	// The run's own identity and finalized records override whatever the
	// model echoes back for them. Every brief gets a fresh id.
	var stepsDoc, sumsDoc []any
	if err := json.Unmarshal(stepsJSON, &stepsDoc); err != nil {
		return Delta{}, fmt.Errorf("decode steps: %w", err)
	}
	if err := json.Unmarshal(sumsJSON, &sumsDoc); err != nil {
		return Delta{}, fmt.Errorf("decode summaries: %w", err)
	}

	fallback := func(raw string) *schema.Brief {
		return schema.FallbackBrief(st.Topic, st.Depth, st.UserID, raw, steps, sums, time.Since(start))
	}

	var lastRaw string
	brief, err := retry.WithFallback(ctx, p.retry, StageSynthesis,
		func(ctx context.Context) (*schema.Brief, error) {
			raw, err := p.models.Deep.Complete(ctx, prompt)
			if err != nil {
				return nil, err
			}
			lastRaw = raw

			data, ok := extract.ExtractObject(raw)
			if !ok || len(data) == 0 {
				logging.PipelineDebug("synthesis: no structured block, building fallback brief")
				fb := fallback(raw)
				if err := fb.Validate(); err != nil {
					return nil, err
				}
				return fb, nil
			}

			data["brief_id"] = uuid.NewString()
			data["topic"] = st.Topic
			data["depth"] = float64(st.Depth)
			data["user_id"] = st.UserID
			data["planning_steps"] = stepsDoc
			data["source_summaries"] = sumsDoc
			b, err := schema.DecodeBrief(data)
			if err != nil {
				return nil, err
			}
			if b.LatencyMS == nil {
				b.LatencyMS = schema.Ptr(time.Since(start).Milliseconds())
			}
			return b, nil
		},
		func(error) *schema.Brief { return fallback(lastRaw) },
	)
	if err != nil {
		return Delta{}, err
	}
	if err := brief.Validate(); err != nil {
		return Delta{}, fmt.Errorf("fallback brief invalid: %w", err)
	}
	return Delta{Brief: brief, Checkpoint: brief}, nil
}

// =============================================================================
// POST-PROCESS
// =============================================================================

func (p *Pipeline) postProcess(ctx context.Context, st *RunState) (Delta, error) {
	if st.Brief == nil {
		return Delta{}, errors.New("no brief to finalize")
	}
	final := *st.Brief
	final.References = schema.DedupeReferences(st.Brief.References, schema.MaxReferences)
	if !st.StartedAt.IsZero() {
		final.LatencyMS = schema.Ptr(p.now().Sub(st.StartedAt).Milliseconds())
	}
	if err := final.Validate(); err != nil {
		return Delta{}, fmt.Errorf("finalized brief invalid: %w", err)
	}

	if err := p.history.Append(ctx, st.UserID, &final); err != nil {
		return Delta{}, persistenceError(StagePostProcess, err)
	}

	return Delta{
		Brief:      &final,
		Checkpoint: map[string]any{"saved": true, "refs": len(final.References)},
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
