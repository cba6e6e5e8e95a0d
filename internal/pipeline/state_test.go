package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"briefer/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_WriteOnce(t *testing.T) {
	st := newRunState("r1", baseRequest(), time.Now())

	summary := "ctx"
	require.NoError(t, st.merge(StageContextSummary, Delta{HistorySummary: &summary}))
	assert.Equal(t, "ctx", st.HistorySummary)

	require.NoError(t, st.merge(StagePlanning, Delta{Steps: schema.DefaultPlan()}))
	err := st.merge(StageSearch, Delta{Steps: []schema.Step{}, Hits: []schema.Hit{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errFieldRewritten))
	assert.Contains(t, err.Error(), "planning_steps")
	assert.Nil(t, st.Hits, "a rejected delta must not be partially applied")

	empty := ""
	require.Error(t, st.merge(StagePlanning, Delta{HistorySummary: &empty}))
}

func TestMerge_OnlyPostProcessRewritesBrief(t *testing.T) {
	st := newRunState("r1", baseRequest(), time.Now())
	draft := &schema.Brief{BriefID: "draft"}
	require.NoError(t, st.merge(StageSynthesis, Delta{Brief: draft}))

	require.Error(t, st.merge(StageSynthesis, Delta{Brief: &schema.Brief{BriefID: "again"}}))

	final := &schema.Brief{BriefID: "final"}
	require.NoError(t, st.merge(StagePostProcess, Delta{Brief: final}))
	assert.Equal(t, "final", st.Brief.BriefID)

	require.NoError(t, st.merge(StageFetch, Delta{Pages: []schema.Page{}}))
	require.Error(t, st.merge(StagePostProcess, Delta{Pages: []schema.Page{}, Brief: final}))
}

func TestPlanSteps(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
		check   func(t *testing.T, steps []schema.Step)
	}{
		{
			name:    "gibberish",
			raw:     "blah blah no json here",
			wantIDs: []string{"s1"},
			check: func(t *testing.T, steps []schema.Step) {
				assert.Equal(t, "Initial scoping", steps[0].Description)
			},
		},
		{
			name:    "empty steps array",
			raw:     `{"steps": []}`,
			wantIDs: []string{"s1"},
		},
		{
			name:    "steps not an array",
			raw:     `{"steps": "first do this"}`,
			wantIDs: []string{"s1"},
		},
		{
			name:    "defaults filled",
			raw:     `{"steps": [{}, {"description": "Two"}]}`,
			wantIDs: []string{"s1", "s2"},
			check: func(t *testing.T, steps []schema.Step) {
				assert.Equal(t, "TBD", steps[0].Description)
				require.NotNil(t, steps[0].EstimatedTimeMinutes)
				assert.Equal(t, 5, *steps[0].EstimatedTimeMinutes)
				assert.Equal(t, "Two", steps[1].Description)
			},
		},
		{
			name:    "malformed entry replaced",
			raw:     `{"steps": [{"step_id": "a", "description": "ok"}, {"step_id": "b", "description": "bad", "estimated_time_minutes": -4}]}`,
			wantIDs: []string{"a", "s2"},
			check: func(t *testing.T, steps []schema.Step) {
				assert.Equal(t, "TBD", steps[1].Description)
			},
		},
		{
			name:    "duplicate ids",
			raw:     `{"steps": [{"step_id": "s2", "description": "x"}, {"step_id": "s2", "description": "y"}, {"step_id": "s2", "description": "z"}]}`,
			wantIDs: []string{"s2", "s2-2", "s3"},
		},
		{
			name:    "non-object entry",
			raw:     `{"steps": ["just text"]}`,
			wantIDs: []string{"s1"},
			check: func(t *testing.T, steps []schema.Step) {
				assert.Equal(t, "TBD", steps[0].Description)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := planSteps(tt.raw)
			ids := make([]string, 0, len(steps))
			for _, s := range steps {
				require.NoError(t, s.Validate())
				ids = append(ids, s.StepID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			if tt.check != nil {
				tt.check(t, steps)
			}
		})
	}
}

func TestSourceLimit(t *testing.T) {
	for depth, want := range map[int]int{1: 4, 2: 8, 3: 12, 5: 12, 100: 12} {
		assert.Equal(t, want, sourceLimit(depth), "depth %d", depth)
	}
	assert.Equal(t, 3, sourceLimit(0))
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateBytes("abc", 10))
	assert.Equal(t, "ab", truncateBytes("abcdef", 2))
	// "é" is two bytes; cutting through it drops the partial rune.
	assert.Equal(t, "a", truncateBytes("aé", 2))
	long := strings.Repeat("x", historyBlobLimit+100)
	assert.Len(t, buildContextSummaryPrompt([]byte(long)), len(contextSummaryPrompt)-2+historyBlobLimit)
}

func TestErrorKinds(t *testing.T) {
	in := inputError("Topic too short")
	assert.ErrorIs(t, in, ErrInput)
	assert.NotErrorIs(t, in, ErrComputation)
	assert.Equal(t, "Topic too short", in.Error())

	comp := computationError(StageSynthesis, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, comp, ErrComputation)
	assert.ErrorIs(t, comp, context.DeadlineExceeded)
	assert.Equal(t, "synthesis: wrapped: context deadline exceeded", comp.Error())

	pers := computationError(StagePostProcess, persistenceError(StagePostProcess, errors.New("locked")))
	assert.ErrorIs(t, pers, ErrPersistence)
	assert.Equal(t, KindPersistence, KindOf(pers))
	assert.Equal(t, KindComputation, KindOf(errors.New("plain")))
	assert.Equal(t, "persistence", KindPersistence.String())
}

func TestStagesOrder(t *testing.T) {
	h := newHarness(t)
	var names []string
	for _, s := range h.p.stages() {
		names = append(names, s.name)
	}
	assert.Equal(t, Stages, names)
}
