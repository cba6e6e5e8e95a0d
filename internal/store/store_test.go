package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefer/internal/checkpoint"
	"briefer/internal/schema"
)

func sampleBrief(id string) *schema.Brief {
	return &schema.Brief{
		BriefID:     id,
		Topic:       "grid-scale storage",
		GeneratedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Depth:       1,
		UserID:      "u1",
		Summary:     "summary " + id,
		PlanningSteps: []schema.Step{
			{StepID: "s1", Description: "Initial scoping", EstimatedTimeMinutes: schema.Ptr(5)},
		},
		SourceSummaries: []schema.SourceSummary{
			{SourceID: "src-1", Title: "A", URL: "https://a.io/", Summary: "x", KeyFindings: []string{"k"}, ConfidenceScore: schema.Ptr(0.5)},
		},
		SynthesizedInsights: []string{"i1"},
		References:          []string{"https://a.io/"},
		Provenance:          map[string]any{},
		TokenUsage:          map[string]any{},
		LatencyMS:           schema.Ptr(int64(42)),
	}
}

type backend struct {
	name string
	open func(t *testing.T) HistoryStore
}

func backends() []backend {
	return []backend{
		{"sqlite", func(t *testing.T) HistoryStore {
			s, err := NewLocalStore(filepath.Join(t.TempDir(), "db", "briefer.db"))
			require.NoError(t, err)
			return s
		}},
		{"json", func(t *testing.T) HistoryStore {
			return NewJSONFileHistory(filepath.Join(t.TempDir(), "data", "user_history.json"))
		}},
	}
}

func TestHistory_RoundTrip(t *testing.T) {
	for _, be := range backends() {
		t.Run(be.name, func(t *testing.T) {
			s := be.open(t)
			defer s.Close()
			ctx := context.Background()

			empty, err := s.History(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, empty)

			first, second := sampleBrief("b-1"), sampleBrief("b-2")
			require.NoError(t, s.Append(ctx, "u1", first))
			require.NoError(t, s.Append(ctx, "u1", second))
			require.NoError(t, s.Append(ctx, "u2", sampleBrief("other")))

			got, err := s.History(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			if diff := cmp.Diff(*second, got[len(got)-1]); diff != "" {
				t.Errorf("last history entry mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, "b-1", got[0].BriefID)
		})
	}
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	for _, be := range backends() {
		t.Run(be.name, func(t *testing.T) {
			s := be.open(t)
			defer s.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Append(ctx, "same-user", sampleBrief(fmt.Sprintf("b-%d", i))))
				}(i)
			}
			wg.Wait()

			got, err := s.History(ctx, "same-user")
			require.NoError(t, err)
			assert.Len(t, got, 10, "no append may be lost")
		})
	}
}

func TestLocalStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "briefer.db")
	ctx := context.Background()

	s, err := NewLocalStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "u1", sampleBrief("b-1")))
	require.NoError(t, s.Close())

	s, err = NewLocalStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b-1", got[0].BriefID)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestJSONFileHistory_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_history.json")
	h := NewJSONFileHistory(path)
	require.NoError(t, h.Append(context.Background(), "local_user", sampleBrief("b-1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"local_user": [`)
	assert.Contains(t, string(data), `"brief_id": "b-1"`)
}

func TestJSONFileHistory_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	h := NewJSONFileHistory(path)

	_, err := h.History(context.Background(), "u1")
	assert.Error(t, err)
	assert.Error(t, h.Append(context.Background(), "u1", sampleBrief("b-1")), "a corrupt document is never overwritten")
}

func TestCheckpointStore(t *testing.T) {
	local, err := NewLocalStore(filepath.Join(t.TempDir(), "briefer.db"))
	require.NoError(t, err)
	defer local.Close()

	cps := NewCheckpointStore(local)
	rec := checkpoint.NewRecorder(cps)
	ctx := context.Background()

	rec.Record(ctx, "run-1", "planning", map[string]any{"steps": []string{"s1"}})
	rec.Record(ctx, "run-2", "planning", nil)
	rec.Record(ctx, "run-1", "search", map[string]any{"hits": []string{}})

	got, err := cps.ForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "planning", got[0].Step)
	assert.Equal(t, "search", got[1].Step)
	assert.JSONEq(t, `{"step":"planning","state":{"steps":["s1"]}}`, got[0].Doc)
	assert.False(t, got[0].RecordedAt.IsZero())
}

func TestOpenHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenHistory(ctx, Options{Backend: "sqlite", DatabasePath: filepath.Join(dir, "a.db")})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)
	s.Close()

	s, err = OpenHistory(ctx, Options{Backend: "json", JSONPath: filepath.Join(dir, "h.json")})
	require.NoError(t, err)
	assert.IsType(t, &JSONFileHistory{}, s)

	_, err = OpenHistory(ctx, Options{Backend: "redis"})
	assert.Error(t, err)

	_, err = OpenHistory(ctx, Options{Backend: "firestore"})
	assert.Error(t, err, "project id is required")
}

func TestFirestoreHistory_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	h, err := NewFirestoreHistory(ctx, "briefer-test", fmt.Sprintf("users-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Append(ctx, "u1", sampleBrief("b-1")))
	require.NoError(t, h.Append(ctx, "u1", sampleBrief("b-2")))

	got, err := h.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b-2", got[1].BriefID)
}
