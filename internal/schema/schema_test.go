package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obj(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	out := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		out[i] = f.Field
	}
	return out
}

// =============================================================================
// STEP
// =============================================================================

func TestDecodeStep_Coercion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Step
	}{
		{
			name: "numeric string minutes",
			in:   `{"step_id":"s1","description":"scope","estimated_time_minutes":"7"}`,
			want: Step{StepID: "s1", Description: "scope", EstimatedTimeMinutes: Ptr(7)},
		},
		{
			name: "integral float minutes",
			in:   `{"step_id":"s2","description":"read","estimated_time_minutes":5.0}`,
			want: Step{StepID: "s2", Description: "read", EstimatedTimeMinutes: Ptr(5)},
		},
		{
			name: "numeric id becomes string",
			in:   `{"step_id":3,"description":"x","rationale":null}`,
			want: Step{StepID: "3", Description: "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStep(obj(t, tt.in))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeStep mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeStep_Rejects(t *testing.T) {
	_, err := DecodeStep(obj(t, `{"description":"x","estimated_time_minutes":-1}`))
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"step_id", "estimated_time_minutes"}, fieldsOf(t, err))

	_, err = DecodeStep(obj(t, `{"step_id":"s1","description":"x","estimated_time_minutes":2.5}`))
	assert.Equal(t, []string{"estimated_time_minutes"}, fieldsOf(t, err))

	_, err = DecodeStep(obj(t, `{"step_id":{"a":1},"description":"x"}`))
	assert.Equal(t, []string{"step_id"}, fieldsOf(t, err))
}

func TestStepDefaults(t *testing.T) {
	got, err := DecodeStep(StepDefaults(map[string]any{"description": "dig"}, 2))
	require.NoError(t, err)
	want := Step{StepID: "s3", Description: "dig", EstimatedTimeMinutes: Ptr(5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultPlanAndPlaceholder(t *testing.T) {
	plan := DefaultPlan()
	require.Len(t, plan, 1)
	assert.Equal(t, "s1", plan[0].StepID)
	assert.Equal(t, "Initial scoping", plan[0].Description)

	p := PlaceholderStep(4)
	assert.Equal(t, "s5", p.StepID)
	assert.Equal(t, "TBD", p.Description)
	assert.NoError(t, p.Validate())
}

// =============================================================================
// SOURCE SUMMARY
// =============================================================================

func TestDecodeSourceSummary(t *testing.T) {
	got, err := DecodeSourceSummary(obj(t, `{
		"source_id": "src-1",
		"title": "Go memory model",
		"url": "HTTPS://Go.dev",
		"summary": "Happens-before.",
		"key_findings": ["sync", 42],
		"published_date": "last spring",
		"confidence_score": "0.8"
	}`))
	require.NoError(t, err)

	want := SourceSummary{
		SourceID:        "src-1",
		Title:           "Go memory model",
		URL:             "https://go.dev/",
		Summary:         "Happens-before.",
		KeyFindings:     []string{"sync", "42"},
		PublishedDate:   "last spring",
		ConfidenceScore: Ptr(0.8),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeSourceSummary mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSourceSummary_ConfidenceRejectedNotClamped(t *testing.T) {
	for _, score := range []string{"1.7", "-0.1"} {
		t.Run(score, func(t *testing.T) {
			in := fmt.Sprintf(`{"source_id":"src-1","title":"t","summary":"s","confidence_score":%s}`, score)
			_, err := DecodeSourceSummary(obj(t, in))
			assert.Equal(t, []string{"confidence_score"}, fieldsOf(t, err))
		})
	}

	got, err := DecodeSourceSummary(obj(t, `{"source_id":"src-1","title":"t","summary":"s","confidence_score":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, *got.ConfidenceScore)
}

func TestDecodeSourceSummary_BadURL(t *testing.T) {
	for _, u := range []string{"ftp://x.org", "/relative", "http://"} {
		t.Run(u, func(t *testing.T) {
			_, err := DecodeSourceSummary(map[string]any{"source_id": "a", "title": "t", "summary": "s", "url": u})
			assert.Equal(t, []string{"url"}, fieldsOf(t, err))
		})
	}
}

func TestFallbackSourceSummary(t *testing.T) {
	page := Page{ID: "src-2", URL: "http://Example.com", Title: strings.Repeat("t", 400)}

	t.Run("partial fields", func(t *testing.T) {
		findings := make([]any, 15)
		for i := range findings {
			findings[i] = fmt.Sprintf("f%d", i)
		}
		got := FallbackSourceSummary(page, map[string]any{
			"source_id":        "wrong-id",
			"summary":          strings.Repeat("s", 2000),
			"key_findings":     findings,
			"confidence_score": 9.0,
		})
		assert.Equal(t, "src-2", got.SourceID)
		assert.Len(t, got.Title, 300)
		assert.Len(t, got.Summary, 1200)
		assert.Len(t, got.KeyFindings, 10)
		assert.Equal(t, "http://example.com/", got.URL)
		assert.Nil(t, got.ConfidenceScore)
		assert.NoError(t, got.Validate())
	})

	t.Run("nothing recovered", func(t *testing.T) {
		got := FallbackSourceSummary(Page{ID: "src-3", URL: "not a url"}, nil)
		assert.Equal(t, "Summary unavailable", got.Summary)
		assert.Equal(t, "Untitled", got.Title)
		assert.Empty(t, got.URL)
		assert.Empty(t, got.KeyFindings)
		assert.NoError(t, got.Validate())
	})
}

func TestRawSourceRecord(t *testing.T) {
	rec := RawSourceRecord(Page{ID: "src-1", URL: "https://a.io/x", Title: "A"}, strings.Repeat("r", 1000))
	got, err := DecodeSourceSummary(rec)
	require.NoError(t, err)
	assert.Len(t, got.Summary, 800)
	assert.Equal(t, "src-1", got.SourceID)
	assert.Empty(t, got.KeyFindings)
}

// =============================================================================
// BRIEF
// =============================================================================

const validBrief = `{
	"brief_id": "b-1",
	"topic": "solid-state batteries",
	"generated_at": "2024-05-01T12:30:00",
	"depth": "2",
	"user_id": "u1",
	"summary": "Progress is steady.",
	"planning_steps": [{"step_id":"s1","description":"scope","estimated_time_minutes":5}],
	"source_summaries": [{"source_id":"src-1","title":"A","url":"http://a.com","summary":"x","key_findings":[]}],
	"synthesized_insights": ["cost is falling"],
	"references": ["http://a.com", "https://B.org/path#frag"],
	"provenance": {"model": "deep"},
	"token_usage": null,
	"latency_ms": 1200.0
}`

func TestDecodeBrief(t *testing.T) {
	got, err := DecodeBrief(obj(t, validBrief))
	require.NoError(t, err)

	want := &Brief{
		BriefID:     "b-1",
		Topic:       "solid-state batteries",
		GeneratedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Depth:       2,
		UserID:      "u1",
		Summary:     "Progress is steady.",
		PlanningSteps: []Step{
			{StepID: "s1", Description: "scope", EstimatedTimeMinutes: Ptr(5)},
		},
		SourceSummaries: []SourceSummary{
			{SourceID: "src-1", Title: "A", URL: "http://a.com/", Summary: "x", KeyFindings: []string{}},
		},
		SynthesizedInsights: []string{"cost is falling"},
		References:          []string{"http://a.com/", "https://b.org/path"},
		Provenance:          map[string]any{"model": "deep"},
		LatencyMS:           Ptr(int64(1200)),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeBrief mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBrief_ListsEveryViolation(t *testing.T) {
	_, err := DecodeBrief(obj(t, `{
		"brief_id": "b",
		"generated_at": "yesterday",
		"depth": 0,
		"user_id": "u",
		"summary": "s",
		"planning_steps": [{"step_id":"s1","description":"a"},{"step_id":"s1","description":"b"}],
		"source_summaries": [{"source_id":"src-1","title":"t","summary":"s","confidence_score":2}],
		"synthesized_insights": [],
		"references": ["mailto:x@y.z"]
	}`))
	require.Error(t, err)
	assert.ElementsMatch(t, []string{
		"topic",
		"generated_at",
		"depth",
		"planning_steps[1].step_id",
		"source_summaries[0].confidence_score",
		"references[0]",
	}, fieldsOf(t, err))
}

func TestDecodeBrief_TruncatesSummary(t *testing.T) {
	m := obj(t, validBrief)
	m["summary"] = strings.Repeat("é", MaxBriefSummary+50)
	got, err := DecodeBrief(m)
	require.NoError(t, err)
	assert.Equal(t, MaxBriefSummary, len([]rune(got.Summary)))
}

func TestFallbackBrief(t *testing.T) {
	sums := make([]SourceSummary, 0, 20)
	for i := 0; i < 20; i++ {
		sums = append(sums, SourceSummary{SourceID: fmt.Sprintf("src-%d", i+1), Title: "t", Summary: "s", URL: fmt.Sprintf("https://x.io/%d", i)})
	}
	sums[0].URL = ""

	b := FallbackBrief("topic", 1, "u", strings.Repeat("r", 3000), DefaultPlan(), sums, 1500*time.Millisecond)
	require.NoError(t, b.Validate())
	assert.Len(t, b.References, 15)
	assert.Equal(t, "https://x.io/1", b.References[0])
	assert.Len(t, b.Summary, 1200)
	assert.Empty(t, b.SynthesizedInsights)
	assert.NotNil(t, b.Provenance)
	assert.Equal(t, int64(1500), *b.LatencyMS)
	assert.NotEmpty(t, b.BriefID)
}

// =============================================================================
// URLS
// =============================================================================

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://a.com", want: "http://a.com/"},
		{in: "HTTP://A.COM/Path", want: "http://a.com/Path"},
		{in: "https://a.com/x?q=1#top", want: "https://a.com/x?q=1"},
		{in: "  https://a.com/ ", want: "https://a.com/"},
		{in: "a.com", wantErr: true},
		{in: "javascript:alert(1)", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDedupeReferences(t *testing.T) {
	got := DedupeReferences([]string{"http://a.com", "http://a.com/", "http://a.com"}, MaxReferences)
	assert.Equal(t, []string{"http://a.com/"}, got)

	many := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		many = append(many, fmt.Sprintf("https://site.io/%d", i%25))
	}
	got = DedupeReferences(many, MaxReferences)
	assert.Len(t, got, 20)
	assert.Equal(t, "https://site.io/0", got[0])

	got = DedupeReferences([]string{"nope", "https://b.io", "https://B.io/"}, MaxReferences)
	assert.Equal(t, []string{"https://b.io/"}, got)
}

func TestTruncate_CountsRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	assert.Equal(t, strings.Repeat("é", 4), Truncate(s, 4))
	assert.Len(t, []rune(Truncate(strings.Repeat("日", MaxPageText+5), MaxPageText)), MaxPageText)
	assert.Equal(t, s, Truncate(s, 10))
	assert.Empty(t, Truncate(s, 0))
}
