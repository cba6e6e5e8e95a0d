package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultPlan is used when planning output has no usable steps.
func DefaultPlan() []Step {
	return []Step{{
		StepID:               "s1",
		Description:          DefaultStepTitle,
		Rationale:            "",
		EstimatedTimeMinutes: Ptr(DefaultStepMinutes),
	}}
}

// PlaceholderStep replaces the malformed plan entry at index i.
func PlaceholderStep(i int) Step {
	return Step{
		StepID:               fmt.Sprintf("s%d", i+1),
		Description:          PlaceholderStepText,
		EstimatedTimeMinutes: Ptr(DefaultStepMinutes),
	}
}

// StepDefaults fills missing plan-entry fields in place, leaving present
// values (even malformed ones) for DecodeStep to judge.
func StepDefaults(m map[string]any, i int) map[string]any {
	out := make(map[string]any, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	setDefault(out, "step_id", fmt.Sprintf("s%d", i+1))
	setDefault(out, "description", PlaceholderStepText)
	setDefault(out, "rationale", "")
	setDefault(out, "estimated_time_minutes", float64(DefaultStepMinutes))
	return out
}

func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// Fallback bounds for per-source summaries.
const (
	rawSummaryLimit     = 800
	partialTitleLimit   = 300
	partialSummaryLimit = 1200
	unavailableSummary  = "Summary unavailable"
	untitled            = "Untitled"
)

// RawSourceRecord is the record assumed when no structured block could be
// extracted: the raw generated text stands in for the summary.
func RawSourceRecord(page Page, raw string) map[string]any {
	title := page.Title
	if title == "" {
		title = untitled
	}
	return map[string]any{
		"source_id":    page.ID,
		"title":        title,
		"url":          page.URL,
		"summary":      Truncate(raw, rawSummaryLimit),
		"key_findings": []any{},
	}
}

// FallbackSourceSummary builds a valid summary for page from whatever
// partial fields were recovered. It is always keyed to the page id.
// A page URL that is not a valid http(s) URL is omitted.
func FallbackSourceSummary(page Page, partial map[string]any) SourceSummary {
	c := &collector{}
	f := fields{m: partial, c: c}

	title := page.Title
	if title == "" {
		title = untitled
	}
	summary := f.str("summary", false)
	if summary == "" {
		summary = unavailableSummary
	}
	findings := f.strList("key_findings", false)
	if len(findings) > MaxKeyFindings {
		findings = findings[:MaxKeyFindings]
	}

	s := SourceSummary{
		SourceID:    page.ID,
		Title:       Truncate(title, partialTitleLimit),
		Summary:     Truncate(summary, partialSummaryLimit),
		KeyFindings: findings,
	}
	if norm, err := NormalizeURL(page.URL); err == nil {
		s.URL = norm
	}
	return s
}

// FallbackBrief assembles the deterministic brief used when synthesis output
// cannot be extracted. References come only from the summaries' URLs.
func FallbackBrief(topic string, depth int, userID, raw string, steps []Step, sums []SourceSummary, elapsed time.Duration) *Brief {
	refs := make([]string, 0, MaxFallbackRefs)
	for _, s := range sums {
		if len(refs) == MaxFallbackRefs {
			break
		}
		if s.URL != "" {
			refs = append(refs, s.URL)
		}
	}
	if steps == nil {
		steps = []Step{}
	}
	if sums == nil {
		sums = []SourceSummary{}
	}
	return &Brief{
		BriefID:             uuid.NewString(),
		Topic:               topic,
		GeneratedAt:         time.Now().UTC(),
		Depth:               depth,
		UserID:              userID,
		Summary:             Truncate(raw, partialSummaryLimit),
		PlanningSteps:       steps,
		SourceSummaries:     sums,
		SynthesizedInsights: []string{},
		References:          refs,
		Provenance:          map[string]any{},
		TokenUsage:          map[string]any{},
		LatencyMS:           Ptr(elapsed.Milliseconds()),
	}
}
