package schema

import (
	"fmt"
	"math"
)

// DecodeStep coerces and validates a plan entry.
func DecodeStep(m map[string]any) (Step, error) {
	c := &collector{}
	f := fields{m: m, c: c}

	s := Step{
		StepID:      f.str("step_id", true),
		Description: f.str("description", true),
		Rationale:   f.str("rationale", false),
	}
	if n := f.integer("estimated_time_minutes", false); n != nil {
		if *n > math.MaxInt32 || *n < math.MinInt32 {
			c.add("estimated_time_minutes", "out of range: %d", *n)
		} else {
			s.EstimatedTimeMinutes = Ptr(int(*n))
		}
	}

	c.mergeNew(s.Validate())
	return s, c.err("Step")
}

// DecodeSourceSummary coerces and validates a per-source summary.
// A valid URL is returned in normalized form.
func DecodeSourceSummary(m map[string]any) (SourceSummary, error) {
	c := &collector{}
	f := fields{m: m, c: c}

	s := SourceSummary{
		SourceID:        f.str("source_id", true),
		Title:           f.str("title", true),
		URL:             f.str("url", false),
		Summary:         f.str("summary", true),
		KeyFindings:     f.strList("key_findings", false),
		PublishedDate:   f.str("published_date", false),
		ConfidenceScore: f.float("confidence_score"),
	}

	c.mergeNew(s.Validate())
	if err := c.err("SourceSummary"); err != nil {
		return s, err
	}
	if s.URL != "" {
		s.URL, _ = NormalizeURL(s.URL)
	}
	return s, nil
}

// DecodeBrief coerces and validates a full brief. The summary is truncated
// to MaxBriefSummary runes and references are returned normalized.
func DecodeBrief(m map[string]any) (*Brief, error) {
	c := &collector{}
	f := fields{m: m, c: c}

	b := &Brief{
		BriefID:             f.str("brief_id", true),
		Topic:               f.str("topic", true),
		GeneratedAt:         f.timestamp("generated_at"),
		UserID:              f.str("user_id", true),
		Summary:             Truncate(f.str("summary", true), MaxBriefSummary),
		SynthesizedInsights: f.strList("synthesized_insights", true),
		References:          f.strList("references", true),
		Provenance:          f.object("provenance"),
		TokenUsage:          f.object("token_usage"),
	}
	if n := f.integer("depth", true); n != nil {
		b.Depth = int(*n)
	}
	if n := f.integer("latency_ms", false); n != nil {
		b.LatencyMS = n
	}

	if steps, ok := f.objects("planning_steps"); ok {
		b.PlanningSteps = make([]Step, 0, len(steps))
		for i, m := range steps {
			s, err := DecodeStep(m)
			c.merge(fmt.Sprintf("planning_steps[%d].", i), err)
			b.PlanningSteps = append(b.PlanningSteps, s)
		}
	}
	if sums, ok := f.objects("source_summaries"); ok {
		b.SourceSummaries = make([]SourceSummary, 0, len(sums))
		for i, m := range sums {
			s, err := DecodeSourceSummary(m)
			c.merge(fmt.Sprintf("source_summaries[%d].", i), err)
			b.SourceSummaries = append(b.SourceSummaries, s)
		}
	}

	c.mergeNew(b.Validate())
	if err := c.err("Brief"); err != nil {
		return b, err
	}
	for i, ref := range b.References {
		b.References[i], _ = NormalizeURL(ref)
	}
	return b, nil
}
