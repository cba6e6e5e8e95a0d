package schema

import (
	"fmt"
	"math"
)

// Validate checks the structural rules of a Step.
func (s Step) Validate() error {
	c := &collector{}
	if s.StepID == "" {
		c.add("step_id", "must not be empty")
	}
	if s.EstimatedTimeMinutes != nil && *s.EstimatedTimeMinutes < 0 {
		c.add("estimated_time_minutes", "must be >= 0, got %d", *s.EstimatedTimeMinutes)
	}
	return c.err("Step")
}

// Validate checks the structural rules of a SourceSummary.
func (s SourceSummary) Validate() error {
	c := &collector{}
	if s.SourceID == "" {
		c.add("source_id", "must not be empty")
	}
	if s.URL != "" {
		if _, err := NormalizeURL(s.URL); err != nil {
			c.add("url", "must be an absolute http(s) URL")
		}
	}
	if p := s.ConfidenceScore; p != nil && (math.IsNaN(*p) || *p < 0 || *p > 1) {
		c.add("confidence_score", "must be within [0,1], got %v", *p)
	}
	return c.err("SourceSummary")
}

// Validate checks the structural rules of a Brief, including its nested records.
func (b *Brief) Validate() error {
	c := &collector{}
	if b.BriefID == "" {
		c.add("brief_id", "must not be empty")
	}
	if b.Topic == "" {
		c.add("topic", "must not be empty")
	}
	if b.GeneratedAt.IsZero() {
		c.add("generated_at", "must be set")
	}
	if b.Depth < 1 {
		c.add("depth", "must be >= 1, got %d", b.Depth)
	}
	if b.UserID == "" {
		c.add("user_id", "must not be empty")
	}

	stepIDs := make(map[string]bool, len(b.PlanningSteps))
	for i, s := range b.PlanningSteps {
		prefix := fmt.Sprintf("planning_steps[%d].", i)
		c.merge(prefix, s.Validate())
		if s.StepID != "" && stepIDs[s.StepID] {
			c.add(prefix+"step_id", "duplicate id %q", s.StepID)
		}
		stepIDs[s.StepID] = true
	}

	sourceIDs := make(map[string]bool, len(b.SourceSummaries))
	for i, s := range b.SourceSummaries {
		prefix := fmt.Sprintf("source_summaries[%d].", i)
		c.merge(prefix, s.Validate())
		if s.SourceID != "" && sourceIDs[s.SourceID] {
			c.add(prefix+"source_id", "duplicate id %q", s.SourceID)
		}
		sourceIDs[s.SourceID] = true
	}

	for i, ref := range b.References {
		if _, err := NormalizeURL(ref); err != nil {
			c.add(fmt.Sprintf("references[%d]", i), "must be an absolute http(s) URL")
		}
	}
	if b.LatencyMS != nil && *b.LatencyMS < 0 {
		c.add("latency_ms", "must be >= 0, got %d", *b.LatencyMS)
	}
	return c.err("Brief")
}
