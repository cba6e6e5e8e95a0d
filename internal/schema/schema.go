// Package schema defines the records that flow through a research run and the
// validator that turns loosely typed generation output into those records.
//
// Decoding is lenient about representation (a number arriving as "5" is fine)
// and strict about structure (a confidence of 1.7 is rejected, never clamped).
// When decoding fails the fallback builders produce a minimal valid record.
package schema

import (
	"time"
)

// Bounds shared by the pipeline stages.
const (
	MaxBriefSummary     = 4000 // runes; longer summaries are truncated on decode
	MaxReferences       = 20
	MaxFallbackRefs     = 15
	MaxPageText         = 18000 // runes kept from a fetched page
	MaxKeyFindings      = 10
	DefaultStepMinutes  = 5
	DefaultStepTitle    = "Initial scoping"
	PlaceholderStepText = "TBD"
)

// Step is one entry of a research plan.
type Step struct {
	StepID               string `json:"step_id"`
	Description          string `json:"description"`
	Rationale            string `json:"rationale,omitempty"`
	EstimatedTimeMinutes *int   `json:"estimated_time_minutes,omitempty"`
}

// Hit is one search result. ID is assigned by the pipeline as src-<n>.
type Hit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Page is the extracted text of a fetched Hit. ID equals the Hit ID.
type Page struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SourceSummary condenses one Page.
type SourceSummary struct {
	SourceID        string   `json:"source_id"`
	Title           string   `json:"title"`
	URL             string   `json:"url,omitempty"`
	Summary         string   `json:"summary"`
	KeyFindings     []string `json:"key_findings"`
	PublishedDate   string   `json:"published_date,omitempty"` // opaque, never parsed
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// Brief is the final product of a run.
type Brief struct {
	BriefID             string          `json:"brief_id"`
	Topic               string          `json:"topic"`
	GeneratedAt         time.Time       `json:"generated_at"`
	Depth               int             `json:"depth"`
	UserID              string          `json:"user_id"`
	Summary             string          `json:"summary"`
	PlanningSteps       []Step          `json:"planning_steps"`
	SourceSummaries     []SourceSummary `json:"source_summaries"`
	SynthesizedInsights []string        `json:"synthesized_insights"`
	References          []string        `json:"references"`
	Provenance          map[string]any  `json:"provenance"`
	TokenUsage          map[string]any  `json:"token_usage"`
	LatencyMS           *int64          `json:"latency_ms,omitempty"`
}

// Ptr returns a pointer to v. Handy for the optional numeric fields.
func Ptr[T any](v T) *T {
	return &v
}
