package pipeline

import (
	"fmt"
	"unicode/utf8"

	"briefer/internal/schema"
)

const (
	// historyBlobLimit bounds the serialized prior briefs fed to the summarizer, in bytes.
	historyBlobLimit = 3500
	// pageTextLimit bounds the page text embedded in a per-source prompt.
	pageTextLimit = 4500
)

const contextSummaryPrompt = `Summarize prior briefs into 4-6 bullet points of persistent context.
Return plain text bullets.

%s`

const planningPrompt = `You are a research planner. Given TOPIC, optional HISTORY, and DEPTH, produce ONLY a JSON object with key 'steps' as an array of objects with keys: step_id, description, rationale, estimated_time_minutes.
Keep step_id like 's1','s2'.

TOPIC: %s
HISTORY: %s
DEPTH: %d
JSON:`

const perSourcePrompt = `Summarize the source as JSON with keys: source_id, title, url, summary, key_findings (array), published_date (string or null), confidence_score (0..1 or null).
Return ONLY JSON.

SOURCE_ID: %s
TITLE: %s
URL: %s
TEXT: %s`

const synthesisPrompt = `Create a FinalBrief as JSON with keys: brief_id (uuid), topic, generated_at (ISO8601), depth (int), user_id, summary (<=250 words), planning_steps (array of ResearchStep), source_summaries (array of SourceSummary), synthesized_insights (array of short bullets), references (array of URLs), provenance (object), token_usage (object), latency_ms (int).
Return ONLY JSON.

Topic: %s
Depth: %d
User: %s
Planning: %s
Sources: %s`

func buildContextSummaryPrompt(historyJSON []byte) string {
	return fmt.Sprintf(contextSummaryPrompt, truncateBytes(string(historyJSON), historyBlobLimit))
}

func buildPlanningPrompt(topic, history string, depth int) string {
	return fmt.Sprintf(planningPrompt, topic, history, depth)
}

func buildPerSourcePrompt(p schema.Page) string {
	return fmt.Sprintf(perSourcePrompt, p.ID, p.Title, p.URL, schema.Truncate(p.Text, pageTextLimit))
}

func buildSynthesisPrompt(topic string, depth int, userID string, stepsJSON, sourcesJSON []byte) string {
	return fmt.Sprintf(synthesisPrompt, topic, depth, userID, stepsJSON, sourcesJSON)
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}
