package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"briefer/internal/schema"
	"briefer/internal/store"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// briefJSON renders a brief as indented JSON.
func briefJSON(b *schema.Brief) (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// briefMarkdown renders a brief as a Markdown document.
func briefMarkdown(b *schema.Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", b.Topic)
	fmt.Fprintf(&sb, "_Brief %s · depth %d · %s_\n\n", b.BriefID, b.Depth, b.GeneratedAt.Format("2006-01-02 15:04 MST"))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(b.Summary)
	sb.WriteString("\n\n")

	if len(b.SynthesizedInsights) > 0 {
		sb.WriteString("## Insights\n\n")
		for _, in := range b.SynthesizedInsights {
			fmt.Fprintf(&sb, "- %s\n", in)
		}
		sb.WriteString("\n")
	}

	if len(b.PlanningSteps) > 0 {
		sb.WriteString("## Plan\n\n")
		for _, s := range b.PlanningSteps {
			fmt.Fprintf(&sb, "1. **%s** %s", s.StepID, s.Description)
			if s.EstimatedTimeMinutes != nil {
				fmt.Fprintf(&sb, " (%d min)", *s.EstimatedTimeMinutes)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(b.SourceSummaries) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, s := range b.SourceSummaries {
			if s.URL != "" {
				fmt.Fprintf(&sb, "### [%s](%s)\n\n", s.Title, s.URL)
			} else {
				fmt.Fprintf(&sb, "### %s\n\n", s.Title)
			}
			sb.WriteString(s.Summary)
			sb.WriteString("\n\n")
			for _, f := range s.KeyFindings {
				fmt.Fprintf(&sb, "- %s\n", f)
			}
			if len(s.KeyFindings) > 0 {
				sb.WriteString("\n")
			}
		}
	}

	if len(b.References) > 0 {
		sb.WriteString("## References\n\n")
		for _, r := range b.References {
			fmt.Fprintf(&sb, "- <%s>\n", r)
		}
	}
	return sb.String()
}

// renderMarkdown pretty-prints Markdown for the terminal, falling back to
// the raw text if the renderer cannot be built.
func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// historyTable lists a user's briefs, oldest first.
func historyTable(user string, briefs []schema.Brief) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("History for " + user)
	t.AppendHeader(table.Row{"#", "Generated", "Topic", "Depth", "Sources", "Refs", "Brief ID"})
	for i, b := range briefs {
		t.AppendRow(table.Row{
			i + 1,
			b.GeneratedAt.Format("2006-01-02 15:04"),
			b.Topic,
			b.Depth,
			len(b.SourceSummaries),
			len(b.References),
			b.BriefID,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 48},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return t.Render()
}

// traceTable lists a run's checkpoints in recording order.
func traceTable(runID string, records []store.CheckpointRecord) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Checkpoints for run " + runID)
	t.AppendHeader(table.Row{"Recorded", "Step", "Bytes"})
	for _, r := range records {
		t.AppendRow(table.Row{r.RecordedAt.Format("15:04:05.000"), r.Step, len(r.Doc)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	return t.Render()
}
