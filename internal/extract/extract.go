// Package extract locates structured JSON blocks inside free-form generated
// text and applies small syntactic repairs before parsing.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// maxCandidates bounds the work done on pathological inputs.
const maxCandidates = 64

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")
	lazyPattern  = regexp.MustCompile(`(?s)(\{.*?\}|\[.*?\])`)
)

// Extract returns the first candidate block in text that parses as JSON,
// either as-is or after the repair rules. Candidates are tried in tiers:
// fenced ```json blocks, then balanced {...} / [...] regions, then lazy
// regex matches; within a tier the longest candidate goes first.
func Extract(text string) (any, bool) {
	for _, cand := range Candidates(text) {
		if v, ok := parseWithRepairs(cand); ok {
			return v, true
		}
	}
	return nil, false
}

// ExtractObject is Extract restricted to JSON objects.
func ExtractObject(text string) (map[string]any, bool) {
	for _, cand := range Candidates(text) {
		v, ok := parseWithRepairs(cand)
		if !ok {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

// Candidates lists the blocks Extract will try, in order.
func Candidates(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tier []string) {
		sort.SliceStable(tier, func(i, j int) bool { return len(tier[i]) > len(tier[j]) })
		for _, c := range tier {
			if len(out) == maxCandidates {
				return
			}
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}

	var fenced []string
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		fenced = append(fenced, strings.TrimSpace(m[1]))
	}
	add(fenced)
	add(balancedRegions(text))
	add(lazyPattern.FindAllString(text, -1))
	return out
}

func parseWithRepairs(cand string) (any, bool) {
	if v, ok := parse(cand); ok {
		return v, true
	}
	repaired := cand
	for _, rule := range Rules {
		repaired = rule.Apply(repaired)
		if v, ok := parse(repaired); ok {
			return v, true
		}
	}
	return nil, false
}

func parse(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

// balancedRegions returns every region that starts at an opening bracket and
// ends at its matching closer, skipping brackets inside JSON strings.
func balancedRegions(text string) []string {
	var out []string
	for i := 0; i < len(text) && len(out) < maxCandidates; i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end := matchClose(text, i); end > 0 {
			out = append(out, text[i:end])
		}
	}
	return out
}

// matchClose returns the index just past the bracket closing text[start],
// or -1 if the region is unbalanced or mismatched.
func matchClose(text string, start int) int {
	stack := make([]byte, 0, 16)
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}
