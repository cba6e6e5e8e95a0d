package extract

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestExtract_ValidJSONUnchanged(t *testing.T) {
	inputs := []string{
		`{"steps":[{"step_id":"s1","description":"a"}]}`,
		`[1,2,{"a":[3,4]}]`,
		`{"nested":{"deep":{"x":"}{]["}},"n":null}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, ok := Extract(in)
			require.True(t, ok)
			if diff := cmp.Diff(mustJSON(t, in), got); diff != "" {
				t.Errorf("Extract changed valid JSON (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_TrailingComma(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1,}`, `{"a":1}`},
		{`{"a":[1,2,]}`, `{"a":[1,2]}`},
		{`[{"a":1}, ]`, `[{"a":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Extract(tt.in)
			require.True(t, ok)
			if diff := cmp.Diff(mustJSON(t, tt.want), got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_EmbeddedInProse(t *testing.T) {
	text := "Sure! Here is the plan:\n{\"steps\": [{\"step_id\": \"s1\", \"description\": \"scope\"}]}\nLet me know {if} you need more."
	got, ok := ExtractObject(text)
	require.True(t, ok)
	assert.Contains(t, got, "steps")
}

func TestExtract_PrefersFencedBlock(t *testing.T) {
	text := "Example shape: {\"example\": true, \"padding\": \"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx\"}\n" +
		"```json\n{\"answer\": 42}\n```"
	got, ok := ExtractObject(text)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"answer": float64(42)}, got)
}

func TestExtract_LongestCandidateFirst(t *testing.T) {
	text := `first {"a":1} then {"b":2,"c":[1,2,3]}`
	got, ok := ExtractObject(text)
	require.True(t, ok)
	assert.Contains(t, got, "b")
}

func TestExtract_RawNewlineInString(t *testing.T) {
	text := "{\"summary\": \"line one\nline two\"}"
	got, ok := ExtractObject(text)
	require.True(t, ok)
	assert.Equal(t, "line one line two", got["summary"])
}

func TestExtract_NothingFound(t *testing.T) {
	for _, in := range []string{"", "plain gibberish words", "{not json at all}", `"just a string"`, "42"} {
		t.Run(in, func(t *testing.T) {
			_, ok := Extract(in)
			assert.False(t, ok)
		})
	}
}

func TestExtractObject_SkipsArrays(t *testing.T) {
	_, ok := ExtractObject(`[1,2,3]`)
	assert.False(t, ok)
}

func TestRules_Individually(t *testing.T) {
	tests := []struct {
		rule, in, want string
	}{
		{"trailing-comma-object", "{\"a\":1 ,\n }", `{"a":1 }`},
		{"trailing-comma-object", `[1,]`, `[1,]`},
		{"trailing-comma-array", "[1,2,\t]", `[1,2]`},
		{"trailing-comma-array", `{"a":1,}`, `{"a":1,}`},
		{"newlines", "{\"a\":\r\n\"b\"}", `{"a": "b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			rule, ok := RuleByName(tt.rule)
			require.True(t, ok)
			assert.Equal(t, tt.want, rule.Apply(tt.in))
		})
	}

	_, ok := RuleByName("unknown")
	assert.False(t, ok)
}

func TestRules_Order(t *testing.T) {
	names := make([]string, len(Rules))
	for i, r := range Rules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"trailing-comma-object", "trailing-comma-array", "newlines"}, names)
}

func TestExtract_TruncatedOutputUsesInnerRegion(t *testing.T) {
	// Truncated output: neither the object nor the array closes.
	text := `{"steps": [{"step_id": "s1", "description": "a"}`
	got, ok := Extract(text)
	require.True(t, ok)
	assert.Equal(t, mustJSON(t, `{"step_id": "s1", "description": "a"}`), got)
}
