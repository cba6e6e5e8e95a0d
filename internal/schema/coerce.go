package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// fields reads typed values out of a loosely typed JSON object,
// recording a FieldError for anything that cannot be coerced.
// A JSON null is treated as absent.
type fields struct {
	m map[string]any
	c *collector
}

func (f fields) get(key string) (any, bool) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f fields) str(key string, required bool) string {
	v, ok := f.get(key)
	if !ok {
		if required {
			f.c.add(key, "required")
		}
		return ""
	}
	s, ok := toString(v)
	if !ok {
		f.c.add(key, "expected a string, got %T", v)
	}
	return s
}

func (f fields) integer(key string, required bool) *int64 {
	v, ok := f.get(key)
	if !ok {
		if required {
			f.c.add(key, "required")
		}
		return nil
	}
	n, ok := toInt(v)
	if !ok {
		f.c.add(key, "expected an integer, got %v", v)
		return nil
	}
	return &n
}

func (f fields) float(key string) *float64 {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	n, ok := toFloat(v)
	if !ok {
		f.c.add(key, "expected a number, got %v", v)
		return nil
	}
	return &n
}

func (f fields) strList(key string, required bool) []string {
	v, ok := f.get(key)
	if !ok {
		if required {
			f.c.add(key, "required")
		}
		return []string{}
	}
	items, ok := v.([]any)
	if !ok {
		f.c.add(key, "expected a list, got %T", v)
		return []string{}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := toString(item)
		if !ok {
			f.c.add(fmt.Sprintf("%s[%d]", key, i), "expected a string, got %T", item)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (f fields) objects(key string) ([]map[string]any, bool) {
	v, ok := f.get(key)
	if !ok {
		f.c.add(key, "required")
		return nil, false
	}
	items, ok := v.([]any)
	if !ok {
		f.c.add(key, "expected a list, got %T", v)
		return nil, false
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			f.c.add(fmt.Sprintf("%s[%d]", key, i), "expected an object, got %T", item)
			continue
		}
		out = append(out, m)
	}
	return out, true
}

func (f fields) object(key string) map[string]any {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		f.c.add(key, "expected an object, got %T", v)
		return nil
	}
	return m
}

func (f fields) timestamp(key string) time.Time {
	v, ok := f.get(key)
	if !ok {
		f.c.add(key, "required")
		return time.Time{}
	}
	t, ok := toTime(v)
	if !ok {
		f.c.add(key, "expected an ISO-8601 timestamp, got %v", v)
	}
	return t
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt64/2 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		return toInt(string(x))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInt(f)
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Zone-less layouts are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	case float64:
		sec, frac := math.Modf(x)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	return time.Time{}, false
}

// Truncate bounds s to n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
