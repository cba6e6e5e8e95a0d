package schema

import (
	"fmt"
	"strings"
)

// FieldError is one violated rule.
type FieldError struct {
	Field string
	Msg   string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Msg
}

// ValidationError lists every violated field of one record.
type ValidationError struct {
	Record string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, strings.Join(parts, "; "))
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// collector accumulates field errors under an optional prefix.
type collector struct {
	prefix string
	errs   []FieldError
}

func (c *collector) add(field, format string, args ...any) {
	c.errs = append(c.errs, FieldError{Field: c.prefix + field, Msg: fmt.Sprintf(format, args...)})
}

func (c *collector) merge(prefix string, err error) {
	if err == nil {
		return
	}
	if ve, ok := err.(*ValidationError); ok {
		for _, f := range ve.Fields {
			c.errs = append(c.errs, FieldError{Field: c.prefix + prefix + f.Field, Msg: f.Msg})
		}
		return
	}
	c.add(strings.TrimSuffix(prefix, "."), "%v", err)
}

// mergeNew merges only violations on fields not already reported,
// so a missing field is not also reported as empty.
func (c *collector) mergeNew(err error) {
	ve, ok := err.(*ValidationError)
	if !ok {
		c.merge("", err)
		return
	}
	for _, f := range ve.Fields {
		if !c.has(f.Field) {
			c.errs = append(c.errs, f)
		}
	}
}

func (c *collector) has(field string) bool {
	for _, f := range c.errs {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (c *collector) err(record string) error {
	if len(c.errs) == 0 {
		return nil
	}
	return &ValidationError{Record: record, Fields: c.errs}
}
