package pipeline

import (
	"strings"
	"unicode/utf8"
)

// MinTopicLength is the shortest accepted topic, counted after trimming.
const MinTopicLength = 3

// Request is one brief request.
type Request struct {
	Topic    string `json:"topic"`
	Depth    int    `json:"depth"`
	FollowUp bool   `json:"follow_up"`
	UserID   string `json:"user_id"`
	// RunID is generated when empty.
	RunID string `json:"run_id,omitempty"`
}

// Validate rejects requests that must never reach a stage.
func (r Request) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Topic)) < MinTopicLength {
		return inputError("Topic too short")
	}
	if r.Depth < 1 {
		return inputError("depth must be >= 1, got %d", r.Depth)
	}
	if strings.TrimSpace(r.UserID) == "" {
		return inputError("user_id is required")
	}
	return nil
}
