package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run for the caller.
type Kind int

const (
	// KindInput means the request was rejected before any stage ran.
	KindInput Kind = iota

	// KindComputation means a stage could not produce a valid result,
	// including cancellation.
	KindComputation

	// KindPersistence means the brief was computed but could not be
	// recorded in the history store.
	KindPersistence
)

// String returns the kind name used in API error bodies.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindComputation:
		return "computation"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the only error type Run returns.
type Error struct {
	Kind  Kind
	Stage string // empty for input errors
	Msg   string
	Err   error
}

// Sentinels for errors.Is.
var (
	ErrInput       = &Error{Kind: KindInput}
	ErrComputation = &Error{Kind: KindComputation}
	ErrPersistence = &Error{Kind: KindPersistence}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Err != nil {
		if e.Msg == "" {
			msg += e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil || t.Stage != "" {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf reports the kind of err. Errors not produced by Run count as
// computation failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindComputation
}

func inputError(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Msg: fmt.Sprintf(format, args...)}
}

func computationError(stage string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindComputation, Stage: stage, Err: err}
}

func persistenceError(stage string, err error) *Error {
	return &Error{Kind: KindPersistence, Stage: stage, Msg: "history append failed", Err: err}
}
