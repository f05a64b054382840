package model

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds surfaced across the engine's operations.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInvalidInput        Kind = "invalid_input"
	KindEmbedderUnavailable Kind = "embedder_unavailable"
	KindIndexCorrupt        Kind = "index_corrupt"
	KindDegradedWrite       Kind = "degraded_write"
	KindBusy                Kind = "busy"
	KindDeadlineExceeded    Kind = "deadline_exceeded"
)

// Error is the engine's typed error, carrying a Kind alongside the
// underlying cause so callers can branch on errors.Is/As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, model.ErrNotFound) style checks against a Kind
// sentinel without requiring callers to unwrap *Error by hand.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && e.Kind == k.kind
}

type kindSentinel struct{ kind Kind }

func (kindSentinel) Error() string { return "" }

// Sentinels for errors.Is comparisons, e.g. errors.Is(err, model.ErrNotFound).
var (
	ErrNotFound            error = kindSentinel{KindNotFound}
	ErrConflict            error = kindSentinel{KindConflict}
	ErrInvalidInput        error = kindSentinel{KindInvalidInput}
	ErrEmbedderUnavailable error = kindSentinel{KindEmbedderUnavailable}
	ErrIndexCorrupt        error = kindSentinel{KindIndexCorrupt}
	ErrDegradedWrite       error = kindSentinel{KindDegradedWrite}
	ErrBusy                error = kindSentinel{KindBusy}
	ErrDeadlineExceeded    error = kindSentinel{KindDeadlineExceeded}
)

// NewError builds an *Error for op/kind, wrapping cause if non-nil.
func NewError(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
