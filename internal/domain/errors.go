package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies the failures the pipeline recovers from.
type ErrorKind string

const (
	KindFeedUnavailable   ErrorKind = "feed_unavailable"
	KindOracleUnavailable ErrorKind = "oracle_unavailable"
	KindParseError        ErrorKind = "parse_error"
	KindTimeout           ErrorKind = "timeout"
)

// Error carries a kind, the failing operation and the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &Error{Kind: KindParseError}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err. Deadline expiry is always a timeout, whichever stage hit it.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindOracleUnavailable
}
