package engine

import (
	"context"
	"errors"
)

// Failure taxonomy shared by the fetcher, summarizer, Q&A and persistence layers.
// Callers match with errors.Is; the HTTP layer maps each to a status code.
var (
	ErrInvalidReference = errors.New("invalid video reference")
	ErrNotFound         = errors.New("no transcript available")
	ErrEmptyInput       = errors.New("empty input")
	ErrMissingInput     = errors.New("missing input")
	ErrUpstream         = errors.New("upstream error")
	ErrPersistence      = errors.New("persistence error")
)

// UpstreamError is a normalized provider failure. Message is safe to show
// to a user; Err keeps the underlying cause for logs.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ErrUpstream.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstream so callers never have to type-assert.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Upstream normalizes err into an *UpstreamError. Timeouts become a fixed
// message; an existing *UpstreamError passes through unchanged.
func Upstream(msg string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Message: "upstream request timed out", Err: err}
	}
	return &UpstreamError{Message: msg, Err: err}
}

// UpstreamMessage returns the user-safe message carried by err, or fallback.
func UpstreamMessage(err error, fallback string) string {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return fallback
}
