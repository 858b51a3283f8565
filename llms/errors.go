package llms

import (
	"errors"
	"fmt"
)

// UpstreamTimeoutError is raised when a provider call exceeds its deadline.
type UpstreamTimeoutError struct {
	Provider string
	Op       string
	Err      error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("llms: %s %s timed out: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamTimeoutError) Unwrap() error { return e.Err }

// UpstreamError wraps any non-timeout failure returned by a provider.
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llms: %s %s failed (status=%d): %v", e.Provider, e.Op, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SchemaViolationError is raised when a structured-output response cannot be
// normalized into the caller's expected JSON shape after one repair attempt.
type SchemaViolationError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("llms: structured output from %s violates schema: %v", e.Provider, e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// CancelledError wraps context.Canceled for call sites that need to
// distinguish caller-initiated cancellation from upstream failure.
type CancelledError struct {
	Op  string
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("llms: %s cancelled: %v", e.Op, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// IsCancelled reports whether err (or anything it wraps) is a CancelledError.
func IsCancelled(err error) bool {
	var c *CancelledError
	return errors.As(err, &c)
}
