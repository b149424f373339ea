package agent

import (
	"fmt"
	"time"
)

// ErrRateLimit indicates the service returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrThreadNotFound indicates the thread id is unknown to the service,
// typically because it expired between sessions.
type ErrThreadNotFound struct {
	ThreadID string
}

func (e *ErrThreadNotFound) Error() string {
	return fmt.Sprintf("thread %q not found", e.ThreadID)
}

// ErrUnavailable indicates the run service is down or unreachable.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent service unavailable: %v", e.Err)
	}
	return "agent service unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// ErrInvalidState indicates the service returned a state payload that
// could not be decoded.
type ErrInvalidState struct {
	Err error
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("invalid thread state: %v", e.Err)
}

func (e *ErrInvalidState) Unwrap() error { return e.Err }
