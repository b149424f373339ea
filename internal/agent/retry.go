package agent

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Second,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryClient is a decorator that retries transient errors on the read
// paths (ThreadState, Health) with exponential backoff and jitter.
// CreateThread and SendMessage pass through unretried: replaying a create
// can leak threads, and replaying a dispatch can double-start a run.
type RetryClient struct {
	inner  Client
	config RetryConfig
}

// WithRetry wraps a Client with retry logic.
func WithRetry(c Client, cfg RetryConfig) Client {
	return &RetryClient{inner: c, config: cfg}
}

func (r *RetryClient) CreateThread(ctx context.Context) (*Thread, error) {
	return r.inner.CreateThread(ctx)
}

func (r *RetryClient) SendMessage(ctx context.Context, threadID string, msgs []Message, runCtx RunContext) error {
	return r.inner.SendMessage(ctx, threadID, msgs, runCtx)
}

func (r *RetryClient) ThreadState(ctx context.Context, threadID string) (*ThreadState, error) {
	var st *ThreadState
	err := r.retry(ctx, func() error {
		var err error
		st, err = r.inner.ThreadState(ctx, threadID)
		return err
	})
	return st, err
}

func (r *RetryClient) Health(ctx context.Context) (*Health, error) {
	var h *Health
	err := r.retry(ctx, func() error {
		var err error
		h, err = r.inner.Health(ctx)
		return err
	})
	return h, err
}

func (r *RetryClient) retry(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		// Last attempt — don't sleep, just return the error.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		wait := r.backoff(attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// shouldRetry determines if an error is retryable.
func shouldRetry(err error) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// A missing thread won't reappear.
	var nf *ErrThreadNotFound
	if errors.As(err, &nf) {
		return false
	}

	// Malformed payloads are a service bug, not transient.
	var inv *ErrInvalidState
	if errors.As(err, &inv) {
		return false
	}

	// Rate limit, unavailable, and unclassified network errors are retryable.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryClient) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
