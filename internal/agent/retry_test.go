package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetryClient_TransientThenSuccess(t *testing.T) {
	mock := NewMockClient()
	mock.QueueState(nil, &ErrUnavailable{Err: fmt.Errorf("gateway blew up")})
	mock.QueueState(&ThreadState{Values: ThreadValues{SessionNeedsSave: true}}, nil)

	c := WithRetry(mock, fastRetryConfig())
	st, err := c.ThreadState(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Values.SessionNeedsSave {
		t.Fatal("expected the second (successful) state")
	}
	if got := mock.StateCallCount(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestRetryClient_ExhaustsAttempts(t *testing.T) {
	mock := NewMockClient()
	for i := 0; i < 3; i++ {
		mock.QueueState(nil, &ErrUnavailable{Err: fmt.Errorf("still down")})
	}

	c := WithRetry(mock, fastRetryConfig())
	_, err := c.ThreadState(context.Background(), "thread-1")

	var unavail *ErrUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := mock.StateCallCount(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRetryClient_NotFoundNotRetried(t *testing.T) {
	mock := NewMockClient()
	mock.QueueState(nil, &ErrThreadNotFound{ThreadID: "thread-x"})

	c := WithRetry(mock, fastRetryConfig())
	_, err := c.ThreadState(context.Background(), "thread-x")

	var nf *ErrThreadNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
	if got := mock.StateCallCount(); got != 1 {
		t.Fatalf("a missing thread must not be retried, got %d attempts", got)
	}
}

func TestRetryClient_InvalidStateNotRetried(t *testing.T) {
	mock := NewMockClient()
	mock.QueueState(nil, &ErrInvalidState{Err: fmt.Errorf("bad payload")})

	c := WithRetry(mock, fastRetryConfig())
	if _, err := c.ThreadState(context.Background(), "thread-1"); err == nil {
		t.Fatal("expected error")
	}
	if got := mock.StateCallCount(); got != 1 {
		t.Fatalf("invalid state must not be retried, got %d attempts", got)
	}
}

func TestRetryClient_SendMessagePassesThrough(t *testing.T) {
	mock := NewMockClient()
	mock.SendErr = &ErrUnavailable{Err: fmt.Errorf("down")}

	c := WithRetry(mock, fastRetryConfig())
	err := c.SendMessage(context.Background(), "thread-1", Kickoff(), RunContext{SessionID: "s"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := mock.SendCount(); got != 1 {
		t.Fatalf("a dispatch must never be replayed, got %d attempts", got)
	}
}

func TestRetryClient_CreateThreadPassesThrough(t *testing.T) {
	mock := NewMockClient()
	mock.CreateErr = &ErrUnavailable{Err: fmt.Errorf("down")}

	c := WithRetry(mock, fastRetryConfig())
	if _, err := c.CreateThread(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := len(mock.CreatedThreads); got != 0 {
		t.Fatalf("expected no created threads, got %d", got)
	}
}

func TestRetryClient_ContextCanceled(t *testing.T) {
	mock := NewMockClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock.QueueState(nil, ctx.Err())

	c := WithRetry(mock, fastRetryConfig())
	_, err := c.ThreadState(ctx, "thread-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := mock.StateCallCount(); got != 1 {
		t.Fatalf("cancellation must not be retried, got %d attempts", got)
	}
}

func TestBackoff_RespectsRetryAfter(t *testing.T) {
	r := &RetryClient{config: fastRetryConfig()}
	wait := r.backoff(0, &ErrRateLimit{RetryAfter: 42 * time.Millisecond})
	if wait != 42*time.Millisecond {
		t.Fatalf("backoff = %v, want the server's RetryAfter", wait)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	r := &RetryClient{config: RetryConfig{
		MaxAttempts: 5,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     300 * time.Millisecond,
		Multiplier:  2.0,
	}}
	plain := fmt.Errorf("transient")

	// Jitter is ±20%, so bounds are wide but still informative.
	if w := r.backoff(0, plain); w < 80*time.Millisecond || w > 120*time.Millisecond {
		t.Fatalf("attempt 0 backoff out of range: %v", w)
	}
	if w := r.backoff(4, plain); w > 360*time.Millisecond {
		t.Fatalf("backoff exceeded cap plus jitter: %v", w)
	}
}
