package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tutorloop/internal/journal"
)

// JournaledClient is a decorator that records every run service call as
// a local journal event.
type JournaledClient struct {
	inner Client
	repo  journal.EventRepo
	log   *zap.Logger
}

// WithJournal wraps a Client with event journaling. A nil logger is
// replaced with a no-op logger.
func WithJournal(c Client, repo journal.EventRepo, log *zap.Logger) Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &JournaledClient{inner: c, repo: repo, log: log}
}

func (j *JournaledClient) CreateThread(ctx context.Context) (*Thread, error) {
	start := time.Now()
	t, err := j.inner.CreateThread(ctx)

	data := journal.AgentCallEventData{
		Op:        "create_thread",
		SessionID: SessionIDFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if t != nil {
		data.ThreadID = t.ID
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	j.record(ctx, data)

	return t, err
}

func (j *JournaledClient) ThreadState(ctx context.Context, threadID string) (*ThreadState, error) {
	start := time.Now()
	st, err := j.inner.ThreadState(ctx, threadID)

	data := journal.AgentCallEventData{
		Op:        "thread_state",
		ThreadID:  threadID,
		SessionID: SessionIDFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	j.record(ctx, data)

	return st, err
}

func (j *JournaledClient) SendMessage(ctx context.Context, threadID string, msgs []Message, runCtx RunContext) error {
	start := time.Now()
	err := j.inner.SendMessage(ctx, threadID, msgs, runCtx)

	data := journal.AgentCallEventData{
		Op:        "send_message",
		ThreadID:  threadID,
		SessionID: runCtx.SessionID,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	j.record(ctx, data)

	return err
}

func (j *JournaledClient) Health(ctx context.Context) (*Health, error) {
	start := time.Now()
	h, err := j.inner.Health(ctx)

	data := journal.AgentCallEventData{
		Op:        "health",
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	j.record(ctx, data)

	return h, err
}

// record journals the event but never fails the wrapped call.
func (j *JournaledClient) record(ctx context.Context, data journal.AgentCallEventData) {
	if j.repo == nil {
		return
	}
	if err := j.repo.AppendAgentCall(ctx, data); err != nil {
		j.log.Warn("failed to journal agent call", zap.String("op", data.Op), zap.Error(err))
	}
}
