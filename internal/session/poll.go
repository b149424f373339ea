package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tutorloop/internal/agent"
)

// PollConfig tunes the recovery loop. Agent runs are long (10-15s
// observed) and the dispatch call returns at stream start, so readiness
// is observed by fetching thread state on a fixed cadence.
type PollConfig struct {
	// WarmUp is the delay before the first fetch, so the loop doesn't
	// race the dispatch call's own startup.
	WarmUp time.Duration

	// Interval is the fixed wait between fetches. No backoff: the
	// budget is small and the cadence deliberate.
	Interval time.Duration

	// MaxAttempts bounds the number of fetches per cycle.
	MaxAttempts int
}

// DefaultPollConfig returns the standard polling settings.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		WarmUp:      2 * time.Second,
		Interval:    3 * time.Second,
		MaxAttempts: 12,
	}
}

var (
	// ErrPollExhausted is returned when the retry budget runs out
	// before the thread state becomes ready.
	ErrPollExhausted = errors.New("poll budget exhausted before thread state became ready")

	// ErrPollInFlight is returned when a poll cycle is started while
	// another is still running for the same poller.
	ErrPollInFlight = errors.New("a poll cycle is already in flight")
)

// Poller watches a thread until its state is ready, then hands the
// snapshot to the persistence controller exactly once. One cycle runs
// at a time per poller; a new dispatch must wait for (or share) the
// current cycle rather than stack a second loop.
type Poller struct {
	client  agent.Client
	persist *PersistController
	cfg     PollConfig
	log     *zap.Logger

	inFlight atomic.Bool

	// lastMastery carries the previous absolute mastery forward so
	// delta-form reports resolve correctly across cycles.
	lastMastery atomic.Value // float64
}

// NewPoller creates a Poller for one runner.
func NewPoller(client agent.Client, persist *PersistController, cfg PollConfig, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollConfig().MaxAttempts
	}
	p := &Poller{client: client, persist: persist, cfg: cfg, log: log}
	p.lastMastery.Store(0.0)
	return p
}

// Run executes one poll cycle against threadID. It returns nil once a
// ready snapshot was observed and handed off, ErrPollExhausted when the
// budget ran out, or the context error on cancellation. Transient fetch
// failures consume attempts from the same budget as not-ready polls.
func (p *Poller) Run(ctx context.Context, threadID string) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer p.inFlight.Store(false)

	if err := sleepCtx(ctx, p.cfg.WarmUp); err != nil {
		return err
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		snap, err := p.fetch(ctx, threadID)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.log.Debug("poll fetch failed",
				zap.String("thread_id", threadID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		case snap.Ready():
			p.handoff(ctx, snap)
			return nil
		}

		// Not ready (or fetch failed): wait out the interval unless
		// this was the final attempt.
		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := sleepCtx(ctx, p.cfg.Interval); err != nil {
			return err
		}
	}

	p.log.Warn("thread state never became ready; session unsaved this cycle",
		zap.String("thread_id", threadID),
		zap.Int("attempts", p.cfg.MaxAttempts))
	return ErrPollExhausted
}

func (p *Poller) fetch(ctx context.Context, threadID string) (*StateSnapshot, error) {
	st, err := p.client.ThreadState(ctx, threadID)
	if err != nil {
		return nil, err
	}
	prev, _ := p.lastMastery.Load().(float64)
	return SnapshotFromThreadState(st, prev)
}

func (p *Poller) handoff(ctx context.Context, snap *StateSnapshot) {
	if snap.PracticeSession != nil {
		p.lastMastery.Store(snap.PracticeSession.OverallMastery)
	}
	if p.persist != nil {
		p.persist.MaybeSave(ctx, snap)
	}
}

// sleepCtx waits for d or until ctx is done. The timer is always
// released so no teardown leaks a pending wake.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
