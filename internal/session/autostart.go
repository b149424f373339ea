package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Coordinator is the process-wide kickoff latch, shared by every runner
// in the process. It exists because the same logical session can be
// mounted more than once concurrently; the latch guarantees at most one
// kickoff dispatch per session id for the life of the process.
//
// The latch is keyed by session id, not thread id. Two live threads for
// one session id would suppress the second kickoff; product rules say
// that pairing cannot occur, so this is an accepted assumption.
type Coordinator struct {
	mu      sync.Mutex
	started map[string]bool
}

// NewCoordinator creates an empty Coordinator. Construct one at app
// start and share it; tests construct their own so state never leaks
// between them.
func NewCoordinator() *Coordinator {
	return &Coordinator{started: make(map[string]bool)}
}

// TryStart atomically claims the kickoff for a session id. It returns
// true exactly once per id until Rollback clears the claim.
func (c *Coordinator) TryStart(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started[sessionID] {
		return false
	}
	c.started[sessionID] = true
	return true
}

// MarkStarted records a session as started without claiming a dispatch,
// for threads that already carry messages.
func (c *Coordinator) MarkStarted(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[sessionID] = true
}

// Started reports whether a session id has been claimed.
func (c *Coordinator) Started(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started[sessionID]
}

// Rollback clears the claim for a session id so a later attempt may
// dispatch again. Called when a dispatch fails.
func (c *Coordinator) Rollback(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.started, sessionID)
}

// Reset clears every claim. Intended for logout/session-end and tests.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = make(map[string]bool)
}

// DispatchFunc sends the kickoff message into the active thread.
type DispatchFunc func(ctx context.Context) error

// KickoffGuard decides, for one runner instance, whether the kickoff
// message is dispatched. The cross-instance decision lives in the
// Coordinator; the guard adds the per-instance state and the resume and
// already-populated short-circuits.
type KickoffGuard struct {
	coord     *Coordinator
	sessionID string
	resuming  bool
	delay     time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewKickoffGuard creates a guard for one session mount. resuming must
// be true iff a thread id was supplied externally before any message
// exchange. delay is the settle time between claiming the latch and
// dispatching.
func NewKickoffGuard(coord *Coordinator, sessionID string, resuming bool, delay time.Duration, log *zap.Logger) *KickoffGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &KickoffGuard{
		coord:     coord,
		sessionID: sessionID,
		resuming:  resuming,
		delay:     delay,
		log:       log,
	}
}

// Started reports the guard's local started state.
func (g *KickoffGuard) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// EnsureKickoff runs the guard once the thread is attached.
// messageCount is the thread's live message count. dispatch is invoked
// at most once per session id process-wide. Returns whether this call
// dispatched.
//
// On dispatch failure the latch is rolled back and the local state
// reset, so a retry is permitted; the error is returned to the caller.
func (g *KickoffGuard) EnsureKickoff(ctx context.Context, messageCount int, dispatch DispatchFunc) (bool, error) {
	// Resuming an existing thread never re-sends a kickoff; prior
	// messages arrive via the thread-attach path instead.
	if g.resuming {
		g.coord.MarkStarted(g.sessionID)
		g.setStarted(true)
		return false, nil
	}

	// A peer instance already claimed this session (framework
	// double-mount); adopt its result.
	if g.coord.Started(g.sessionID) {
		g.setStarted(true)
		return false, nil
	}

	// The thread already carries messages: state loaded before this
	// guard ran (page-reload race). Mark started, no dispatch.
	if messageCount >= 1 {
		g.coord.MarkStarted(g.sessionID)
		g.setStarted(true)
		return false, nil
	}

	// Claim the latch. The check-and-set is a single mutex-held
	// operation; no suspension point splits it.
	if !g.coord.TryStart(g.sessionID) {
		g.setStarted(true)
		return false, nil
	}
	g.setStarted(true)

	// Short settle delay so the runtime finishes wiring before the
	// first dispatch.
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			g.coord.Rollback(g.sessionID)
			g.setStarted(false)
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	if err := dispatch(ctx); err != nil {
		g.coord.Rollback(g.sessionID)
		g.setStarted(false)
		g.log.Error("kickoff dispatch failed",
			zap.String("session_id", g.sessionID),
			zap.Error(err))
		return false, err
	}

	return true, nil
}

func (g *KickoffGuard) setStarted(v bool) {
	g.mu.Lock()
	g.started = v
	g.mu.Unlock()
}
