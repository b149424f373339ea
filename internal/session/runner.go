package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tutorloop/internal/agent"
	"tutorloop/internal/catalog"
	"tutorloop/internal/journal"
	"tutorloop/internal/records"
)

// Options configures a Runner.
type Options struct {
	// SessionID is the stable key for the kickoff latch. Generated when
	// empty.
	SessionID string

	StudentID string
	LessonID  string

	// ExistingThreadID resumes an existing thread instead of creating
	// one. Supplying it marks the session as resuming: no kickoff is
	// ever dispatched.
	ExistingThreadID string

	// KickoffDelay is the settle time before the kickoff dispatch.
	KickoffDelay time.Duration

	Poll PollConfig

	Agent   agent.Client
	Store   records.Client
	Catalog catalog.Client

	// Coordinator is the process-wide kickoff latch. Required.
	Coordinator *Coordinator

	// Events and Snapshots are the optional local journal repos.
	Events    journal.EventRepo
	Snapshots journal.SessionRepo

	Logger *zap.Logger
}

// Runner drives one session mount from start to teardown: resolve the
// resume position, create or attach the thread, guard the kickoff,
// poll for readiness, and persist observed progress. The thread id is
// set once per runner and never reassigned while the runner lives.
type Runner struct {
	opts    Options
	log     *zap.Logger
	guard   *KickoffGuard
	persist *PersistController
	poller  *Poller

	mu       sync.Mutex
	threadID string
	position ResumePosition
	started  bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewRunner validates options and builds a Runner. Start must be called
// to do anything.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Agent == nil {
		return nil, fmt.Errorf("agent client is required")
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Poll.MaxAttempts == 0 {
		opts.Poll = DefaultPollConfig()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", opts.SessionID))

	persist := NewPersistController(opts.Store, opts.Events, opts.Snapshots, log)

	return &Runner{
		opts:    opts,
		log:     log,
		persist: persist,
		poller:  NewPoller(opts.Agent, persist, opts.Poll, log),
	}, nil
}

// SessionID returns the runner's session id.
func (r *Runner) SessionID() string { return r.opts.SessionID }

// ThreadID returns the attached thread id, or "" before Start.
func (r *Runner) ThreadID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threadID
}

// Position returns the resolved resume position.
func (r *Runner) Position() ResumePosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Start runs the mount sequence. It returns once the kickoff decision
// has been made and the recovery loop is running in the background;
// Wait observes the loop, Close tears everything down.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("runner already started")
	}
	r.started = true
	r.mu.Unlock()

	ctx = agent.WithSessionID(ctx, r.opts.SessionID)

	stored := r.loadStored(ctx)
	blocks := r.loadBlocks(ctx)

	pos := ResolveResumePosition(stored, blocks)
	r.logResumeFallback(stored, blocks, pos)
	r.mu.Lock()
	r.position = pos
	r.mu.Unlock()

	resuming := r.opts.ExistingThreadID != ""
	threadID, msgCount, attachSnap, err := r.attachThread(ctx, &resuming)
	if err != nil {
		return err
	}
	if err := r.setThread(threadID); err != nil {
		return err
	}

	r.guard = NewKickoffGuard(r.opts.Coordinator, r.opts.SessionID, resuming, r.opts.KickoffDelay, r.log)
	dispatched, err := r.guard.EnsureKickoff(ctx, msgCount, func(ctx context.Context) error {
		return r.opts.Agent.SendMessage(ctx, threadID, agent.Kickoff(), agent.RunContext{
			SessionID:  r.opts.SessionID,
			StudentID:  r.opts.StudentID,
			LessonID:   r.opts.LessonID,
			BlockID:    pos.BlockID,
			Difficulty: string(pos.Difficulty),
		})
	})
	if err != nil {
		return fmt.Errorf("kickoff: %w", err)
	}
	r.journalLifecycle(ctx, threadID, kickoffAction(resuming, dispatched))

	// Reload recovery: the attach fetch may already hold a ready state.
	if attachSnap != nil && attachSnap.Ready() {
		r.persist.MaybeSave(ctx, attachSnap)
	}

	// One recovery loop per runner; it owns its own context so Close
	// can cancel it without the caller's ctx.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.group, loopCtx = errgroup.WithContext(loopCtx)
	r.group.Go(func() error {
		err := r.poller.Run(loopCtx, threadID)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("recovery loop ended without readiness", zap.Error(err))
		}
		// Poll exhaustion degrades to unsaved-this-cycle; it is not a
		// runner failure.
		return nil
	})

	return nil
}

// Wait blocks until the background recovery loop finishes.
func (r *Runner) Wait() error {
	if r.group == nil {
		return nil
	}
	return r.group.Wait()
}

// Close cancels the recovery loop and waits for it to exit. Safe to
// call more than once.
func (r *Runner) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	return r.Wait()
}

// loadStored fetches the student's stored session record. Store errors
// degrade to "no stored session" — resume falls back to defaults.
func (r *Runner) loadStored(ctx context.Context) *PracticeSession {
	if r.opts.Store == nil || r.opts.StudentID == "" {
		return nil
	}
	stored, err := r.opts.Store.SessionForStudent(ctx, r.opts.StudentID, r.opts.LessonID)
	if err != nil {
		r.log.Warn("failed to load stored session; starting fresh", zap.Error(err))
		return nil
	}
	if stored == nil {
		return nil
	}
	r.persist.AttachRecord(stored.RecordID)
	return SessionFromStored(stored)
}

func (r *Runner) loadBlocks(ctx context.Context) []catalog.Block {
	if r.opts.Catalog == nil {
		return nil
	}
	blocks, err := r.opts.Catalog.Blocks(ctx, r.opts.LessonID)
	if err != nil {
		r.log.Warn("failed to load block catalog", zap.Error(err))
		return nil
	}
	return blocks
}

// logResumeFallback notes when a stored session pointed at a block that
// no longer resolves in the catalog. Content can change between
// sessions; falling back beats crashing, but it should be visible.
func (r *Runner) logResumeFallback(stored *PracticeSession, blocks []catalog.Block, pos ResumePosition) {
	if stored == nil || len(stored.Blocks) == 0 {
		return
	}
	if stored.CurrentBlockIndex >= len(stored.Blocks) {
		return
	}
	wanted := stored.Blocks[stored.CurrentBlockIndex].BlockID
	for _, b := range blocks {
		if b.BlockID == wanted && b.Available {
			return
		}
	}
	r.log.Info("stored resume block not in current catalog; falling back",
		zap.String("stored_block", wanted),
		zap.String("resolved_block", pos.BlockID))
}

// attachThread returns the thread to use, its live message count, and
// any snapshot obtained while attaching. An expired resumed thread is
// replaced with a fresh one, clearing the resuming flag so the kickoff
// can fire.
func (r *Runner) attachThread(ctx context.Context, resuming *bool) (string, int, *StateSnapshot, error) {
	if *resuming {
		threadID := r.opts.ExistingThreadID
		st, err := r.opts.Agent.ThreadState(ctx, threadID)
		if err == nil {
			snap, snapErr := SnapshotFromThreadState(st, 0)
			if snapErr != nil {
				r.log.Warn("resumed thread state failed validation", zap.Error(snapErr))
				return threadID, st.MessageCount(), nil, nil
			}
			return threadID, snap.MessageCount, snap, nil
		}

		var nf *agent.ErrThreadNotFound
		if !errors.As(err, &nf) {
			return "", 0, nil, fmt.Errorf("attach thread: %w", err)
		}
		r.log.Info("stored thread expired; creating a fresh one",
			zap.String("thread_id", threadID))
		*resuming = false
	}

	t, err := r.opts.Agent.CreateThread(ctx)
	if err != nil {
		return "", 0, nil, fmt.Errorf("create thread: %w", err)
	}
	return t.ID, 0, nil, nil
}

// setThread records the thread id, enforcing immutability per runner.
func (r *Runner) setThread(threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.threadID != "" && r.threadID != threadID {
		return fmt.Errorf("thread id already set to %s", r.threadID)
	}
	r.threadID = threadID
	return nil
}

func (r *Runner) journalLifecycle(ctx context.Context, threadID, action string) {
	if r.opts.Events == nil {
		return
	}
	err := r.opts.Events.AppendLifecycle(ctx, journal.LifecycleEventData{
		SessionID: r.opts.SessionID,
		ThreadID:  threadID,
		Action:    action,
	})
	if err != nil {
		r.log.Warn("failed to journal lifecycle event", zap.Error(err))
	}
}

func kickoffAction(resuming, dispatched bool) string {
	switch {
	case resuming:
		return "resumed"
	case dispatched:
		return "kickoff_dispatched"
	default:
		return "kickoff_skipped"
	}
}
