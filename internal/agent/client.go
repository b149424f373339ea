package agent

import (
	"context"
	"encoding/json"
)

// Client is the core abstraction for the backend agent run service.
// A thread is a server-side conversation/run context; the client creates
// threads, reads their state, and dispatches messages into them.
type Client interface {
	// CreateThread allocates a new thread and returns its id.
	CreateThread(ctx context.Context) (*Thread, error)

	// ThreadState fetches the current state of a thread. The returned
	// values reflect whatever the agent has written so far; for a
	// long-running run this may lag the dispatch by many seconds.
	ThreadState(ctx context.Context, threadID string) (*ThreadState, error)

	// SendMessage dispatches messages into a thread and starts an agent
	// run. It resolves when the run's stream has started, not when the
	// run completes. Callers observe completion via ThreadState.
	SendMessage(ctx context.Context, threadID string, msgs []Message, runCtx RunContext) error

	// Health reports service availability and the running service version.
	Health(ctx context.Context) (*Health, error)
}

// Thread identifies a backend conversation/run context.
type Thread struct {
	ID string `json:"thread_id"`
}

// Message is a single message in a thread.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Kickoff returns the designated kickoff message: an empty human turn
// that triggers the agent's first move.
func Kickoff() []Message {
	return []Message{{Role: RoleHuman, Content: ""}}
}

// RunContext carries the per-run configuration forwarded to the agent.
type RunContext struct {
	SessionID  string `json:"session_id"`
	StudentID  string `json:"student_id"`
	LessonID   string `json:"lesson_id,omitempty"`
	BlockID    string `json:"block_id,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// ThreadValues is the agent-owned state embedded in a thread.
// PracticeSession is kept raw here; the session package validates and
// decodes it at the boundary.
type ThreadValues struct {
	Messages         []Message       `json:"messages"`
	SessionNeedsSave bool            `json:"session_needs_save"`
	PracticeSession  json.RawMessage `json:"practice_session,omitempty"`
	CurrentStage     string          `json:"current_stage,omitempty"`
	MasteryDelta     *float64        `json:"mastery_delta,omitempty"`
}

// Task is a pending unit of agent work; interrupts signal the run is
// waiting on external input.
type Task struct {
	Interrupts []json.RawMessage `json:"interrupts,omitempty"`
}

// ThreadState is the full fetched state of a thread.
type ThreadState struct {
	Values ThreadValues `json:"values"`
	Tasks  []Task       `json:"tasks,omitempty"`
}

// MessageCount returns the number of messages the thread holds.
func (s *ThreadState) MessageCount() int {
	return len(s.Values.Messages)
}

// Interrupted reports whether any pending task carries an interrupt.
func (s *ThreadState) Interrupted() bool {
	for _, t := range s.Tasks {
		if len(t.Interrupts) > 0 {
			return true
		}
	}
	return false
}

// Health is the run service's health report.
type Health struct {
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
}
