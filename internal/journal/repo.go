package journal

import (
	"context"
	"time"
)

// Event kinds recorded in the journal.
const (
	KindAgentCall = "agent_call"
	KindLifecycle = "lifecycle"
	KindSave      = "save"
)

// AgentCallEventData captures a single call against the run service.
type AgentCallEventData struct {
	Op           string // "create_thread", "thread_state", "send_message", "health"
	ThreadID     string
	SessionID    string
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LifecycleEventData captures a session lifecycle transition
// (kickoff dispatched, poll exhausted, resume resolved, ...).
type LifecycleEventData struct {
	SessionID string
	ThreadID  string
	Action    string
	Detail    string
}

// SaveEventData captures a persistence write to the external store.
type SaveEventData struct {
	SessionID string
	RecordID  string
	Created   bool // create vs patch
	Success   bool
	Detail    string
}

// Event is a journaled event row.
type Event struct {
	Sequence  int64
	Timestamp time.Time
	Kind      string
	SessionID string
	ThreadID  string
	Op        string
	Success   bool
	LatencyMs int64
	Detail    string
}

// EventRepo provides append and query access to journal events.
type EventRepo interface {
	// AppendAgentCall records a run service API call.
	AppendAgentCall(ctx context.Context, data AgentCallEventData) error

	// AppendLifecycle records a session lifecycle transition.
	AppendLifecycle(ctx context.Context, data LifecycleEventData) error

	// AppendSave records a persistence write.
	AppendSave(ctx context.Context, data SaveEventData) error

	// Recent returns the most recent events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// SessionSnapshot mirrors the latest locally-observed state of one
// practice session, for offline inspection.
type SessionSnapshot struct {
	SessionID   string
	RecordID    string
	Status      string
	BlockIndex  int
	TotalBlocks int
	Attempted   int
	Mastery     float64
	UpdatedAt   time.Time
}

// SessionRepo stores per-session snapshots.
type SessionRepo interface {
	// Upsert writes or replaces the snapshot for its session id.
	Upsert(ctx context.Context, snap SessionSnapshot) error

	// List returns all snapshots, most recently updated first.
	List(ctx context.Context) ([]SessionSnapshot, error)

	// Get returns the snapshot for a session id, or nil if absent.
	Get(ctx context.Context, sessionID string) (*SessionSnapshot, error)
}
