package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// eventRepo implements EventRepo with raw SQL. The schema is three
// tables; the only non-trivial concern is the shared sequence below.
type eventRepo struct {
	db *sql.DB

	// seqMu serializes sequence allocation within the process; the
	// RETURNING clause makes the increment atomic at the database level.
	seqMu sync.Mutex
}

// nextSequence atomically returns the next global sequence number.
// All event kinds share one counter so cross-kind ordering is total.
func (r *eventRepo) nextSequence(ctx context.Context) (int64, error) {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()

	var seq int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func (r *eventRepo) append(ctx context.Context, kind, sessionID, threadID, op string, success bool, latencyMs int64, detail string) error {
	seq, err := r.nextSequence(ctx)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (sequence, kind, session_id, thread_id, op, success, latency_ms, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		seq, kind, sessionID, threadID, op, boolToInt(success), latencyMs, detail,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", kind, err)
	}
	return nil
}

func (r *eventRepo) AppendAgentCall(ctx context.Context, data AgentCallEventData) error {
	return r.append(ctx, KindAgentCall, data.SessionID, data.ThreadID, data.Op,
		data.Success, data.LatencyMs, data.ErrorMessage)
}

func (r *eventRepo) AppendLifecycle(ctx context.Context, data LifecycleEventData) error {
	return r.append(ctx, KindLifecycle, data.SessionID, data.ThreadID, data.Action,
		true, 0, data.Detail)
}

func (r *eventRepo) AppendSave(ctx context.Context, data SaveEventData) error {
	op := "patch"
	if data.Created {
		op = "create"
	}
	detail := data.Detail
	if detail == "" {
		detail = data.RecordID
	}
	return r.append(ctx, KindSave, data.SessionID, "", op, data.Success, 0, detail)
}

func (r *eventRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT sequence, timestamp, kind, session_id, thread_id, op, success, latency_ms, detail
		 FROM events ORDER BY sequence DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var success int
		if err := rows.Scan(&e.Sequence, &e.Timestamp, &e.Kind, &e.SessionID,
			&e.ThreadID, &e.Op, &success, &e.LatencyMs, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Success = success != 0
		events = append(events, e)
	}
	return events, rows.Err()
}

// sessionRepo implements SessionRepo.
type sessionRepo struct {
	db *sql.DB
}

func (r *sessionRepo) Upsert(ctx context.Context, snap SessionSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (session_id, record_id, status, block_index, total_blocks, attempted, mastery, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			record_id = excluded.record_id,
			status = excluded.status,
			block_index = excluded.block_index,
			total_blocks = excluded.total_blocks,
			attempted = excluded.attempted,
			mastery = excluded.mastery,
			updated_at = excluded.updated_at`,
		snap.SessionID, snap.RecordID, snap.Status, snap.BlockIndex,
		snap.TotalBlocks, snap.Attempted, snap.Mastery, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session snapshot: %w", err)
	}
	return nil
}

func (r *sessionRepo) List(ctx context.Context) ([]SessionSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, record_id, status, block_index, total_blocks, attempted, mastery, updated_at
		 FROM session_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query session snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []SessionSnapshot
	for rows.Next() {
		var s SessionSnapshot
		if err := rows.Scan(&s.SessionID, &s.RecordID, &s.Status, &s.BlockIndex,
			&s.TotalBlocks, &s.Attempted, &s.Mastery, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT session_id, record_id, status, block_index, total_blocks, attempted, mastery, updated_at
		 FROM session_snapshots WHERE session_id = ?`, sessionID)

	var s SessionSnapshot
	err := row.Scan(&s.SessionID, &s.RecordID, &s.Status, &s.BlockIndex,
		&s.TotalBlocks, &s.Attempted, &s.Mastery, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session snapshot: %w", err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
