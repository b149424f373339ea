package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tutorloop/internal/journal"
	"tutorloop/internal/records"
)

// fingerprint identifies one distinct observed session state. Compared
// by value; never persisted across restarts.
type fingerprint struct {
	sessionID  string
	status     Status
	blockIndex int
	attempted  int
	mastery    float64
}

func fingerprintOf(ps *PracticeSession) fingerprint {
	return fingerprint{
		sessionID:  ps.SessionID,
		status:     ps.Status,
		blockIndex: ps.CurrentBlockIndex,
		attempted:  ps.Attempted,
		mastery:    ps.OverallMastery,
	}
}

// PersistController mirrors agent-reported session state into the
// external store: create on first save, patch afterwards, and never two
// writes for the same fingerprint. Write failures are logged and the
// session continues unsaved for that cycle — persistence is fail-open
// so the learner is never blocked on a background save.
type PersistController struct {
	store  records.Client
	events journal.EventRepo
	snaps  journal.SessionRepo
	log    *zap.Logger

	mu       sync.Mutex
	recordID string
	lastSent *fingerprint
}

// NewPersistController creates a controller writing through store.
// events and snaps may be nil; the local journal is best-effort.
func NewPersistController(store records.Client, events journal.EventRepo, snaps journal.SessionRepo, log *zap.Logger) *PersistController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersistController{store: store, events: events, snaps: snaps, log: log}
}

// RecordID returns the external store document id, or "" before the
// first successful create.
func (p *PersistController) RecordID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordID
}

// AttachRecord binds the controller to an existing store record, so a
// resumed session patches instead of creating a duplicate.
func (p *PersistController) AttachRecord(recordID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordID = recordID
}

// MaybeSave examines one state snapshot and issues at most one store
// write for it. Returns true if a write was sent and succeeded.
func (p *PersistController) MaybeSave(ctx context.Context, snap *StateSnapshot) bool {
	if snap == nil || snap.PracticeSession == nil || !snap.NeedsSave {
		return false
	}
	ps := snap.PracticeSession

	if p.store == nil {
		// No store configured: keep the local mirror fresh and move on.
		p.mirrorLocal(ctx, ps)
		return false
	}

	if ps.SessionID == "" {
		// Contract violation from the backend; skip rather than write a
		// record that can never be resumed.
		p.log.Error("refusing to persist session with empty session_id")
		return false
	}

	fp := fingerprintOf(ps)

	p.mu.Lock()
	if p.lastSent != nil && *p.lastSent == fp {
		p.mu.Unlock()
		return false
	}
	recordID := p.recordID
	p.mu.Unlock()

	var err error
	var created bool
	var newRecordID string

	if recordID == "" {
		created = true
		newRecordID, err = p.create(ctx, ps)
	} else {
		err = p.patch(ctx, recordID, ps)
	}

	p.journalSave(ctx, ps, created, err)

	if err != nil {
		p.log.Warn("session save failed; continuing unsaved",
			zap.String("session_id", ps.SessionID),
			zap.Bool("create", created),
			zap.Error(err))
		return false
	}

	p.mu.Lock()
	if created {
		p.recordID = newRecordID
	}
	p.lastSent = &fp
	p.mu.Unlock()

	p.mirrorLocal(ctx, ps)
	return true
}

func (p *PersistController) create(ctx context.Context, ps *PracticeSession) (string, error) {
	blocks, err := records.EncodeField(ps.Blocks)
	if err != nil {
		return "", err
	}
	progress, err := records.EncodeField(ps.BlocksProgress)
	if err != nil {
		return "", err
	}

	payload := records.SessionPayload{
		SessionID:         ps.SessionID,
		StudentID:         ps.StudentID,
		LessonID:          ps.LessonID,
		Status:            string(ps.Status),
		CurrentBlockIndex: ps.CurrentBlockIndex,
		Blocks:            blocks,
		BlocksProgress:    progress,
		TotalBlocks:       ps.TotalBlocks,
		OverallMastery:    ps.OverallMastery,
		Attempted:         ps.Attempted,
		Correct:           ps.Correct,
		CurrentQuestion:   string(ps.CurrentQuestion),
		CurrentDifficulty: string(ps.CurrentDifficulty),
		AwaitingResponse:  ps.AwaitingResponse,
		StartedAt:         ps.StartedAt,
		LastActiveAt:      lastActive(ps),
	}
	return p.store.CreateSession(ctx, payload)
}

func (p *PersistController) patch(ctx context.Context, recordID string, ps *PracticeSession) error {
	progress, err := records.EncodeField(ps.BlocksProgress)
	if err != nil {
		return err
	}

	patch := records.SessionPatch{
		Status:            string(ps.Status),
		CurrentBlockIndex: ps.CurrentBlockIndex,
		BlocksProgress:    progress,
		OverallMastery:    ps.OverallMastery,
		Attempted:         ps.Attempted,
		Correct:           ps.Correct,
		CurrentQuestion:   string(ps.CurrentQuestion),
		CurrentDifficulty: string(ps.CurrentDifficulty),
		AwaitingResponse:  ps.AwaitingResponse,
		LastActiveAt:      lastActive(ps),
	}
	return p.store.PatchSession(ctx, recordID, patch)
}

func (p *PersistController) journalSave(ctx context.Context, ps *PracticeSession, created bool, saveErr error) {
	if p.events == nil {
		return
	}
	data := journal.SaveEventData{
		SessionID: ps.SessionID,
		RecordID:  p.RecordID(),
		Created:   created,
		Success:   saveErr == nil,
	}
	if saveErr != nil {
		data.Detail = saveErr.Error()
	}
	if err := p.events.AppendSave(ctx, data); err != nil {
		p.log.Warn("failed to journal save event", zap.Error(err))
	}
}

func (p *PersistController) mirrorLocal(ctx context.Context, ps *PracticeSession) {
	if p.snaps == nil {
		return
	}
	err := p.snaps.Upsert(ctx, journal.SessionSnapshot{
		SessionID:   ps.SessionID,
		RecordID:    p.RecordID(),
		Status:      string(ps.Status),
		BlockIndex:  ps.CurrentBlockIndex,
		TotalBlocks: ps.TotalBlocks,
		Attempted:   ps.Attempted,
		Mastery:     ps.OverallMastery,
	})
	if err != nil {
		p.log.Warn("failed to mirror session locally", zap.Error(err))
	}
}

func lastActive(ps *PracticeSession) string {
	if ps.LastActiveAt != "" {
		return ps.LastActiveAt
	}
	return time.Now().UTC().Format(time.RFC3339)
}
