package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestEventRepo_AppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	repo := j.EventRepo()
	ctx := context.Background()

	err := repo.AppendAgentCall(ctx, AgentCallEventData{
		Op:        "create_thread",
		SessionID: "sess-1",
		ThreadID:  "thread-1",
		LatencyMs: 42,
		Success:   true,
	})
	if err != nil {
		t.Fatalf("AppendAgentCall: %v", err)
	}
	err = repo.AppendLifecycle(ctx, LifecycleEventData{
		SessionID: "sess-1",
		ThreadID:  "thread-1",
		Action:    "kickoff_dispatched",
	})
	if err != nil {
		t.Fatalf("AppendLifecycle: %v", err)
	}
	err = repo.AppendSave(ctx, SaveEventData{
		SessionID: "sess-1",
		RecordID:  "rec-1",
		Created:   true,
		Success:   true,
	})
	if err != nil {
		t.Fatalf("AppendSave: %v", err)
	}

	events, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Newest first.
	if events[0].Kind != KindSave || events[2].Kind != KindAgentCall {
		t.Fatalf("unexpected order: %s, %s, %s", events[0].Kind, events[1].Kind, events[2].Kind)
	}
	if events[2].LatencyMs != 42 {
		t.Fatalf("latency = %d", events[2].LatencyMs)
	}
}

func TestEventRepo_SequenceIsMonotonic(t *testing.T) {
	j := openTestJournal(t)
	repo := j.EventRepo()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.AppendLifecycle(ctx, LifecycleEventData{SessionID: "s", Action: "tick"}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].Sequence <= events[i].Sequence {
			t.Fatalf("sequence not strictly decreasing newest-first: %d then %d",
				events[i-1].Sequence, events[i].Sequence)
		}
	}
}

func TestEventRepo_RecentLimit(t *testing.T) {
	j := openTestJournal(t)
	repo := j.EventRepo()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := repo.AppendLifecycle(ctx, LifecycleEventData{SessionID: "s", Action: "tick"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	events, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected limit honored, got %d events", len(events))
	}
}

func TestSessionRepo_UpsertGetList(t *testing.T) {
	j := openTestJournal(t)
	repo := j.SessionRepo()
	ctx := context.Background()

	snap := SessionSnapshot{
		SessionID:   "sess-1",
		RecordID:    "rec-1",
		Status:      "active",
		BlockIndex:  0,
		TotalBlocks: 3,
		Attempted:   2,
		Mastery:     0.25,
	}
	if err := repo.Upsert(ctx, snap); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Mastery != 0.25 || got.Attempted != 2 {
		t.Fatalf("Get = %+v", got)
	}

	// Upsert replaces, never duplicates.
	snap.BlockIndex = 1
	snap.Mastery = 0.4
	if err := repo.Upsert(ctx, snap); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 snapshot after re-upsert, got %d", len(all))
	}
	if all[0].BlockIndex != 1 || all[0].Mastery != 0.4 {
		t.Fatalf("upsert did not replace: %+v", all[0])
	}
}

func TestSessionRepo_GetMissing(t *testing.T) {
	j := openTestJournal(t)
	got, err := j.SessionRepo().Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing session, got %+v", got)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := j.EventRepo().AppendLifecycle(ctx, LifecycleEventData{SessionID: "s", Action: "tick"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	events, err := j2.EventRepo().Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the event to survive reopen, got %d", len(events))
	}
}
