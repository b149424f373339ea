package session

import (
	"context"
	"errors"
	"testing"

	"tutorloop/internal/records"
)

func testSnapshot(attempted int) *StateSnapshot {
	return &StateSnapshot{
		NeedsSave: true,
		PracticeSession: &PracticeSession{
			SessionID:         "sess-1",
			StudentID:         "student-1",
			Status:            StatusActive,
			CurrentBlockIndex: 0,
			Blocks:            []Block{{BlockID: "b1"}, {BlockID: "b2"}},
			BlocksProgress:    []BlockProgress{{BlockID: "b1", MasteryScore: 0.3}},
			TotalBlocks:       2,
			OverallMastery:    0.3,
			Attempted:         attempted,
		},
	}
}

func TestPersist_FirstSaveCreates(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)

	if !p.MaybeSave(context.Background(), testSnapshot(1)) {
		t.Fatal("expected save")
	}
	if store.CreateCount() != 1 {
		t.Fatalf("expected 1 create, got %d", store.CreateCount())
	}
	if store.PatchCount() != 0 {
		t.Fatalf("expected 0 patches, got %d", store.PatchCount())
	}
	if p.RecordID() != "rec-1" {
		t.Fatalf("expected record id remembered, got %q", p.RecordID())
	}
}

func TestPersist_SubsequentSavesPatch(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)

	p.MaybeSave(context.Background(), testSnapshot(1))
	p.MaybeSave(context.Background(), testSnapshot(2))
	p.MaybeSave(context.Background(), testSnapshot(3))

	if store.CreateCount() != 1 {
		t.Fatalf("expected exactly 1 create, got %d", store.CreateCount())
	}
	if store.PatchCount() != 2 {
		t.Fatalf("expected 2 patches, got %d", store.PatchCount())
	}
	if store.Patches[0].RecordID != "rec-1" {
		t.Fatalf("expected patches against created record, got %q", store.Patches[0].RecordID)
	}
}

func TestPersist_SameFingerprintWritesOnce(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)

	if !p.MaybeSave(context.Background(), testSnapshot(1)) {
		t.Fatal("expected first save")
	}
	if p.MaybeSave(context.Background(), testSnapshot(1)) {
		t.Fatal("expected duplicate snapshot to be skipped")
	}

	if store.CreateCount()+store.PatchCount() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", store.CreateCount()+store.PatchCount())
	}
}

func TestPersist_NoSessionOrNoSignalSkips(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)

	if p.MaybeSave(context.Background(), nil) {
		t.Fatal("expected nil snapshot skipped")
	}
	if p.MaybeSave(context.Background(), &StateSnapshot{NeedsSave: true}) {
		t.Fatal("expected snapshot without session skipped")
	}

	snap := testSnapshot(1)
	snap.NeedsSave = false
	if p.MaybeSave(context.Background(), snap) {
		t.Fatal("expected snapshot without save signal skipped")
	}

	if store.CreateCount()+store.PatchCount() != 0 {
		t.Fatal("expected no writes")
	}
}

func TestPersist_MissingSessionIDSkips(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)

	snap := testSnapshot(1)
	snap.PracticeSession.SessionID = ""
	if p.MaybeSave(context.Background(), snap) {
		t.Fatal("expected malformed session skipped")
	}
	if store.CreateCount() != 0 {
		t.Fatal("expected no create for malformed session")
	}
}

func TestPersist_FailedWriteDoesNotBlock(t *testing.T) {
	store := records.NewMockClient()
	store.CreateErr = errors.New("store down")
	p := NewPersistController(store, nil, nil, nil)

	if p.MaybeSave(context.Background(), testSnapshot(1)) {
		t.Fatal("expected failed save to report false")
	}
	if p.RecordID() != "" {
		t.Fatal("expected no record id after failed create")
	}

	// Recovery: the store comes back and the next distinct snapshot
	// saves normally, still as a create.
	store.CreateErr = nil
	if !p.MaybeSave(context.Background(), testSnapshot(2)) {
		t.Fatal("expected save after store recovery")
	}
	if store.CreateCount() != 1 {
		t.Fatalf("expected 1 create after recovery, got %d", store.CreateCount())
	}
}

func TestPersist_AttachRecordPatchesExisting(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)
	p.AttachRecord("rec-resumed")

	if !p.MaybeSave(context.Background(), testSnapshot(1)) {
		t.Fatal("expected save")
	}
	if store.CreateCount() != 0 {
		t.Fatal("expected no create for resumed record")
	}
	if store.PatchCount() != 1 || store.Patches[0].RecordID != "rec-resumed" {
		t.Fatalf("expected patch against resumed record, got %+v", store.Patches)
	}
}

func TestPersist_PatchCarriesOnlyMutableFields(t *testing.T) {
	store := records.NewMockClient()
	p := NewPersistController(store, nil, nil, nil)

	p.MaybeSave(context.Background(), testSnapshot(1))
	p.MaybeSave(context.Background(), testSnapshot(2))

	if store.PatchCount() != 1 {
		t.Fatalf("expected 1 patch, got %d", store.PatchCount())
	}
	patch := store.Patches[0].Patch
	if patch.BlocksProgress == "" {
		t.Fatal("expected progress in patch")
	}
	if patch.Attempted != 2 {
		t.Fatalf("expected attempted=2 in patch, got %d", patch.Attempted)
	}
	// Immutable metadata is only in the create payload.
	if store.Creates[0].StudentID != "student-1" {
		t.Fatal("expected student id in create payload")
	}
	if store.Creates[0].Blocks == "" {
		t.Fatal("expected block structure in create payload")
	}
}
