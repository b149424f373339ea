package session

import (
	"encoding/json"
	"testing"
)

func TestDecodePracticeSession_Valid(t *testing.T) {
	raw := json.RawMessage(`{
		"session_id": "sess-1",
		"student_id": "student-1",
		"status": "active",
		"current_block_index": 1,
		"blocks": [{"block_id": "b1", "title": "Fractions"}, {"block_id": "b2"}],
		"blocks_progress": [{"block_id": "b1", "mastery_score": 0.7, "is_complete": true}],
		"total_blocks": 2,
		"overall_mastery": 0.35
	}`)

	ps, err := DecodePracticeSession(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.SessionID != "sess-1" {
		t.Fatalf("SessionID = %q, want sess-1", ps.SessionID)
	}
	if len(ps.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(ps.Blocks))
	}
	if !ps.BlocksProgress[0].IsComplete {
		t.Fatal("expected progress decoded")
	}
}

func TestDecodePracticeSession_Empty(t *testing.T) {
	ps, err := DecodePracticeSession(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps != nil {
		t.Fatal("expected nil session for empty payload")
	}
}

func TestDecodePracticeSession_MissingSessionID(t *testing.T) {
	raw := json.RawMessage(`{"status": "active", "current_block_index": 0}`)
	if _, err := DecodePracticeSession(raw); err == nil {
		t.Fatal("expected validation error for missing session_id")
	}
}

func TestDecodePracticeSession_BadStatus(t *testing.T) {
	raw := json.RawMessage(`{"session_id": "s", "status": "paused", "current_block_index": 0}`)
	if _, err := DecodePracticeSession(raw); err == nil {
		t.Fatal("expected validation error for unknown status")
	}
}

func TestDecodePracticeSession_NotJSON(t *testing.T) {
	if _, err := DecodePracticeSession(json.RawMessage(`{broken`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDecodePracticeSession_IndexOutOfRange(t *testing.T) {
	raw := json.RawMessage(`{
		"session_id": "s",
		"status": "active",
		"current_block_index": 5,
		"total_blocks": 2
	}`)
	if _, err := DecodePracticeSession(raw); err == nil {
		t.Fatal("expected index invariant violation")
	}
}

func TestCheckIndex_CompleteAtEnd(t *testing.T) {
	ps := &PracticeSession{
		SessionID:         "s",
		Status:            StatusComplete,
		CurrentBlockIndex: 2,
		TotalBlocks:       2,
	}
	if err := ps.CheckIndex(); err != nil {
		t.Fatalf("index == total_blocks must be valid at completion: %v", err)
	}

	ps.Status = StatusActive
	if err := ps.CheckIndex(); err == nil {
		t.Fatal("index == total_blocks must be invalid while active")
	}
}

func TestMasteryReading_Resolve(t *testing.T) {
	cases := []struct {
		name    string
		reading MasteryReading
		prev    float64
		want    float64
	}{
		{"absolute", MasteryReading{Kind: MasteryAbsolute, Value: 0.6}, 0.2, 0.6},
		{"delta up", MasteryReading{Kind: MasteryDelta, Value: 0.1}, 0.2, 0.3},
		{"delta down", MasteryReading{Kind: MasteryDelta, Value: -0.1}, 0.2, 0.1},
		{"clamped high", MasteryReading{Kind: MasteryDelta, Value: 0.5}, 0.8, 1.0},
		{"clamped low", MasteryReading{Kind: MasteryDelta, Value: -0.5}, 0.2, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.reading.Resolve(tc.prev)
			if got != tc.want {
				t.Fatalf("Resolve(%v) = %v, want %v", tc.prev, got, tc.want)
			}
		})
	}
}
