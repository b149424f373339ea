package records

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client is the external persistence store boundary. Session records
// outlive threads; the store is the source of truth for resume.
type Client interface {
	// CreateSession creates a session record and returns the store's
	// document id for it.
	CreateSession(ctx context.Context, payload SessionPayload) (string, error)

	// PatchSession applies a partial update to an existing record.
	PatchSession(ctx context.Context, recordID string, patch SessionPatch) error

	// SessionForStudent returns the most recent active session record
	// for a student/lesson pair, or nil if none exists.
	SessionForStudent(ctx context.Context, studentID, lessonID string) (*StoredSession, error)
}

// SessionPayload is the full record written on create. The store schema
// only accepts scalars, so structured fields travel as JSON strings.
type SessionPayload struct {
	SessionID         string `json:"session_id"`
	StudentID         string `json:"student_id"`
	LessonID          string `json:"lesson_id,omitempty"`
	Status            string `json:"status"`
	CurrentBlockIndex int    `json:"current_block_index"`
	Blocks            string `json:"blocks"`          // JSON-encoded []Block
	BlocksProgress    string `json:"blocks_progress"` // JSON-encoded []BlockProgress
	TotalBlocks       int    `json:"total_blocks"`
	OverallMastery    float64 `json:"overall_mastery"`
	Attempted         int    `json:"total_questions_attempted"`
	Correct           int    `json:"total_questions_correct"`
	CurrentQuestion   string `json:"current_question"` // JSON-encoded object
	CurrentDifficulty string `json:"current_difficulty,omitempty"`
	AwaitingResponse  bool   `json:"awaiting_response"`
	StartedAt         string `json:"started_at,omitempty"`
	LastActiveAt      string `json:"last_active_at,omitempty"`
}

// SessionPatch carries only the mutable progress fields. Immutable
// source metadata (student, lesson, block structure) is never resent.
type SessionPatch struct {
	Status            string  `json:"status"`
	CurrentBlockIndex int     `json:"current_block_index"`
	BlocksProgress    string  `json:"blocks_progress"`
	OverallMastery    float64 `json:"overall_mastery"`
	Attempted         int     `json:"total_questions_attempted"`
	Correct           int     `json:"total_questions_correct"`
	CurrentQuestion   string  `json:"current_question"`
	CurrentDifficulty string  `json:"current_difficulty,omitempty"`
	AwaitingResponse  bool    `json:"awaiting_response"`
	LastActiveAt      string  `json:"last_active_at,omitempty"`
}

// StoredSession is a session record read back from the store, with the
// string-encoded fields still packed.
type StoredSession struct {
	RecordID string
	Payload  SessionPayload
}

// EncodeField JSON-encodes a structured value for a string-typed store
// column. Nil values encode as the empty string, not "null".
func EncodeField(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode store field: %w", err)
	}
	return string(b), nil
}
