package session

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle status of a practice session.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Difficulty is the question difficulty tier within a block.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ValidDifficulty reports whether d is a known tier.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Block is a content block as the agent reports it inside a session.
type Block struct {
	BlockID string `json:"block_id"`
	Title   string `json:"title"`
}

// BlockProgress is the per-block progress the agent maintains.
type BlockProgress struct {
	BlockID      string  `json:"block_id"`
	MasteryScore float64 `json:"mastery_score"`
	IsComplete   bool    `json:"is_complete"`
	Attempted    int     `json:"questions_attempted,omitempty"`
}

// PracticeSession is the agent-owned session state, mirrored into the
// external store by the persistence controller. The client never deletes
// one; completion only flips Status.
type PracticeSession struct {
	SessionID         string          `json:"session_id"`
	StudentID         string          `json:"student_id"`
	LessonID          string          `json:"lesson_id,omitempty"`
	Status            Status          `json:"status"`
	CurrentBlockIndex int             `json:"current_block_index"`
	Blocks            []Block         `json:"blocks"`
	BlocksProgress    []BlockProgress `json:"blocks_progress"`
	TotalBlocks       int             `json:"total_blocks"`
	OverallMastery    float64         `json:"overall_mastery"`
	Attempted         int             `json:"total_questions_attempted"`
	Correct           int             `json:"total_questions_correct"`
	CurrentQuestion   json.RawMessage `json:"current_question,omitempty"`
	CurrentDifficulty Difficulty      `json:"current_difficulty,omitempty"`
	AwaitingResponse  bool            `json:"awaiting_response"`
	StartedAt         string          `json:"started_at,omitempty"`
	LastActiveAt      string          `json:"last_active_at,omitempty"`
}

// CheckIndex verifies the block index invariant: the index is a valid
// position into Blocks, or equals TotalBlocks only when the session is
// complete.
func (s *PracticeSession) CheckIndex() error {
	if s.CurrentBlockIndex < 0 {
		return fmt.Errorf("current_block_index %d is negative", s.CurrentBlockIndex)
	}
	if s.CurrentBlockIndex < s.TotalBlocks {
		return nil
	}
	if s.CurrentBlockIndex == s.TotalBlocks && s.Status == StatusComplete {
		return nil
	}
	return fmt.Errorf("current_block_index %d out of range for %d blocks (status %s)",
		s.CurrentBlockIndex, s.TotalBlocks, s.Status)
}

// ProgressFor returns the progress entry for a block id, or nil.
func (s *PracticeSession) ProgressFor(blockID string) *BlockProgress {
	for i := range s.BlocksProgress {
		if s.BlocksProgress[i].BlockID == blockID {
			return &s.BlocksProgress[i]
		}
	}
	return nil
}

// MasteryKind tags how a mastery reading was reported by the backend.
type MasteryKind int

const (
	// MasteryAbsolute is a 0-1 overall value.
	MasteryAbsolute MasteryKind = iota
	// MasteryDelta is a signed adjustment to the previous value.
	MasteryDelta
)

// MasteryReading is a tagged mastery report. One backend path reports
// the absolute overall value, another reports only the change; both are
// resolved to a canonical absolute value once, at the snapshot boundary.
type MasteryReading struct {
	Kind  MasteryKind
	Value float64
}

// Resolve returns the canonical absolute mastery given the previous
// value, clamped to [0, 1].
func (m MasteryReading) Resolve(prev float64) float64 {
	v := m.Value
	if m.Kind == MasteryDelta {
		v = prev + m.Value
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
