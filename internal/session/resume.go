package session

import (
	"encoding/json"

	"tutorloop/internal/catalog"
	"tutorloop/internal/records"
)

// ResumePosition is where a returning student continues: which block,
// at which difficulty. Always recomputed from its sources, never stored.
type ResumePosition struct {
	BlockID    string
	Difficulty Difficulty
}

// ResolveResumePosition computes the resume position from a previously
// stored session (nil for a brand-new one) and the current block
// catalog. Pure: no I/O, same inputs always yield the same output.
//
// Rules:
//   - No stored session, or no prior progress: first available block at
//     the easiest difficulty.
//   - Otherwise: the earliest available block not marked complete in the
//     stored progress (blocks with no progress entry count as
//     incomplete), at the stored difficulty tier.
//   - Every available block complete, or stored data unusable: fall back
//     to the first available block. The caller decides whether that
//     inconsistency is worth logging; this function stays silent.
func ResolveResumePosition(stored *PracticeSession, blocks []catalog.Block) ResumePosition {
	first := firstAvailable(blocks)

	if stored == nil || len(stored.BlocksProgress) == 0 {
		return ResumePosition{BlockID: first, Difficulty: DifficultyEasy}
	}

	difficulty := stored.CurrentDifficulty
	if !ValidDifficulty(difficulty) {
		difficulty = DifficultyEasy
	}

	for _, b := range blocks {
		if !b.Available {
			continue
		}
		if prog := stored.ProgressFor(b.BlockID); prog != nil && prog.IsComplete {
			continue
		}
		return ResumePosition{BlockID: b.BlockID, Difficulty: difficulty}
	}

	return ResumePosition{BlockID: first, Difficulty: difficulty}
}

// firstAvailable returns the id of the first available block, falling
// back to the first block of any kind, then "".
func firstAvailable(blocks []catalog.Block) string {
	for _, b := range blocks {
		if b.Available {
			return b.BlockID
		}
	}
	if len(blocks) > 0 {
		return blocks[0].BlockID
	}
	return ""
}

// SessionFromStored unpacks a stored record back into a PracticeSession.
// Damaged string-encoded fields degrade to empty slices rather than
// failing: a bad stored session resumes from defaults instead of
// blocking the learner.
func SessionFromStored(stored *records.StoredSession) *PracticeSession {
	if stored == nil {
		return nil
	}
	p := stored.Payload

	ps := &PracticeSession{
		SessionID:         p.SessionID,
		StudentID:         p.StudentID,
		LessonID:          p.LessonID,
		Status:            Status(p.Status),
		CurrentBlockIndex: p.CurrentBlockIndex,
		TotalBlocks:       p.TotalBlocks,
		OverallMastery:    p.OverallMastery,
		Attempted:         p.Attempted,
		Correct:           p.Correct,
		CurrentDifficulty: Difficulty(p.CurrentDifficulty),
		AwaitingResponse:  p.AwaitingResponse,
		StartedAt:         p.StartedAt,
		LastActiveAt:      p.LastActiveAt,
	}

	if p.Blocks != "" {
		_ = json.Unmarshal([]byte(p.Blocks), &ps.Blocks)
	}
	if p.BlocksProgress != "" {
		_ = json.Unmarshal([]byte(p.BlocksProgress), &ps.BlocksProgress)
	}
	if p.CurrentQuestion != "" {
		ps.CurrentQuestion = json.RawMessage(p.CurrentQuestion)
	}
	return ps
}
