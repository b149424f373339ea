package catalog

import "context"

// Block is one unit of lesson content: a concept plus its practice
// question pool.
type Block struct {
	BlockID   string `json:"block_id"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
}

// LessonTemplate is the authored lesson structure.
type LessonTemplate struct {
	LessonID string  `json:"lesson_id"`
	Title    string  `json:"title"`
	Cards    []Card  `json:"cards"`
	Blocks   []Block `json:"blocks"`
}

// Card is a single content card within a lesson.
type Card struct {
	CardID string `json:"card_id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
}

// Client is the content catalog boundary.
type Client interface {
	// LessonTemplate fetches the authored lesson with the given id.
	LessonTemplate(ctx context.Context, lessonID string) (*LessonTemplate, error)

	// Blocks returns the ordered block list for a lesson, with
	// availability flags.
	Blocks(ctx context.Context, lessonID string) ([]Block, error)
}
