package catalog

import (
	"context"
	"fmt"
)

// MockClient serves canned catalog data for testing.
type MockClient struct {
	Lessons    map[string]*LessonTemplate
	BlockLists map[string][]Block
	Err        error
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		Lessons:    make(map[string]*LessonTemplate),
		BlockLists: make(map[string][]Block),
	}
}

func (m *MockClient) LessonTemplate(_ context.Context, lessonID string) (*LessonTemplate, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Lessons[lessonID]
	if !ok {
		return nil, fmt.Errorf("lesson %q not found", lessonID)
	}
	return t, nil
}

func (m *MockClient) Blocks(_ context.Context, lessonID string) ([]Block, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.BlockLists[lessonID], nil
}
