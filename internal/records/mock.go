package records

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory Client for testing. It records every write
// and serves stored sessions from a map.
type MockClient struct {
	mu sync.Mutex

	CreateErr error
	PatchErr  error

	nextID int

	Creates []SessionPayload
	Patches []PatchCall

	// Stored maps "studentID/lessonID" to a canned stored session.
	Stored map[string]*StoredSession
}

// PatchCall records a single PatchSession invocation.
type PatchCall struct {
	RecordID string
	Patch    SessionPatch
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{Stored: make(map[string]*StoredSession)}
}

func (m *MockClient) CreateSession(_ context.Context, payload SessionPayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("create session: missing session_id")
	}
	m.nextID++
	m.Creates = append(m.Creates, payload)
	return fmt.Sprintf("rec-%d", m.nextID), nil
}

func (m *MockClient) PatchSession(_ context.Context, recordID string, patch SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PatchErr != nil {
		return m.PatchErr
	}
	m.Patches = append(m.Patches, PatchCall{RecordID: recordID, Patch: patch})
	return nil
}

func (m *MockClient) SessionForStudent(_ context.Context, studentID, lessonID string) (*StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stored[studentID+"/"+lessonID], nil
}

// CreateCount returns the number of successful CreateSession calls.
func (m *MockClient) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Creates)
}

// PatchCount returns the number of successful PatchSession calls.
func (m *MockClient) PatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Patches)
}
