package agent

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a deterministic Client for testing. Thread states are
// served in FIFO order and every call is recorded.
type MockClient struct {
	mu sync.Mutex

	states   []*ThreadState
	stateErr []error

	CreateErr error
	SendErr   error

	nextThreadID int

	CreatedThreads []string
	StateCalls     []string
	SendCalls      []SendCall
}

// SendCall records a single SendMessage invocation.
type SendCall struct {
	ThreadID string
	Messages []Message
	RunCtx   RunContext
}

// NewMockClient creates a MockClient with no queued states.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueState appends a canned ThreadState (or error) for the next
// ThreadState call.
func (m *MockClient) QueueState(st *ThreadState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, st)
	m.stateErr = append(m.stateErr, err)
}

func (m *MockClient) CreateThread(_ context.Context) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.nextThreadID++
	id := fmt.Sprintf("thread-%d", m.nextThreadID)
	m.CreatedThreads = append(m.CreatedThreads, id)
	return &Thread{ID: id}, nil
}

func (m *MockClient) ThreadState(_ context.Context, threadID string) (*ThreadState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StateCalls = append(m.StateCalls, threadID)

	if len(m.states) == 0 {
		return &ThreadState{}, nil
	}
	st, err := m.states[0], m.stateErr[0]
	m.states = m.states[1:]
	m.stateErr = m.stateErr[1:]
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (m *MockClient) SendMessage(_ context.Context, threadID string, msgs []Message, runCtx RunContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SendCalls = append(m.SendCalls, SendCall{ThreadID: threadID, Messages: msgs, RunCtx: runCtx})
	return m.SendErr
}

func (m *MockClient) Health(_ context.Context) (*Health, error) {
	return &Health{OK: true, Version: "v0.0.0-mock"}, nil
}

// SendCount returns the number of SendMessage calls made.
func (m *MockClient) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SendCalls)
}

// StateCallCount returns the number of ThreadState calls made.
func (m *MockClient) StateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.StateCalls)
}
