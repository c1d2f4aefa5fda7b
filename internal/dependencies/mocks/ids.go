package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/puzzlegame/internal/dependencies/ids"
)

// MockIDs is a mock implementation of ids.Generator for testing.
// Queued values are returned first; afterwards ids are sequential.
type MockIDs struct {
	mu      sync.Mutex
	queued  []string
	counter int
}

// Ensure MockIDs implements Generator
var _ ids.Generator = (*MockIDs)(nil)

// NewMockIDs creates a new MockIDs
func NewMockIDs() *MockIDs {
	return &MockIDs{}
}

// NewID returns the next queued id, or "id-N" once the queue is empty
func (m *MockIDs) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queued) > 0 {
		id := m.queued[0]
		m.queued = m.queued[1:]
		return id
	}
	m.counter++
	return fmt.Sprintf("id-%d", m.counter)
}

// Token returns a deterministic token built from the next id
func (m *MockIDs) Token(prefix string) string {
	return prefix + m.NewID()
}

// Queue adds values to be returned by NewID
func (m *MockIDs) Queue(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, values...)
}
