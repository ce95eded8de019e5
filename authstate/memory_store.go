package authstate

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage. Suitable for tests
// and single-instance deployments; cleanup of aged records is driven by the
// cleanup worker, not by the store itself.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewMemoryStore creates a new in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*State),
	}
}

// Create stores a new state record.
func (m *MemoryStore) Create(ctx context.Context, state *State) error {
	if state == nil || state.State == "" {
		return ErrInvalidState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.State] = copyState(state)
	return nil
}

// Consume removes and returns the record under a single lock acquisition,
// so racing consumers cannot both succeed.
func (m *MemoryStore) Consume(ctx context.Context, token string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[token]
	if !exists {
		return nil, ErrStateNotFound
	}
	delete(m.states, token)

	return copyState(state), nil
}

// DeleteOlderThan removes state records created before the cutoff.
func (m *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for token, state := range m.states {
		if state.CreatedAt.Before(cutoff) {
			delete(m.states, token)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live state records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func copyState(state *State) *State {
	stateCopy := *state
	if state.Data != nil {
		stateCopy.Data = make(map[string]any, len(state.Data))
		maps.Copy(stateCopy.Data, state.Data)
	}
	return &stateCopy
}
