package statestore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-process DurableStore for tests and single-node
// development. States are stored serialized so reads return independent
// copies, matching the behavior of the real backends.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (m *MemoryStore) Upsert(_ context.Context, state *SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.SessionID] = payload

	return nil
}

func (m *MemoryStore) Fetch(_ context.Context, sessionID string) (*SessionState, error) {
	m.mu.RLock()
	payload, ok := m.states[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrStateNotFound
	}

	var state SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, sessionID)

	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for sessionID, payload := range m.states {
		var state SessionState
		if err := json.Unmarshal(payload, &state); err != nil {
			continue
		}

		if state.Expired(now) {
			delete(m.states, sessionID)

			removed++
		}
	}

	return removed, nil
}
