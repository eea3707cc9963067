package config

import (
	"sync"

	"github.com/metaco/metaco/internal/models"
)

// MemStore is an in-memory Store for tests that never touches disk.
type MemStore struct {
	mu     sync.Mutex
	state  *models.State
	writes int
	err    error
}

// NewMemStore returns an empty store; Read fails with ErrNotFound until the first Write.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Read returns the stored record.
func (m *MemStore) Read() (models.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.State{}, m.err
	}
	if m.state == nil {
		return models.State{}, models.ErrNotFound
	}
	return *m.state, nil
}

// Write stores a copy of state.
func (m *MemStore) Write(state models.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.state = &state
	m.writes++
	return nil
}

// FailWith makes every subsequent Read and Write return err. Pass nil to clear.
func (m *MemStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Writes returns how many successful writes have happened.
func (m *MemStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

var _ Store = (*MemStore)(nil)
