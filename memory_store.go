package goBankID

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process AuthResponseStore, UserDirectory and
// IdentityBinder. It is meant for tests, examples and single-node demos.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	responses map[string]PersistedAuthResponse
	byNumber  map[string]string
	byUser    map[string]string
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		responses: make(map[string]PersistedAuthResponse),
		byNumber:  make(map[string]string),
		byUser:    make(map[string]string),
	}
}

// SaveAuthResponse implements AuthResponseStore. Saving an existing order
// reference replaces the record.
func (m *MemoryStore) SaveAuthResponse(_ context.Context, record *PersistedAuthResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := *record
	stored.ID = m.nextID
	stored.ResponseBody = cloneBytes(record.ResponseBody)
	m.responses[record.OrderRef] = stored
	record.ID = stored.ID
	return nil
}

// GetAuthResponse implements AuthResponseStore.
func (m *MemoryStore) GetAuthResponse(_ context.Context, orderRef string) (*PersistedAuthResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.responses[orderRef]
	if !ok {
		return nil, ErrAuthResponseNotFound
	}
	record.ResponseBody = cloneBytes(record.ResponseBody)
	return &record, nil
}

// DeleteAuthResponse implements AuthResponseStore.
func (m *MemoryStore) DeleteAuthResponse(_ context.Context, orderRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.responses, orderRef)
	return nil
}

// DeleteAuthResponsesBefore removes records created before cutoff and
// returns how many were removed.
func (m *MemoryStore) DeleteAuthResponsesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for ref, record := range m.responses {
		if record.TimeCreated.Before(cutoff) {
			delete(m.responses, ref)
			n++
		}
	}
	return n, nil
}

// LookupByPersonalNumber implements UserDirectory.
func (m *MemoryStore) LookupByPersonalNumber(_ context.Context, personalNumber string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.byNumber[personalNumber]
	if !ok {
		return "", ErrUserNotFound
	}
	return userID, nil
}

// BindPersonalNumber implements IdentityBinder.
func (m *MemoryStore) BindPersonalNumber(_ context.Context, userID, personalNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byNumber[personalNumber]; taken {
		return false, nil
	}
	if previous, ok := m.byUser[userID]; ok {
		delete(m.byNumber, previous)
	}
	m.byNumber[personalNumber] = userID
	m.byUser[userID] = personalNumber
	return true, nil
}

// PersonalNumberForUser implements IdentityBinder.
func (m *MemoryStore) PersonalNumberForUser(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	personalNumber, ok := m.byUser[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return personalNumber, nil
}
