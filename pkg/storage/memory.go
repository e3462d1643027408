package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/orneryd/calotruth/pkg/truth"
)

// MemoryStore is a thread-safe in-memory Store.
//
// Outputs are kept in encoded form, so callers get independent copies and
// the store behaves like BadgerStore with respect to mutation.
type MemoryStore struct {
	mu        sync.RWMutex
	outputs   map[uint64][]byte
	summaries map[uint64]Summary
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		outputs:   make(map[uint64][]byte),
		summaries: make(map[uint64]Summary),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(out *truth.Output) error {
	if err := validateOutput(out); err != nil {
		return err
	}
	data, err := encodeOutput(out)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	m.outputs[out.EventID] = data
	m.summaries[out.EventID] = Summarize(out, time.Now().UTC())
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(eventID uint64) (*truth.Output, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	data, ok := m.outputs[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeOutput(data)
}

// Summary implements Store.
func (m *MemoryStore) Summary(eventID uint64) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Summary{}, ErrStorageClosed
	}
	s, ok := m.summaries[eventID]
	if !ok {
		return Summary{}, ErrNotFound
	}
	return s, nil
}

// List implements Store.
func (m *MemoryStore) List() ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	list := make([]Summary, 0, len(m.summaries))
	for _, s := range m.summaries {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EventID < list[j].EventID })
	return list, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(eventID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	if _, ok := m.outputs[eventID]; !ok {
		return ErrNotFound
	}
	delete(m.outputs, eventID)
	delete(m.summaries, eventID)
	return nil
}

// Count implements Store.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return len(m.outputs), nil
}

// Close implements Store. Stored outputs are dropped.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.outputs = nil
	m.summaries = nil
	return nil
}
