package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Memory is a thread-safe in-memory backend. It is the default for tests and
// acceptable for ephemeral deployments.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]map[string]json.RawMessage{}}
}

func (m *Memory) Read(_ context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *Memory) Write(_ context.Context, collection, id string, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		c = map[string]json.RawMessage{}
		m.collections[collection] = c
	}
	stored := make(json.RawMessage, len(doc))
	copy(stored, doc)
	c[id] = stored
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) List(_ context.Context, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.collections[collection]
	out := make([]Record, 0, len(c))
	for id, doc := range c {
		cp := make(json.RawMessage, len(doc))
		copy(cp, doc)
		out = append(out, Record{ID: id, Doc: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
