package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local Gateway, used in tests and when no database
// is configured.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]SavedAnalysis
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]SavedAnalysis)}
}

func (m *Memory) Create(_ context.Context, a SavedAnalysis) (SavedAnalysis, error) {
	a, err := prepare(a, now())
	if err != nil {
		return SavedAnalysis{}, err
	}
	m.mu.Lock()
	m.rows[a.ID] = a
	m.mu.Unlock()
	return a, nil
}

func (m *Memory) List(_ context.Context, ownerID string) ([]SavedAnalysis, error) {
	m.mu.RLock()
	out := make([]SavedAnalysis, 0)
	for _, a := range m.rows {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) Get(_ context.Context, ownerID, id string) (SavedAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.rows[id]
	if !ok || a.OwnerID != ownerID {
		return SavedAnalysis{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) UpdateAnalysis(_ context.Context, ownerID, id, analysis string) (SavedAnalysis, error) {
	if err := checkEdit(analysis); err != nil {
		return SavedAnalysis{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.OwnerID != ownerID {
		return SavedAnalysis{}, ErrNotFound
	}
	a.Analysis = analysis
	a.UpdatedAt = now()
	m.rows[id] = a
	return a, nil
}

func (m *Memory) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *Memory) Close() error { return nil }
