package store

import (
	"context"
	"sync"
)

// Memory is an in-process Substrate. Each call is atomic on its own but,
// like the PostgreSQL store, nothing spans calls.
type Memory struct {
	mu     sync.Mutex
	ranges map[string][][]string
	labels map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		ranges: make(map[string][][]string),
		labels: make(map[string][]string),
	}
}

func (m *Memory) Get(_ context.Context, rng string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.ranges[rng]), nil
}

func (m *Memory) Append(_ context.Context, rng string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	first := len(m.ranges[rng]) + 1
	m.ranges[rng] = append(m.ranges[rng], copyRows(rows)...)
	return first, nil
}

func (m *Memory) Update(_ context.Context, rng string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.ranges[rng]
	for i, cells := range copyRows(rows) {
		if i < len(current) {
			current[i] = cells
		} else {
			current = append(current, cells)
		}
	}
	m.ranges[rng] = current
	return nil
}

func (m *Memory) Clear(_ context.Context, rng string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ranges, rng)
	return nil
}

func (m *Memory) EnsureRange(_ context.Context, name string, columns []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.labels[name]; ok {
		return false, nil
	}
	m.labels[name] = append([]string(nil), columns...)
	return true, nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
