package intake

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long an untouched conversation is kept.
const DefaultTTL = 30 * time.Minute

// StateStore keeps one State per thread. Expired states read as absent.
type StateStore interface {
	Get(ctx context.Context, threadID string) (State, bool, error)
	Put(ctx context.Context, st State) error
	Delete(ctx context.Context, threadID string) error
}

// MemoryStates is a process-local StateStore. Expiry is checked on read, and
// expired entries are swept during writes at most once per TTL so abandoned
// threads do not accumulate.
type MemoryStates struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	states    map[string]State
	lastSweep time.Time
}

func NewMemoryStates(ttl time.Duration, now func() time.Time) *MemoryStates {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStates{ttl: ttl, now: now, states: make(map[string]State)}
}

func (m *MemoryStates) Get(_ context.Context, threadID string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[threadID]
	if !ok {
		return State{}, false, nil
	}
	if m.expired(st) {
		delete(m.states, threadID)
		return State{}, false, nil
	}
	return st, true, nil
}

func (m *MemoryStates) Put(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= m.ttl {
		for id, existing := range m.states {
			if m.expired(existing) {
				delete(m.states, id)
			}
		}
		m.lastSweep = now
	}
	m.states[st.ThreadID] = st
	return nil
}

func (m *MemoryStates) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, threadID)
	return nil
}

// Len reports the number of stored states, expired or not.
func (m *MemoryStates) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *MemoryStates) expired(st State) bool {
	return m.now().Sub(st.LastUpdated) > m.ttl
}
