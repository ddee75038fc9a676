package localstore

import "sync"

// Memory is an in-memory Store. It backs session-scoped state (the applied
// coupon session) and tests; contents are lost when the process exits.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte

	// FailWrites makes Set/Delete return ErrUnavailable, for exercising
	// storage-failure paths in tests.
	FailWrites bool
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate stored state.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *Memory) Set(key string, value []byte) error {
	if m.FailWrites {
		return ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	return nil
}

func (m *Memory) Delete(key string) error {
	if m.FailWrites {
		return ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
