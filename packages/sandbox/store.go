package sandbox

import (
	"sort"
	"sync"
)

// VariableStore holds script-settable runtime variables. It is scoped to the
// controller that created it, or shared explicitly through WithVariableStore.
type VariableStore struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewVariableStore returns an empty store.
func NewVariableStore() *VariableStore {
	return &VariableStore{
		vars: make(map[string]any),
	}
}

// Get returns the stored value. ok is false when the key is absent, which is
// distinct from a stored nil.
func (s *VariableStore) Get(key string) (value any, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok = s.vars[key]
	return value, ok
}

// Set stores value under key, overwriting any previous value.
func (s *VariableStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[key] = value
}

// SetAll copies every entry of vars into the store.
func (s *VariableStore) SetAll(vars map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range vars {
		s.vars[k] = v
	}
}

// Has reports whether key is present, even when its value is nil.
func (s *VariableStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vars[key]
	return ok
}

// Unset removes key and reports whether a value was present.
func (s *VariableStore) Unset(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vars[key]; !ok {
		return false
	}
	delete(s.vars, key)
	return true
}

// ToObject returns a snapshot copy of the store.
func (s *VariableStore) ToObject() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *VariableStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored variables.
func (s *VariableStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

// Clear removes every variable.
func (s *VariableStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]any)
}
