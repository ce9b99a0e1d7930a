package sandbox

import (
	"sort"
	"strings"
	"sync"
)

// HeaderMap is the outgoing request header set. The same instance is handed
// to the guest as pm.request.headers, so guest writes land here directly.
type HeaderMap struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewHeaderMap returns a HeaderMap seeded with a copy of initial.
func NewHeaderMap(initial map[string]string) *HeaderMap {
	h := &HeaderMap{
		values: make(map[string]string, len(initial)),
	}
	for k, v := range initial {
		h.values[k] = v
	}
	return h
}

// Set stores value under name, replacing any entry whose name differs only
// in case.
func (h *HeaderMap) Set(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k := range h.values {
		if k != name && strings.EqualFold(k, name) {
			delete(h.values, k)
		}
	}
	h.values[name] = value
}

// Get looks up name exactly first, then case-insensitively.
func (h *HeaderMap) Get(name string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if v, ok := h.values[name]; ok {
		return v, true
	}
	for k, v := range h.values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Has reports whether a header matching name case-insensitively exists.
func (h *HeaderMap) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Delete removes every entry matching name case-insensitively and reports
// whether anything was removed.
func (h *HeaderMap) Delete(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := false
	for k := range h.values {
		if strings.EqualFold(k, name) {
			delete(h.values, k)
			removed = true
		}
	}
	return removed
}

// Keys returns the header names in sorted order.
func (h *HeaderMap) Keys() []string {
	h.mu.RLock()
	keys := make([]string, 0, len(h.values))
	for k := range h.values {
		keys = append(keys, k)
	}
	h.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// ToMap returns a copy of the current headers.
func (h *HeaderMap) ToMap() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}
	return out
}

// Len returns the number of headers.
func (h *HeaderMap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.values)
}
