package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Manager holds the named environments of a collection and the active one.
// It is the read-only environment scripts see as pm.environment.
type Manager struct {
	mu      sync.RWMutex
	envs    map[string]map[string]string
	active  string
	overlay map[string]string
}

// NewManager copies envs. No environment is active until Use is called.
func NewManager(envs map[string]map[string]string) *Manager {
	m := &Manager{
		envs:    make(map[string]map[string]string, len(envs)),
		overlay: make(map[string]string),
	}
	for name, vars := range envs {
		m.envs[name] = copyVars(vars)
	}
	return m
}

// Use selects the active environment. An empty name deselects.
func (m *Manager) Use(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != "" {
		if _, ok := m.envs[name]; !ok {
			return fmt.Errorf("unknown environment %q (available: %s)", name, strings.Join(m.namesLocked(), ", "))
		}
	}
	m.active = name
	return nil
}

// Overlay adds variables that take precedence over every environment, such
// as values read from a .env file.
func (m *Manager) Overlay(vars map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range vars {
		m.overlay[k] = v
	}
}

// LoadDotEnv overlays the variables of a .env file.
func (m *Manager) LoadDotEnv(path string) error {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return err
	}
	m.Overlay(vars)
	return nil
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesLocked()
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.envs))
	for name := range m.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.envs[name]
	return ok
}

func (m *Manager) ActiveName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// VariableValue looks key up in the overlay, then the active environment.
func (m *Manager) VariableValue(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.overlay[key]; ok {
		return v, true
	}
	v, ok := m.envs[m.active][key]
	return v, ok
}

// Variables returns the effective variables of the active environment.
func (m *Manager) Variables() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := copyVars(m.envs[m.active])
	for k, v := range m.overlay {
		out[k] = v
	}
	return out
}

// ResolveVariables replaces {{name}} references with environment values and
// leaves anything else untouched.
func (m *Manager) ResolveVariables(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if v, ok := m.VariableValue(strings.TrimSpace(match[2 : len(match)-2])); ok {
			return v
		}
		return match
	})
}

// MergeEnvironments combines environment sets; later sources win per
// variable.
func MergeEnvironments(sources ...map[string]map[string]string) map[string]map[string]string {
	result := make(map[string]map[string]string)
	for _, src := range sources {
		for name, vars := range src {
			if result[name] == nil {
				result[name] = make(map[string]string, len(vars))
			}
			for k, v := range vars {
				result[name][k] = v
			}
		}
	}
	return result
}

// LoadSystemEnv returns the process variables starting with prefix, with
// the prefix removed.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}

func copyVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
