package env

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitscript/packages/assertions"
	"github.com/abdul-hamid-achik/hitscript/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// LookupFunc resolves a variable name from one source.
type LookupFunc func(name string) (any, bool)

// Resolver expands {{...}} references in request templates:
//
//	{{name}}      first hit in the lookup sources, in order
//	{{$NAME}}     process environment variable
//	{{fn(args)}}  builtin helper, also written {{$fn(args)}}
type Resolver struct {
	mu       sync.RWMutex
	sources  []LookupFunc
	funcs    *builtin.Registry
	warnFunc WarnFunc
}

func NewResolver(funcs *builtin.Registry, sources ...LookupFunc) *Resolver {
	if funcs == nil {
		funcs = builtin.NewRegistry()
	}
	return &Resolver{
		sources: sources,
		funcs:   funcs,
	}
}

// AddSource appends a lower-priority lookup source.
func (r *Resolver) AddSource(src LookupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

// MapSource adapts a plain map to a LookupFunc.
func MapSource(vars map[string]string) LookupFunc {
	return func(name string) (any, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// ManagerSource exposes the manager's active environment as a LookupFunc.
func ManagerSource(m *Manager) LookupFunc {
	return func(name string) (any, bool) {
		return m.VariableValue(name)
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	sources := r.sources
	r.mu.RUnlock()
	for _, src := range sources {
		if v, ok := src(name); ok {
			return v, true
		}
	}
	return nil, false
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// expand resolves one expression. ok is false when it stays unresolved.
func (r *Resolver) expand(expr string) (string, bool) {
	if strings.Contains(expr, "(") {
		v, matched, err := r.funcs.Call(strings.TrimPrefix(expr, "$"))
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return "", false
		}
		if !matched {
			r.warn("unresolved function call: %s", expr)
			return "", false
		}
		return assertions.Stringify(v), true
	}

	if strings.HasPrefix(expr, "$") {
		if val, ok := os.LookupEnv(expr[1:]); ok {
			return val, true
		}
		r.warn("unresolved environment variable: %s", expr)
		return "", false
	}

	if v, ok := r.GetVariable(expr); ok {
		return assertions.Stringify(v), true
	}
	r.warn("unresolved variable: %s", expr)
	return "", false
}

// Resolve expands every reference in input. Unresolved references are left
// as written.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if v, ok := r.expand(strings.TrimSpace(match[2 : len(match)-2])); ok {
			return v
		}
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// GetUnresolvedVariables lists plain variable references in input that no
// source can resolve, in order of appearance. Function calls and process
// environment references are not reported.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || strings.Contains(expr, "(") {
			continue
		}
		if !r.HasVariable(expr) {
			missing = append(missing, expr)
		}
	}
	return missing
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}
