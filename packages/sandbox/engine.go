package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Engine evaluates guest scripts. Implementations must be safe to reuse
// across runs; each Evaluate starts from a clean guest runtime.
type Engine interface {
	Name() string
	// Evaluate runs script against b and drains its pending callbacks. It
	// returns ErrScriptTimeout when ctx expires during the run.
	Evaluate(ctx context.Context, script string, b *Bindings) error
	// Check compiles script without running it.
	Check(script string) error
}

type EngineFactory func() (Engine, error)

// DefaultEngineNames is the lookup order used when none is configured.
var DefaultEngineNames = []string{"goja", "javascript", "js", "ecmascript"}

var (
	factoriesMu sync.RWMutex
	factories   = map[string]EngineFactory{}
)

func init() {
	for _, name := range DefaultEngineNames {
		RegisterEngine(name, newGojaEngine)
	}
}

// RegisterEngine makes f available to every Provider under name.
func RegisterEngine(name string, f EngineFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[strings.ToLower(name)] = f
}

// RegisteredEngines lists the globally registered engine names, sorted.
func RegisteredEngines() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider resolves the first working engine from an ordered list of names.
// The outcome, success or failure, is computed once and cached.
type Provider struct {
	names     []string
	factories map[string]EngineFactory
	log       *zap.Logger

	once   sync.Once
	engine Engine
	err    error
}

type ProviderOption func(*Provider)

// WithEngineNames sets the fallback order. Empty names are ignored.
func WithEngineNames(names ...string) ProviderOption {
	return func(p *Provider) {
		var out []string
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, strings.ToLower(n))
			}
		}
		if len(out) > 0 {
			p.names = out
		}
	}
}

// WithFactory registers f for this provider only, shadowing any global
// registration of the same name.
func WithFactory(name string, f EngineFactory) ProviderOption {
	return func(p *Provider) {
		p.factories[strings.ToLower(name)] = f
	}
}

func WithProviderLogger(l *zap.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		names:     DefaultEngineNames,
		factories: make(map[string]EngineFactory),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the resolved engine or an error wrapping
// ErrEngineUnavailable.
func (p *Provider) Engine() (Engine, error) {
	p.once.Do(func() {
		p.engine, p.err = p.resolve()
		if p.err != nil {
			p.log.Error("no script engine available",
				zap.Strings("tried", p.names),
				zap.Error(p.err))
		}
	})
	return p.engine, p.err
}

func (p *Provider) resolve() (Engine, error) {
	var failures []string
	for _, name := range p.names {
		f := p.lookup(name)
		if f == nil {
			failures = append(failures, name+": not registered")
			continue
		}
		engine, err := f()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if engine == nil {
			failures = append(failures, name+": factory returned no engine")
			continue
		}
		p.log.Debug("script engine selected", zap.String("name", name), zap.String("engine", engine.Name()))
		return engine, nil
	}
	return nil, fmt.Errorf("%w (%s)", ErrEngineUnavailable, strings.Join(failures, "; "))
}

func (p *Provider) lookup(name string) EngineFactory {
	if f, ok := p.factories[name]; ok {
		return f
	}
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return factories[name]
}
