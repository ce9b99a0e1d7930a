package sandbox

import (
	"context"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/builtin"
	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

// Phase is the point in the request lifecycle a script runs at.
type Phase int

const (
	PhasePreRequest Phase = iota
	PhaseResponseTest
)

func (p Phase) String() string {
	switch p {
	case PhasePreRequest:
		return "pre-request"
	case PhaseResponseTest:
		return "response-test"
	default:
		return "unknown"
	}
}

// Bindings is the host API handed to an engine for one run. Fields that do
// not belong to the phase are nil and must not be exposed to the guest.
type Bindings struct {
	Phase       Phase
	Variables   *VariablesNamespace
	Environment *EnvironmentNamespace
	Console     *ConsoleSink
	Assertions  *AssertionCollector

	// pre-request
	Request *RequestNamespace
	Bridge  *RequestBridge
	Utils   *UtilsNamespace

	// response-test
	Response *ResponseNamespace
	Test     *TestNamespace

	loop *runLoop
}

// RunLoop calls fn with the run's goja runtime, then serves sendRequest
// continuations until none remain or ctx is done. Engines evaluate the
// script body inside fn.
func (b *Bindings) RunLoop(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	return b.loop.run(ctx, fn)
}

func (b *Bindings) close() {
	b.loop.close()
}

// Builder assembles per-run Bindings around a controller's shared state.
type Builder struct {
	store   *VariableStore
	headers *HeaderMap
	env     EnvironmentSource
	sender  Sender
	funcs   *builtin.Registry
	log     *zap.Logger

	mu       sync.Mutex
	reported map[string]bool
}

func NewBuilder(store *VariableStore, headers *HeaderMap, env EnvironmentSource, sender Sender, funcs *builtin.Registry, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		store:    store,
		headers:  headers,
		env:      env,
		sender:   sender,
		funcs:    funcs,
		log:      log,
		reported: make(map[string]bool),
	}
}

// Build returns fresh bindings for phase. resp is only used by the
// response-test phase and may be nil.
func (b *Builder) Build(ctx context.Context, phase Phase, resp *http.Response) *Bindings {
	if b.env == nil {
		b.missing("environment")
	}

	bindings := &Bindings{
		Phase:       phase,
		Variables:   &VariablesNamespace{store: b.store},
		Environment: &EnvironmentNamespace{source: b.env},
		Console:     NewConsoleSink(),
		Assertions:  NewAssertionCollector(),
		loop:        newRunLoop(),
	}

	switch phase {
	case PhasePreRequest:
		if b.sender == nil {
			b.missing("http client")
		}
		bindings.Request = &RequestNamespace{Headers: b.headers}
		bindings.Bridge = newRequestBridge(ctx, b.sender, bindings.loop, b.log)
		bindings.Utils = &UtilsNamespace{funcs: b.funcs}
	case PhaseResponseTest:
		if resp == nil {
			b.missing("response")
		}
		bindings.Response = newResponseNamespace(resp)
		bindings.Test = newTestNamespace(bindings.Assertions, resp)
	}

	return bindings
}

func (b *Builder) missing(what string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reported[what] {
		return
	}
	b.reported[what] = true
	b.log.Debug("script collaborator not attached", zap.String("collaborator", what))
}
