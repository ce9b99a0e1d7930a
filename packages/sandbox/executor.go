package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/builtin"
	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

// DefaultTimeout bounds a single run, sendRequest callbacks included.
const DefaultTimeout = 5 * time.Second

type State int

const (
	StateIdle State = iota
	StateBindingsBuilt
	StateEvaluating
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBindingsBuilt:
		return "bindings-built"
	case StateEvaluating:
		return "evaluating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunReport describes a finished run. Assertions and Console are populated
// on failure too, up to the point the script stopped.
type RunReport struct {
	ID         uuid.UUID
	Phase      Phase
	State      State
	Engine     string
	Assertions []AssertionResult
	Console    []ConsoleEntry
	Started    time.Time
	Duration   time.Duration
	Err        error
}

// Passed reports a completed run without failed assertions.
func (r *RunReport) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, a := range r.Assertions {
		if !a.Passed {
			return false
		}
	}
	return true
}

// Controller executes the scripts attached to one request. The variable
// store and request headers outlive individual runs; everything else is
// rebuilt per run. Runs on the same controller are serialized.
type Controller struct {
	log        *zap.Logger
	env        EnvironmentSource
	sender     Sender
	timeout    time.Duration
	provider   *Provider
	store      *VariableStore
	headers    *HeaderMap
	consoleLog ConsoleLogger
	onComplete func(*RunReport)
	funcs      *builtin.Registry
	builder    *Builder

	runMu sync.Mutex

	mu    sync.Mutex
	state State
	last  *RunReport
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func WithEnvironment(env EnvironmentSource) Option {
	return func(c *Controller) {
		c.env = env
	}
}

// WithHTTPClient attaches the collaborator used by pm.sendRequest.
func WithHTTPClient(s Sender) Option {
	return func(c *Controller) {
		c.sender = s
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithProvider(p *Provider) Option {
	return func(c *Controller) {
		c.provider = p
	}
}

// WithVariableStore shares store with other controllers.
func WithVariableStore(store *VariableStore) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// WithHeaders binds pm.request.headers to headers.
func WithHeaders(headers *HeaderMap) Option {
	return func(c *Controller) {
		if headers != nil {
			c.headers = headers
		}
	}
}

func WithConsoleLogger(l ConsoleLogger) Option {
	return func(c *Controller) {
		c.consoleLog = l
	}
}

// WithOnComplete registers a callback invoked after every run.
func WithOnComplete(fn func(*RunReport)) Option {
	return func(c *Controller) {
		c.onComplete = fn
	}
}

func WithBuiltins(r *builtin.Registry) Option {
	return func(c *Controller) {
		if r != nil {
			c.funcs = r
		}
	}
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		log:     zap.NewNop(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.provider == nil {
		c.provider = NewProvider(WithProviderLogger(c.log))
	}
	if c.store == nil {
		c.store = NewVariableStore()
	}
	if c.headers == nil {
		c.headers = NewHeaderMap(nil)
	}
	if c.consoleLog == nil {
		c.consoleLog = NewZapConsoleLogger(c.log.Named("console"))
	}
	if c.funcs == nil {
		c.funcs = builtin.NewRegistry()
	}
	c.builder = NewBuilder(c.store, c.headers, c.env, c.sender, c.funcs, c.log)
	return c
}

func (c *Controller) Variables() *VariableStore { return c.store }

func (c *Controller) Headers() *HeaderMap { return c.headers }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastReport returns the report of the most recent finished run, or nil
// while a run is in flight.
func (c *Controller) LastReport() *RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Close waits for an in-flight run and clears the variable store.
func (c *Controller) Close() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.store.Clear()
	c.mu.Lock()
	c.last = nil
	c.state = StateIdle
	c.mu.Unlock()
}

// ExecutePreRequest runs script with pm.request and pm.sendRequest bound.
func (c *Controller) ExecutePreRequest(ctx context.Context, script string) *Future[struct{}] {
	f := newFuture[struct{}]()
	engine, err := c.provider.Engine()
	if err != nil {
		f.resolve(struct{}{}, c.unavailable(PhasePreRequest, err))
		return f
	}
	go func() {
		report := c.run(ctx, engine, PhasePreRequest, script, nil)
		f.resolve(struct{}{}, report)
	}()
	return f
}

// ExecuteResponseTest runs script with pm.response and pm.test bound to
// resp and resolves to the recorded assertions.
func (c *Controller) ExecuteResponseTest(ctx context.Context, script string, resp *http.Response) *Future[[]AssertionResult] {
	f := newFuture[[]AssertionResult]()
	engine, err := c.provider.Engine()
	if err != nil {
		f.resolve(nil, c.unavailable(PhaseResponseTest, err))
		return f
	}
	go func() {
		report := c.run(ctx, engine, PhaseResponseTest, script, resp)
		f.resolve(report.Assertions, report)
	}()
	return f
}

func (c *Controller) unavailable(phase Phase, err error) *RunReport {
	report := &RunReport{
		ID:      uuid.New(),
		Phase:   phase,
		State:   StateFailed,
		Started: time.Now(),
		Err:     err,
	}
	c.complete(report)
	return report
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) run(ctx context.Context, engine Engine, phase Phase, script string, resp *http.Response) *RunReport {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()

	report := &RunReport{
		ID:      uuid.New(),
		Phase:   phase,
		Engine:  engine.Name(),
		Started: time.Now(),
	}
	log := c.log.With(zap.String("run", report.ID.String()), zap.Stringer("phase", phase))

	if strings.TrimSpace(script) == "" {
		report.State = StateCompleted
		c.complete(report)
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bindings := c.builder.Build(ctx, phase, resp)
	c.setState(StateBindingsBuilt)

	c.setState(StateEvaluating)
	log.Debug("evaluating script", zap.String("engine", engine.Name()))
	err := c.evaluate(ctx, engine, script, bindings)
	bindings.close()

	report.Assertions = bindings.Assertions.Results()
	report.Console = bindings.Console.Entries()
	bindings.Console.Flush(c.consoleLog)

	if err != nil {
		report.State = StateFailed
		report.Err = newScriptError(phase, err)
		log.Debug("script failed", zap.Error(err))
	} else {
		report.State = StateCompleted
	}
	c.complete(report)
	return report
}

func (c *Controller) evaluate(ctx context.Context, engine Engine, script string, b *Bindings) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script engine panic: %v", r)
		}
	}()
	return engine.Evaluate(ctx, script, b)
}

func (c *Controller) complete(report *RunReport) {
	report.Duration = time.Since(report.Started)
	c.mu.Lock()
	c.state = report.State
	c.last = report
	c.mu.Unlock()

	if c.onComplete != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("script completion callback panicked",
						zap.String("run", report.ID.String()),
						zap.Any("panic", r))
				}
			}()
			c.onComplete(report)
		}()
	}

	c.setState(StateIdle)
}
