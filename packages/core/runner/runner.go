package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/builtin"
	"github.com/abdul-hamid-achik/hitscript/packages/core/env"
	"github.com/abdul-hamid-achik/hitscript/packages/core/parser"
	"github.com/abdul-hamid-achik/hitscript/packages/http"
	"github.com/abdul-hamid-achik/hitscript/packages/sandbox"
)

const (
	// DefaultConcurrency is the default number of concurrent requests in parallel mode
	DefaultConcurrency = 5
	// DefaultRetryDelayMs is the default delay between retries in milliseconds
	DefaultRetryDelayMs = 1000
	// SystemEnvPrefix marks process variables exposed to every environment.
	SystemEnvPrefix = "HITSCRIPT_VAR_"
)

type Runner struct {
	client   *http.Client
	provider *sandbox.Provider
	funcs    *builtin.Registry
	config   *Config
	log      *zap.Logger
	stats    *ScriptStats
	record   Recorder
}

// Config controls a Runner. Retries and RetryDelay (milliseconds) are the
// defaults for requests that set neither.
type Config struct {
	Environment     string
	Environments    map[string]map[string]string
	EnvFile         string
	Verbose         bool
	Timeout         time.Duration
	ScriptTimeout   time.Duration
	FollowRedirect  bool
	MaxRedirects    int
	ValidateSSL     bool
	Proxy           string
	Headers         map[string]string
	SendRequestRate float64
	Engines         []string
	Retries         int
	RetryDelay      int
	Bail            bool
	NameFilter      string
	TagsFilter      []string
	Parallel        bool
	Concurrency     int
}

// Recorder is called for every request that was sent or attempted. In
// parallel mode it is called concurrently.
type Recorder func(c *parser.Collection, result *RequestResult)

type Option func(*Runner)

// WithClient replaces the client built from Config.
func WithClient(c *http.Client) Option {
	return func(r *Runner) {
		if c != nil {
			r.client = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithRecorder(fn Recorder) Option {
	return func(r *Runner) {
		r.record = fn
	}
}

func WithProvider(p *sandbox.Provider) Option {
	return func(r *Runner) {
		r.provider = p
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true, ValidateSSL: true}
	}

	r := &Runner{
		funcs:  builtin.NewRegistry(),
		config: cfg,
		log:    zap.NewNop(),
		stats:  NewScriptStats(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		clientOpts := []http.ClientOption{
			http.WithFollowRedirects(cfg.FollowRedirect),
			http.WithValidateSSL(cfg.ValidateSSL),
			http.WithLogger(r.log.Named("http")),
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxRedirects > 0 {
			clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
		}
		if cfg.Proxy != "" {
			clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
		}
		if len(cfg.Headers) > 0 {
			clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.Headers))
		}
		if cfg.SendRequestRate > 0 {
			clientOpts = append(clientOpts, http.WithRateLimit(cfg.SendRequestRate, 1))
		}
		r.client = http.NewClient(clientOpts...)
	}
	if r.provider == nil {
		r.provider = sandbox.NewProvider(
			sandbox.WithEngineNames(cfg.Engines...),
			sandbox.WithProviderLogger(r.log.Named("engine")),
		)
	}
	return r
}

// Stats returns the script latency statistics collected so far.
func (r *Runner) Stats() *ScriptStats {
	return r.stats
}

type RunResult struct {
	File        string
	Collection  string
	Environment string
	Results     []*RequestResult
	Duration    time.Duration
	Passed      int
	Failed      int
	Skipped     int
}

type RequestResult struct {
	Name       string
	Tags       []string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Attempts   int
	Request    *http.Request
	Response   *http.Response
	Assertions []sandbox.AssertionResult
	Console    []sandbox.ConsoleEntry
	ScriptTime time.Duration
	// ScriptErr is the first script failure, pre-request or test.
	ScriptErr error
	Error     error
}

// FailedAssertions counts the failed pm.test results.
func (r *RequestResult) FailedAssertions() int {
	n := 0
	for _, a := range r.Assertions {
		if !a.Passed {
			n++
		}
	}
	return n
}

// runState is shared by every request of one collection run.
type runState struct {
	collection *parser.Collection
	store      *sandbox.VariableStore
	env        *env.Manager
	resolver   *env.Resolver
	log        *zap.Logger
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	c, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunCollection(ctx, c)
}

// RunCollection executes c with a fresh variable store seeded from the
// collection variables.
func (r *Runner) RunCollection(ctx context.Context, c *parser.Collection) (*RunResult, error) {
	mgr := env.NewManager(env.MergeEnvironments(r.config.Environments, c.Environments))
	if err := mgr.Use(r.config.Environment); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	mgr.Overlay(env.LoadSystemEnv(SystemEnvPrefix))
	if r.config.EnvFile != "" {
		if err := mgr.LoadDotEnv(r.config.EnvFile); err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	store := sandbox.NewVariableStore()
	store.SetAll(c.Variables)

	log := r.log.With(zap.String("collection", c.Name))
	resolver := env.NewResolver(r.funcs, store.Get, env.ManagerSource(mgr))
	resolver.SetWarnFunc(log.Sugar().Debugf)

	st := &runState{
		collection: c,
		store:      store,
		env:        mgr,
		resolver:   resolver,
		log:        log,
	}
	result, err := r.runRequests(ctx, st, c)
	if result != nil {
		result.Collection = c.Name
		result.Environment = mgr.ActiveName()
	}
	return result, err
}

func (r *Runner) runRequests(ctx context.Context, st *runState, c *parser.Collection) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		File: c.Path,
	}

	hasOnly := false
	for _, req := range c.Requests {
		if req.Only {
			hasOnly = true
			break
		}
	}

	sortedRequests, err := topologicalSort(c.Requests)
	if err != nil {
		return nil, err
	}

	var filteredRequests []*parser.Request
	for _, req := range sortedRequests {
		if !r.shouldRun(req, hasOnly) {
			result.Results = append(result.Results, &RequestResult{
				Name:       req.Name,
				Tags:       req.Tags,
				Skipped:    true,
				SkipReason: "filtered out",
			})
			result.Skipped++
			continue
		}

		if req.Skip != "" {
			result.Results = append(result.Results, &RequestResult{
				Name:       req.Name,
				Tags:       req.Tags,
				Skipped:    true,
				SkipReason: req.Skip,
			})
			result.Skipped++
			continue
		}

		filteredRequests = append(filteredRequests, req)
	}

	hasDependencies := false
	for _, req := range filteredRequests {
		if len(req.Depends) > 0 {
			hasDependencies = true
			break
		}
	}

	if r.config.Parallel && !hasDependencies {
		for _, reqResult := range r.runParallel(ctx, st, filteredRequests) {
			result.Results = append(result.Results, reqResult)
			if reqResult.Passed {
				result.Passed++
			} else if !reqResult.Skipped {
				result.Failed++
			}
		}
	} else {
		executed := make(map[string]*RequestResult)

		for _, req := range filteredRequests {
			if ctx.Err() != nil {
				break
			}
			if dependencyFailed(req, executed) {
				result.Results = append(result.Results, &RequestResult{
					Name:       req.Name,
					Tags:       req.Tags,
					Skipped:    true,
					SkipReason: "dependency failed",
				})
				result.Skipped++
				continue
			}

			reqResult := r.runRequest(ctx, st, req)
			result.Results = append(result.Results, reqResult)
			executed[req.Name] = reqResult

			if reqResult.Passed {
				result.Passed++
			} else {
				result.Failed++
				if r.config.Bail {
					break
				}
			}
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func dependencyFailed(req *parser.Request, executed map[string]*RequestResult) bool {
	for _, dep := range req.Depends {
		if res, ok := executed[dep]; ok && !res.Passed {
			return true
		}
	}
	return false
}

func (r *Runner) runParallel(ctx context.Context, st *runState, requests []*parser.Request) []*RequestResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*RequestResult, len(requests))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, request *parser.Request) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = r.runRequest(ctx, st, request)
		}(i, req)
	}

	wg.Wait()
	return results
}

// topologicalSort orders requests so dependencies run first. Requests at
// the same depth keep their collection order.
func topologicalSort(requests []*parser.Request) ([]*parser.Request, error) {
	inDegree := make(map[string]int, len(requests))
	adjacency := make(map[string][]string)
	byName := make(map[string]*parser.Request, len(requests))

	for _, req := range requests {
		inDegree[req.Name] = 0
		byName[req.Name] = req
	}
	for _, req := range requests {
		for _, dep := range req.Depends {
			if _, ok := byName[dep]; ok {
				adjacency[dep] = append(adjacency[dep], req.Name)
				inDegree[req.Name]++
			}
		}
	}

	var queue []string
	for _, req := range requests {
		if inDegree[req.Name] == 0 {
			queue = append(queue, req.Name)
		}
	}

	sorted := make([]*parser.Request, 0, len(requests))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byName[current])

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) != len(requests) {
		return nil, fmt.Errorf("circular dependency detected in requests")
	}
	return sorted, nil
}

func (r *Runner) shouldRun(req *parser.Request, hasOnly bool) bool {
	if hasOnly && !req.Only {
		return false
	}

	if r.config.NameFilter != "" && !matchesPattern(req.Name, r.config.NameFilter) {
		return false
	}

	if len(r.config.TagsFilter) > 0 && !hasAnyTag(req.Tags, r.config.TagsFilter) {
		return false
	}

	return true
}

func (r *Runner) runRequest(ctx context.Context, st *runState, req *parser.Request) *RequestResult {
	result := r.executeRequest(ctx, st, req)
	if r.record != nil {
		r.record(st.collection, result)
	}
	return result
}

// executeRequest runs one request through its scripts:
// pre-request script, template resolution, send with retries, test script.
// A failed pre-request script stops the request before it is sent.
func (r *Runner) executeRequest(ctx context.Context, st *runState, req *parser.Request) *RequestResult {
	result := &RequestResult{
		Name: req.Name,
		Tags: req.Tags,
	}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	log := st.log.With(zap.String("request", req.Name))
	headers := sandbox.NewHeaderMap(req.Headers)
	ctrl := sandbox.NewController(
		sandbox.WithLogger(log),
		sandbox.WithEnvironment(st.env),
		sandbox.WithHTTPClient(r.client),
		sandbox.WithTimeout(r.config.ScriptTimeout),
		sandbox.WithProvider(r.provider),
		sandbox.WithVariableStore(st.store),
		sandbox.WithHeaders(headers),
		sandbox.WithBuiltins(r.funcs),
		sandbox.WithOnComplete(func(report *sandbox.RunReport) {
			r.stats.Record(report.Duration, report.Err != nil)
		}),
	)

	if strings.TrimSpace(req.PreRequest) != "" {
		f := ctrl.ExecutePreRequest(ctx, req.PreRequest)
		_, err := f.Wait(ctx)
		collect(result, f.Report())
		if err != nil {
			result.ScriptErr = err
			return result
		}
	}

	httpReq := http.NewRequest(req.Method, st.resolver.Resolve(req.URL))
	httpReq.SetHeaders(st.resolver.ResolveAll(headers.ToMap()))
	for k, v := range req.Query {
		httpReq.SetQueryParam(k, st.resolver.Resolve(v))
	}
	httpReq.SetBody(st.resolver.Resolve(req.Body))
	if req.Timeout > 0 {
		httpReq.SetTimeout(time.Duration(req.Timeout) * time.Millisecond)
	}
	result.Request = httpReq

	resp, attempts, err := r.send(ctx, req, httpReq)
	result.Attempts = attempts
	if err != nil {
		log.Debug("request failed", zap.Int("attempts", attempts), zap.Error(err))
		result.Error = err
		return result
	}
	result.Response = resp

	if strings.TrimSpace(req.Test) == "" {
		result.Passed = resp.IsSuccess()
		return result
	}

	f := ctrl.ExecuteResponseTest(ctx, req.Test, resp)
	_, err = f.Wait(ctx)
	collect(result, f.Report())
	if err != nil {
		result.ScriptErr = err
		return result
	}
	result.Passed = result.FailedAssertions() == 0
	return result
}

func collect(result *RequestResult, report *sandbox.RunReport) {
	if report == nil {
		return
	}
	result.Console = append(result.Console, report.Console...)
	result.ScriptTime += report.Duration
	if report.Phase == sandbox.PhaseResponseTest {
		result.Assertions = report.Assertions
	}
}

// send issues httpReq, retrying on transport errors and on the statuses
// listed in retryOn (any 5xx when the list is empty).
func (r *Runner) send(ctx context.Context, req *parser.Request, httpReq *http.Request) (*http.Response, int, error) {
	retries := req.Retry
	if retries == 0 {
		retries = r.config.Retries
	}
	delay := DefaultRetryDelayMs
	switch {
	case req.RetryDelay > 0:
		delay = req.RetryDelay
	case r.config.RetryDelay > 0:
		delay = r.config.RetryDelay
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = r.client.Do(ctx, httpReq)
		if attempt >= retries || !shouldRetry(req.RetryOn, resp, err) {
			return resp, attempt + 1, err
		}

		timer := time.NewTimer(time.Duration(delay) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, attempt + 1, err
		case <-timer.C:
		}
	}
}

func shouldRetry(retryOn []int, resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if len(retryOn) == 0 {
		return resp.StatusCode >= 500
	}
	return slices.Contains(retryOn, resp.StatusCode)
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	switch {
	case len(pattern) > 1 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		if slices.Contains(tags, filter) {
			return true
		}
	}
	return false
}
