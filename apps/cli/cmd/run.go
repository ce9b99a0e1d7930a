package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/core/config"
	"github.com/abdul-hamid-achik/hitscript/packages/core/parser"
	"github.com/abdul-hamid-achik/hitscript/packages/core/runner"
	"github.com/abdul-hamid-achik/hitscript/packages/logger"
	"github.com/abdul-hamid-achik/hitscript/packages/output"
	"github.com/abdul-hamid-achik/hitscript/packages/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run requests and scripts from collection files",
	Long: `Run the requests defined in .hitscript.yaml collections, executing
their pre-request and test scripts.

Examples:
  hitscript run users.hitscript.yaml
  hitscript run users.hitscript.yaml --env staging
  hitscript run ./collections/ --tags smoke
  hitscript run users.hitscript.yaml --name "create*" -o junit --output-file report.xml
  hitscript run ./collections/ --script-timeout 2s --rate 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// DefaultTimeout applies when neither the flag nor the config set one
	DefaultTimeout = 30 * time.Second
)

var (
	envFlag           string
	envFileFlag       string
	nameFlag          string
	tagsFlag          string
	verboseFlag       int // 0=off, 1=-v, 2=-vv
	quietFlag         bool
	bailFlag          bool
	timeoutFlag       string
	scriptTimeoutFlag string
	enginesFlag       string
	rateFlag          float64
	noColorFlag       bool
	dryRunFlag        bool
	outputFlag        string
	outputFileFlag    string
	parallelFlag      bool
	concurrencyFlag   int
	watchFlag         bool
	proxyFlag         string
	insecureFlag      bool
	historyFlag       bool
	noHistoryFlag     bool
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("HITSCRIPT_ENV", ""), "Environment to use, defaults to defaultEnvironment from config (env: HITSCRIPT_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITSCRIPT_ENV_FILE", ""), "Path to .env file layered over the environment (env: HITSCRIPT_ENV_FILE)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only requests matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("HITSCRIPT_TAGS", ""), "Run only requests with specified tags (comma-separated) (env: HITSCRIPT_TAGS)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v shows script console, -vv also logs at debug)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("HITSCRIPT_QUIET", false), "Suppress all output except errors (env: HITSCRIPT_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITSCRIPT_NO_COLOR", false), "Disable colored output (env: HITSCRIPT_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITSCRIPT_OUTPUT", ""), "Output format: console, json, junit (env: HITSCRIPT_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITSCRIPT_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITSCRIPT_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITSCRIPT_BAIL", false), "Stop on first failure (env: HITSCRIPT_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITSCRIPT_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITSCRIPT_TIMEOUT)")
	runCmd.Flags().StringVar(&scriptTimeoutFlag, "script-timeout", getEnvString("HITSCRIPT_SCRIPT_TIMEOUT", ""), "Wall-clock budget per script run (e.g., 2s) (env: HITSCRIPT_SCRIPT_TIMEOUT)")
	runCmd.Flags().StringVar(&enginesFlag, "engines", getEnvString("HITSCRIPT_ENGINES", ""), "Script engine names to try, in order (comma-separated) (env: HITSCRIPT_ENGINES)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITSCRIPT_RATE", 0), "Maximum requests per second, 0 for unlimited (env: HITSCRIPT_RATE)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("HITSCRIPT_PARALLEL", false), "Run requests in parallel (when no dependencies) (env: HITSCRIPT_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("HITSCRIPT_CONCURRENCY", runner.DefaultConcurrency), "Number of concurrent requests when running in parallel (env: HITSCRIPT_CONCURRENCY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch collections and script files for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITSCRIPT_PROXY", ""), "Proxy URL for HTTP requests (env: HITSCRIPT_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITSCRIPT_INSECURE", false), "Disable SSL certificate validation (env: HITSCRIPT_INSECURE)")

	// History flags
	runCmd.Flags().BoolVar(&historyFlag, "history", getEnvBool("HITSCRIPT_HISTORY", false), "Record every request in the history database (env: HITSCRIPT_HISTORY)")
	runCmd.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Do not record history even if enabled in config")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// StatsFormatter is implemented by formatters that report script latency.
type StatsFormatter interface {
	FormatStats(s runner.ScriptSummary)
}

func newFormatter(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		opts := []output.JSONOption{}
		if w != nil {
			opts = append(opts, output.JSONWithWriter(w))
		}
		return output.NewJSONFormatter(opts...), nil
	case "junit":
		opts := []output.JUnitOption{}
		if w != nil {
			opts = append(opts, output.JUnitWithWriter(w))
		}
		return output.NewJUnitFormatter(opts...), nil
	case "", "console":
		consoleOpts := []output.ConsoleOption{
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		}
		if w != nil {
			consoleOpts = append(consoleOpts, output.WithWriter(w))
		}
		return output.NewConsoleFormatter(consoleOpts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use console, json or junit)", format)
	}
}

// parseDurationFlag parses a flag value, falling back to ms from config and
// then to def.
func parseDurationFlag(name, value string, configMs int, def time.Duration) (time.Duration, error) {
	if value == "" {
		if configMs > 0 {
			return time.Duration(configMs) * time.Millisecond, nil
		}
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w (use format like 30s, 1m, 500ms)", name, value, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildRunnerConfig merges CLI flags over the config file.
func buildRunnerConfig(fc *config.Config) (*runner.Config, error) {
	timeout, err := parseDurationFlag("timeout", timeoutFlag, fc.Timeout, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	scriptTimeout, err := parseDurationFlag("script-timeout", scriptTimeoutFlag, fc.ScriptTimeout, sandbox.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	environment := envFlag
	if environment == "" {
		environment = fc.DefaultEnvironment
	}
	proxy := fc.Proxy
	if proxyFlag != "" {
		proxy = proxyFlag
	}
	engines := fc.Engines
	if enginesFlag != "" {
		engines = splitList(enginesFlag)
	}
	rate := fc.SendRequestRate
	if rateFlag > 0 {
		rate = rateFlag
	}

	return &runner.Config{
		Environment:     environment,
		Environments:    fc.Environments,
		EnvFile:         envFileFlag,
		Verbose:         verboseFlag > 0 || fc.GetVerbose(),
		Timeout:         timeout,
		ScriptTimeout:   scriptTimeout,
		FollowRedirect:  fc.GetFollowRedirects(),
		MaxRedirects:    fc.MaxRedirects,
		ValidateSSL:     fc.GetValidateSSL() && !insecureFlag,
		Proxy:           proxy,
		Headers:         fc.Headers,
		SendRequestRate: rate,
		Engines:         engines,
		Retries:         fc.Retries,
		RetryDelay:      fc.RetryDelay,
		Bail:            bailFlag || fc.GetBail(),
		NameFilter:      nameFlag,
		TagsFilter:      splitList(tagsFlag),
		Parallel:        parallelFlag,
		Concurrency:     concurrencyFlag,
	}, nil
}

// runTotals aggregates one pass over all files.
type runTotals struct {
	passed, failed, skipped int
	networkFailures         int
	parseErrors             int
	configErrors            int
	engineErrors            int
	duration                time.Duration
}

func (t *runTotals) add(result *runner.RunResult) {
	t.passed += result.Passed
	t.failed += result.Failed
	t.skipped += result.Skipped
	for _, r := range result.Results {
		switch {
		case errors.Is(r.ScriptErr, sandbox.ErrEngineUnavailable):
			t.engineErrors++
		case r.Error != nil && r.Response == nil:
			t.networkFailures++
		}
	}
}

func (t *runTotals) addError(err error) {
	var parseErr *parser.ParseError
	switch {
	case errors.As(err, &parseErr), strings.HasPrefix(err.Error(), "parsing file"):
		t.parseErrors++
	default:
		t.configErrors++
	}
}

// exitCode maps totals onto the process exit code.
func (t *runTotals) exitCode() int {
	switch {
	case t.engineErrors > 0:
		return ExitScriptEngineError
	case t.parseErrors > 0:
		return ExitParseError
	case t.configErrors > 0:
		return ExitConfigError
	case t.failed > 0 && t.failed == t.networkFailures:
		return ExitNetworkError
	case t.failed > 0:
		return ExitTestFailure
	}
	return ExitSuccess
}

func runCommand(cmd *cobra.Command, args []string) error {
	log := logger.Named("run")

	// Setup output writer
	var outWriter io.Writer
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitUsageError, "cannot create output file: %w", err)
		}
		defer f.Close()
		outWriter = f
	}

	format := outputFlag
	if format == "" {
		format = fileConfig.Output
	}
	verbose := verboseFlag > 0 || fileConfig.GetVerbose()
	noColor := noColorFlag || quietFlag || fileConfig.GetNoColor()
	newOutput := func() (Formatter, error) {
		return newFormatter(format, outWriter, verbose, noColor)
	}
	formatter, err := newOutput()
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	if !quietFlag {
		formatter.FormatHeader(version)
	}

	files, err := collectFiles(args)
	if err != nil {
		formatter.FormatError(err)
		return &exitError{code: ExitUsageError, err: err}
	}
	if len(files) == 0 {
		formatter.FormatError(fmt.Errorf("no .hitscript.yaml files found"))
		return withExitCode(ExitUsageError, "no files found")
	}

	cfg, err := buildRunnerConfig(fileConfig)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	opts := []runner.Option{runner.WithLogger(logger.Named("runner"))}
	if historyEnabled() {
		store, err := openHistory(cmd.Context())
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		defer store.Close()
		opts = append(opts, runner.WithRecorder(historyRecorder(store, cfg.Environment, log)))
	}

	r := runner.NewRunner(cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runTests := func() *runTotals {
		totals := &runTotals{}
		startTime := time.Now()
		r.Stats().Reset()

		for _, file := range files {
			if dryRunFlag {
				fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s\n", file)
				continue
			}

			result, err := r.RunFile(ctx, file)
			if err != nil {
				log.Debug("run failed", zap.String("file", file), zap.Error(err))
				formatter.FormatError(fmt.Errorf("%s: %w", file, err))
				totals.addError(err)
				if cfg.Bail {
					break
				}
				continue
			}

			formatter.FormatResult(result)
			totals.add(result)

			if cfg.Bail && result.Failed > 0 {
				break
			}
			if ctx.Err() != nil {
				break
			}
		}

		totals.duration = time.Since(startTime)
		if sf, ok := formatter.(StatsFormatter); ok && !dryRunFlag {
			sf.FormatStats(r.Stats().Summary())
		}
		return totals
	}

	totals := runTests()

	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(totals.duration); err != nil {
			return withExitCode(ExitUsageError, "error writing output: %w", err)
		}
	}

	if !watchFlag {
		if code := totals.exitCode(); code != ExitSuccess {
			logger.Sync()
			os.Exit(code)
		}
		return nil
	}

	return watch(ctx, cmd, args, files, func() {
		next, err := newOutput()
		if err != nil {
			return
		}
		formatter = next
		t := runTests()
		if flushable, ok := formatter.(Flushable); ok {
			_ = flushable.Flush(t.duration)
		}
	})
}

// watch re-runs rerun whenever a collection or script file changes under
// the watched directories.
func watch(ctx context.Context, cmd *cobra.Command, args, files []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch the original args if they're directories
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && isWatchedFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				name := event.Name
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", name)
					rerun()
					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

// isWatchedFile matches collections and the script files they reference.
func isWatchedFile(path string) bool {
	return parser.IsCollectionFile(path) || strings.EqualFold(filepath.Ext(path), ".js")
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && parser.IsCollectionFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if parser.IsCollectionFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}
