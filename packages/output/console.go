package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitscript/packages/core/runner"
	"github.com/abdul-hamid-achik/hitscript/packages/sandbox"
)

// truncate shortens s to maxLen bytes for display.
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := "Running: " + result.File
	if result.Environment != "" {
		title += " [" + result.Environment + "]"
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold(title))

	for _, r := range result.Results {
		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			if r.Attempts > 1 {
				fmt.Fprintf(f.writer, "    after %d attempts\n", r.Attempts)
			}
			f.formatConsole(r.Console)
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose && r.Response != nil {
			fmt.Fprintf(f.writer, "    Status: %d", r.Response.StatusCode)
			if r.Attempts > 1 {
				fmt.Fprintf(f.writer, " after %d attempts", r.Attempts)
			}
			fmt.Fprintf(f.writer, "\n")
		}

		for _, a := range r.Assertions {
			switch {
			case !a.Passed:
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), assertionMessage(a))
			case f.verbose:
				fmt.Fprintf(f.writer, "    %s %s\n", green("✓"), assertionMessage(a))
			}
		}

		if r.ScriptErr != nil {
			fmt.Fprintf(f.writer, "    %s %s\n", red("!"), r.ScriptErr)
		}

		f.formatConsole(r.Console)
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

// formatConsole prints script console output in verbose mode.
func (f *ConsoleFormatter) formatConsole(entries []sandbox.ConsoleEntry) {
	if !f.verbose || len(entries) == 0 {
		return
	}
	faint := color.New(color.Faint).SprintFunc()
	fmt.Fprintf(f.writer, "    Console:\n")
	for _, e := range entries {
		fmt.Fprintf(f.writer, "      %s %s\n", faint("["+e.Level.String()+"]"), truncate(e.Message(), 500))
	}
}

func assertionMessage(a sandbox.AssertionResult) string {
	if strings.TrimSpace(a.Message) == "" {
		return "(no message)"
	}
	return a.Message
}

// FormatStats prints script latency percentiles when any script ran.
func (f *ConsoleFormatter) FormatStats(s runner.ScriptSummary) {
	if s.Runs == 0 {
		return
	}
	fmt.Fprintf(f.writer, "Scripts: %d runs", s.Runs)
	if s.Failures > 0 {
		fmt.Fprintf(f.writer, ", %s", color.New(color.FgRed).Sprintf("%d failed", s.Failures))
	}
	fmt.Fprintf(f.writer, " (p50 %s, p95 %s, p99 %s, max %s)\n\n", s.P50, s.P95, s.P99, s.Max)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitscript"), version)
}
