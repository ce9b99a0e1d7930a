package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitscript/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary  `json:"summary"`
	Scripts  *JSONScripts `json:"scripts,omitempty"`
	Tests    []JSONTest   `json:"tests"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONScripts holds script latency percentiles in milliseconds.
type JSONScripts struct {
	Runs     int64   `json:"runs"`
	Failures int64   `json:"failures"`
	P50      float64 `json:"p50"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
	Max      float64 `json:"max"`
}

type JSONTest struct {
	Name        string          `json:"name"`
	File        string          `json:"file"`
	Collection  string          `json:"collection,omitempty"`
	Environment string          `json:"environment,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Passed      bool            `json:"passed"`
	Skipped     bool            `json:"skipped,omitempty"`
	SkipReason  string          `json:"skipReason,omitempty"`
	Duration    float64         `json:"duration"`
	Attempts    int             `json:"attempts,omitempty"`
	Error       string          `json:"error,omitempty"`
	ScriptError string          `json:"scriptError,omitempty"`
	Request     *JSONRequest    `json:"request,omitempty"`
	Response    *JSONResponse   `json:"response,omitempty"`
	Assertions  []JSONAssertion `json:"assertions,omitempty"`
	Console     []JSONConsole   `json:"console,omitempty"`
}

type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

type JSONAssertion struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

type JSONConsole struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	scripts *JSONScripts
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		test := JSONTest{
			Name:        r.Name,
			File:        result.File,
			Collection:  result.Collection,
			Environment: result.Environment,
			Tags:        r.Tags,
			Passed:      r.Passed,
			Skipped:     r.Skipped,
			Duration:    float64(r.Duration.Milliseconds()),
			Attempts:    r.Attempts,
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			test.SkipReason = r.SkipReason
		}
		if r.Error != nil {
			test.Error = r.Error.Error()
		}
		if r.ScriptErr != nil {
			test.ScriptError = r.ScriptErr.Error()
		}

		if r.Request != nil {
			test.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.BuildURL(),
				Headers: r.Request.Headers,
			}
		}

		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Duration:   float64(r.Response.Duration.Milliseconds()),
			}
		}

		for _, a := range r.Assertions {
			test.Assertions = append(test.Assertions, JSONAssertion{Passed: a.Passed, Message: a.Message})
		}
		for _, e := range r.Console {
			test.Console = append(test.Console, JSONConsole{Level: e.Level.String(), Message: e.Message()})
		}

		f.results = append(f.results, test)
	}
}

func (f *JSONFormatter) FormatStats(s runner.ScriptSummary) {
	if s.Runs == 0 {
		return
	}
	f.scripts = &JSONScripts{
		Runs:     s.Runs,
		Failures: s.Failures,
		P50:      ms(s.P50),
		P95:      ms(s.P95),
		P99:      ms(s.P99),
		Max:      ms(s.Max),
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, t := range f.results {
		if t.Skipped {
			skipped++
		} else if t.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Scripts:  f.scripts,
		Tests:    f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
