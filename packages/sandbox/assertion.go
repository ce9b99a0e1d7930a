package sandbox

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitscript/packages/assertions"
	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

// AssertionResult is one recorded pm.test outcome.
type AssertionResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// AssertionCollector is the ordered, run-scoped list of assertion results.
// Duplicate messages are kept.
type AssertionCollector struct {
	results []AssertionResult
}

func NewAssertionCollector() *AssertionCollector {
	return &AssertionCollector{}
}

// Record appends a result and returns passed.
func (c *AssertionCollector) Record(passed bool, message string) bool {
	c.results = append(c.results, AssertionResult{Passed: passed, Message: message})
	return passed
}

// Results returns a snapshot of the collected results.
func (c *AssertionCollector) Results() []AssertionResult {
	out := make([]AssertionResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *AssertionCollector) Len() int {
	return len(c.results)
}

func (c *AssertionCollector) Failed() int {
	n := 0
	for _, r := range c.results {
		if !r.Passed {
			n++
		}
	}
	return n
}

func (c *AssertionCollector) Reset() {
	c.results = nil
}

// TestNamespace implements the pm.test operators. Every operator takes the
// raw guest arguments, records exactly one result and never panics.
//
// Operators with an optional message treat the first argument as the
// message only when the call uses the full arity.
type TestNamespace struct {
	collector *AssertionCollector
	response  *http.Response
}

func newTestNamespace(c *AssertionCollector, resp *http.Response) *TestNamespace {
	return &TestNamespace{collector: c, response: resp}
}

// arity splits args into the message and operator arguments. ok is false
// when too few arguments were given, in which case a failed result has
// already been recorded.
func (t *TestNamespace) arity(op string, min, max int, args []any) (msg string, rest []any, ok bool) {
	if len(args) < min {
		diag := "Not enough arguments for " + op
		if min == max && len(args) > 0 {
			diag = messageOf(args[0]) + ": " + diag
		}
		t.collector.Record(false, diag)
		return "", nil, false
	}
	if len(args) >= max {
		return messageOf(args[0]), args[1:max], true
	}
	return "", args, true
}

func (t *TestNamespace) AssertEquals(args ...any) bool {
	msg, rest, ok := t.arity("assertEquals", 3, 3, args)
	if !ok {
		return false
	}
	return t.collector.Record(assertions.Equal(rest[0], rest[1]), msg)
}

func (t *TestNamespace) AssertTrue(args ...any) bool {
	msg, rest, ok := t.arity("assertTrue", 2, 2, args)
	if !ok {
		return false
	}
	b, isBool := rest[0].(bool)
	return t.collector.Record(isBool && b, msg)
}

func (t *TestNamespace) AssertFalse(args ...any) bool {
	msg, rest, ok := t.arity("assertFalse", 2, 2, args)
	if !ok {
		return false
	}
	b, isBool := rest[0].(bool)
	return t.collector.Record(isBool && !b, msg)
}

func (t *TestNamespace) AssertContains(args ...any) bool {
	msg, rest, ok := t.arity("assertContains", 3, 3, args)
	if !ok {
		return false
	}
	return t.collector.Record(assertions.Contains(rest[0], rest[1]), msg)
}

// AssertStatusCode accepts (expected) or (message, expected).
func (t *TestNamespace) AssertStatusCode(args ...any) bool {
	msg, rest, ok := t.arity("assertStatusCode", 1, 2, args)
	if !ok {
		return false
	}
	expected, isInt := assertions.ToInt(rest[0])
	if msg == "" {
		msg = fmt.Sprintf("Status code should be %s", assertions.Stringify(rest[0]))
	}
	if !isInt {
		return t.collector.Record(false, msg+": expected status must be a number")
	}
	if t.response == nil {
		return t.collector.Record(false, msg+": no response available")
	}
	return t.collector.Record(t.response.StatusCode == expected, msg)
}

// AssertHeader accepts (name) or (message, name).
func (t *TestNamespace) AssertHeader(args ...any) bool {
	msg, rest, ok := t.arity("assertHeader", 1, 2, args)
	if !ok {
		return false
	}
	name := assertions.Stringify(rest[0])
	if msg == "" {
		msg = fmt.Sprintf("Response should have header '%s'", name)
	}
	if t.response == nil {
		return t.collector.Record(false, msg+": no response available")
	}
	return t.collector.Record(t.response.HasHeader(name), msg)
}

// AssertHeaderValue accepts (name, value) or (message, name, value).
func (t *TestNamespace) AssertHeaderValue(args ...any) bool {
	msg, rest, ok := t.arity("assertHeaderValue", 2, 3, args)
	if !ok {
		return false
	}
	name := assertions.Stringify(rest[0])
	want := assertions.Stringify(rest[1])
	if msg == "" {
		msg = fmt.Sprintf("Header '%s' should have value '%s'", name, want)
	}
	if t.response == nil {
		return t.collector.Record(false, msg+": no response available")
	}
	got, found := t.response.Lookup(name)
	return t.collector.Record(found && got == want, msg)
}

// AssertJSONPath accepts (path, expected) or (message, path, expected).
func (t *TestNamespace) AssertJSONPath(args ...any) bool {
	msg, rest, ok := t.arity("assertJsonPath", 2, 3, args)
	if !ok {
		return false
	}
	path := assertions.Stringify(rest[0])
	if msg == "" {
		msg = fmt.Sprintf("JSON path '%s' should equal %s", path, assertions.Stringify(rest[1]))
	}
	if t.response == nil {
		return t.collector.Record(false, msg+": no response available")
	}
	got, found := assertions.ValueAt(t.response.Body, path)
	return t.collector.Record(found && assertions.Equal(got, rest[1]), msg)
}

// AssertSchema accepts (schema) or (message, schema). The schema is a JSON
// string or a guest object.
func (t *TestNamespace) AssertSchema(args ...any) bool {
	msg, rest, ok := t.arity("assertSchema", 1, 2, args)
	if !ok {
		return false
	}
	if msg == "" {
		msg = "Response body should match schema"
	}
	if t.response == nil {
		return t.collector.Record(false, msg+": no response available")
	}
	err := assertions.ValidateSchema(rest[0], t.response.Body)
	return t.collector.Record(err == nil, msg)
}

func messageOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return assertions.Stringify(v)
}
