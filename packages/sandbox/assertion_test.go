package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

func jsonResponse() *http.Response {
	return &http.Response{
		StatusCode: 201,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-Id": "abc",
		},
		Body: []byte(`{"user":{"id":7,"name":"ada"},"tags":["a","b"]}`),
	}
}

func TestTestNamespace_Operators(t *testing.T) {
	tests := []struct {
		name string
		call func(ns *TestNamespace) bool
		want AssertionResult
	}{
		{
			name: "equals numbers across representations",
			call: func(ns *TestNamespace) bool { return ns.AssertEquals("same", int64(1), 1.0) },
			want: AssertionResult{Passed: true, Message: "same"},
		},
		{
			name: "equals does not coerce strings",
			call: func(ns *TestNamespace) bool { return ns.AssertEquals("coerce", "1", int64(1)) },
			want: AssertionResult{Passed: false, Message: "coerce"},
		},
		{
			name: "equals null safe",
			call: func(ns *TestNamespace) bool { return ns.AssertEquals("nulls", nil, nil) },
			want: AssertionResult{Passed: true, Message: "nulls"},
		},
		{
			name: "equals deep",
			call: func(ns *TestNamespace) bool {
				return ns.AssertEquals("deep", map[string]any{"a": []any{int64(1)}}, map[string]any{"a": []any{1.0}})
			},
			want: AssertionResult{Passed: true, Message: "deep"},
		},
		{
			name: "equals missing args",
			call: func(ns *TestNamespace) bool { return ns.AssertEquals("m", 1) },
			want: AssertionResult{Passed: false, Message: "m: Not enough arguments for assertEquals"},
		},
		{
			name: "true requires boolean",
			call: func(ns *TestNamespace) bool { return ns.AssertTrue("truthy", int64(1)) },
			want: AssertionResult{Passed: false, Message: "truthy"},
		},
		{
			name: "true passes",
			call: func(ns *TestNamespace) bool { return ns.AssertTrue("ok", true) },
			want: AssertionResult{Passed: true, Message: "ok"},
		},
		{
			name: "false passes",
			call: func(ns *TestNamespace) bool { return ns.AssertFalse("no", false) },
			want: AssertionResult{Passed: true, Message: "no"},
		},
		{
			name: "false missing args",
			call: func(ns *TestNamespace) bool { return ns.AssertFalse("only") },
			want: AssertionResult{Passed: false, Message: "only: Not enough arguments for assertFalse"},
		},
		{
			name: "contains null haystack",
			call: func(ns *TestNamespace) bool { return ns.AssertContains("c", nil, "x") },
			want: AssertionResult{Passed: false, Message: "c"},
		},
		{
			name: "contains stringifies",
			call: func(ns *TestNamespace) bool { return ns.AssertContains("c", int64(12345), "234") },
			want: AssertionResult{Passed: true, Message: "c"},
		},
		{
			name: "status default message",
			call: func(ns *TestNamespace) bool { return ns.AssertStatusCode(int64(201)) },
			want: AssertionResult{Passed: true, Message: "Status code should be 201"},
		},
		{
			name: "status custom message",
			call: func(ns *TestNamespace) bool { return ns.AssertStatusCode("created", int64(200)) },
			want: AssertionResult{Passed: false, Message: "created"},
		},
		{
			name: "status not a number",
			call: func(ns *TestNamespace) bool { return ns.AssertStatusCode("abc") },
			want: AssertionResult{Passed: false, Message: "Status code should be abc: expected status must be a number"},
		},
		{
			name: "status no args",
			call: func(ns *TestNamespace) bool { return ns.AssertStatusCode() },
			want: AssertionResult{Passed: false, Message: "Not enough arguments for assertStatusCode"},
		},
		{
			name: "header case insensitive",
			call: func(ns *TestNamespace) bool { return ns.AssertHeader("content-type") },
			want: AssertionResult{Passed: true, Message: "Response should have header 'content-type'"},
		},
		{
			name: "header value",
			call: func(ns *TestNamespace) bool { return ns.AssertHeaderValue("x-request-id", "abc") },
			want: AssertionResult{Passed: true, Message: "Header 'x-request-id' should have value 'abc'"},
		},
		{
			name: "header value mismatch with message",
			call: func(ns *TestNamespace) bool { return ns.AssertHeaderValue("id", "X-Request-Id", "zzz") },
			want: AssertionResult{Passed: false, Message: "id"},
		},
		{
			name: "json path",
			call: func(ns *TestNamespace) bool { return ns.AssertJSONPath("user.id", int64(7)) },
			want: AssertionResult{Passed: true, Message: "JSON path 'user.id' should equal 7"},
		},
		{
			name: "json path bracket index",
			call: func(ns *TestNamespace) bool { return ns.AssertJSONPath("second tag", "$.tags[1]", "b") },
			want: AssertionResult{Passed: true, Message: "second tag"},
		},
		{
			name: "schema",
			call: func(ns *TestNamespace) bool {
				return ns.AssertSchema(`{"type":"object","required":["user"]}`)
			},
			want: AssertionResult{Passed: true, Message: "Response body should match schema"},
		},
		{
			name: "schema failure",
			call: func(ns *TestNamespace) bool {
				return ns.AssertSchema("needs id", map[string]any{"type": "object", "required": []any{"id"}})
			},
			want: AssertionResult{Passed: false, Message: "needs id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAssertionCollector()
			ns := newTestNamespace(c, jsonResponse())

			got := tt.call(ns)

			assert.Equal(t, tt.want.Passed, got)
			assert.Equal(t, []AssertionResult{tt.want}, c.Results())
		})
	}
}

func TestTestNamespace_NoResponse(t *testing.T) {
	c := NewAssertionCollector()
	ns := newTestNamespace(c, nil)

	assert.False(t, ns.AssertStatusCode(int64(200)))
	assert.False(t, ns.AssertHeader("X"))
	assert.Equal(t, "Status code should be 200: no response available", c.Results()[0].Message)
}

func TestAssertionCollector_KeepsOrderAndDuplicates(t *testing.T) {
	c := NewAssertionCollector()
	c.Record(true, "same")
	c.Record(false, "same")
	c.Record(true, "other")

	assert.Equal(t, []AssertionResult{
		{Passed: true, Message: "same"},
		{Passed: false, Message: "same"},
		{Passed: true, Message: "other"},
	}, c.Results())
	assert.Equal(t, 1, c.Failed())

	snap := c.Results()
	snap[0].Passed = false
	assert.True(t, c.Results()[0].Passed)

	c.Reset()
	assert.Equal(t, 0, c.Len())
}
