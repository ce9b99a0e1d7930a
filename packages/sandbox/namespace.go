package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitscript/packages/assertions"
	"github.com/abdul-hamid-achik/hitscript/packages/builtin"
	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

// EnvironmentSource is the read-only environment collaborator.
type EnvironmentSource interface {
	ActiveName() string
	VariableValue(key string) (string, bool)
}

// VariableLister is optionally implemented by an EnvironmentSource to back
// pm.environment.toObject.
type VariableLister interface {
	Variables() map[string]string
}

// VariablesNamespace backs pm.variables.
type VariablesNamespace struct {
	store *VariableStore
}

// Get and the other pm.variables methods delegate straight to the store.
func (n *VariablesNamespace) Get(key string) (any, bool) { return n.store.Get(key) }
func (n *VariablesNamespace) Set(key string, value any) { n.store.Set(key, value) }
func (n *VariablesNamespace) Has(key string) bool { return n.store.Has(key) }
func (n *VariablesNamespace) Unset(key string) bool { return n.store.Unset(key) }
func (n *VariablesNamespace) ToObject() map[string]any { return n.store.ToObject() }

// EnvironmentNamespace backs pm.environment. A nil source behaves as an
// empty, unnamed environment.
type EnvironmentNamespace struct {
	source EnvironmentSource
}

// Name is the active environment name, empty when none is loaded.
func (n *EnvironmentNamespace) Name() string {
	if n.source == nil {
		return ""
	}
	return n.source.ActiveName()
}

// Get resolves key in the active environment.
func (n *EnvironmentNamespace) Get(key string) (string, bool) {
	if n.source == nil {
		return "", false
	}
	return n.source.VariableValue(key)
}

func (n *EnvironmentNamespace) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// ToObject copies the environment variables when the source can list them.
func (n *EnvironmentNamespace) ToObject() map[string]string {
	out := make(map[string]string)
	lister, ok := n.source.(VariableLister)
	if !ok {
		return out
	}
	for k, v := range lister.Variables() {
		out[k] = v
	}
	return out
}

// RequestNamespace backs pm.request. Headers is the controller's live map.
type RequestNamespace struct {
	Headers *HeaderMap
}

func (n *RequestNamespace) AddHeader(name, value string) { n.Headers.Set(name, value) }

func (n *RequestNamespace) GetHeader(name string) (string, bool) { return n.Headers.Get(name) }

func (n *RequestNamespace) HasHeader(name string) bool { return n.Headers.Has(name) }

func (n *RequestNamespace) RemoveHeader(name string) bool { return n.Headers.Delete(name) }

// ResponseNamespace backs pm.response and the response handed to
// sendRequest callbacks. The JSON body is parsed on first use.
type ResponseNamespace struct {
	resp    *http.Response
	parsed  bool
	json    any
	jsonErr error
}

func newResponseNamespace(resp *http.Response) *ResponseNamespace {
	if resp == nil {
		resp = &http.Response{}
	}
	return &ResponseNamespace{resp: resp}
}

// Status and the other pm.response accessors read the wrapped response.
func (n *ResponseNamespace) Status() int { return n.resp.StatusCode }
func (n *ResponseNamespace) Body() string { return n.resp.BodyString() }
func (n *ResponseNamespace) Headers() map[string]string { return n.resp.HeaderMap() }
func (n *ResponseNamespace) ContentType() string { return n.resp.ContentType() }
func (n *ResponseNamespace) ResponseTime() int64 { return n.resp.DurationMs() }

// JSON parses the body once and caches both the value and the error.
func (n *ResponseNamespace) JSON() (any, error) {
	if !n.parsed {
		n.json, n.jsonErr = n.resp.BodyJSON()
		n.parsed = true
	}
	return n.json, n.jsonErr
}

// UtilsNamespace backs pm.utils.
type UtilsNamespace struct {
	funcs *builtin.Registry
}

func (n *UtilsNamespace) JSONParse(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("json.parse: %w", err)
	}
	return v, nil
}

// JSONStringify fails on values JSON cannot represent, cyclic ones included.
func (n *UtilsNamespace) JSONStringify(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json.stringify: %w", err)
	}
	return string(data), nil
}

// IsEmpty is true for nil, undefined and the empty string.
func (n *UtilsNamespace) IsEmpty(v any) bool {
	switch v.(type) {
	case nil, Undefined:
		return true
	}
	return assertions.Stringify(v) == ""
}

// IsBlank is IsEmpty extended to whitespace-only strings.
func (n *UtilsNamespace) IsBlank(v any) bool {
	if n.IsEmpty(v) {
		return true
	}
	return strings.TrimSpace(assertions.Stringify(v)) == ""
}

// Trim renders v as a string and strips surrounding whitespace.
func (n *UtilsNamespace) Trim(v any) string {
	if _, ok := v.(Undefined); ok {
		return ""
	}
	return strings.TrimSpace(assertions.Stringify(v))
}

func (n *UtilsNamespace) Base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func (n *UtilsNamespace) Base64Decode(s string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("base64.decode: %w", err)
	}
	return string(data), nil
}

// Functions lists the builtin helpers exposed under pm.utils.fn.
func (n *UtilsNamespace) Functions() []string {
	if n.funcs == nil {
		return nil
	}
	return n.funcs.Names()
}

// Call invokes a builtin helper by name.
func (n *UtilsNamespace) Call(name string, args ...string) (any, error) {
	if n.funcs == nil {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	return n.funcs.Invoke(name, args...)
}
