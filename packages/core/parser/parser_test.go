package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Collection(t *testing.T) {
	input := `name: users
variables:
  baseUrl: https://api.example.com
  page: 2
environments:
  dev:
    host: localhost
headers:
  Accept: application/json
requests:
  - name: list
    url: "{{baseUrl}}/users"
    query:
      page: "{{page}}"
    tags: [smoke]
    test: |
      pm.test.assertStatusCode(200);
  - name: create
    method: post
    url: "{{baseUrl}}/users"
    headers:
      Accept: text/plain
    body:
      name: Jane
    depends: [list]
    retry: 2
    retryOn: [502, 503]
`
	c, err := Parse([]byte(input), "users.hitscript.yaml")
	require.NoError(t, err)

	assert.Equal(t, "users", c.Name)
	assert.Equal(t, "https://api.example.com", c.Variables["baseUrl"])
	assert.Equal(t, 2, c.Variables["page"])
	assert.Equal(t, "localhost", c.Environments["dev"]["host"])
	require.Len(t, c.Requests, 2)

	list := c.Requests[0]
	assert.Equal(t, "GET", list.Method)
	assert.Equal(t, []string{"smoke"}, list.Tags)
	assert.Equal(t, "{{page}}", list.Query["page"])
	assert.Equal(t, "application/json", list.Headers["Accept"])
	assert.Contains(t, list.Test, "assertStatusCode(200)")
	assert.True(t, list.HasScripts())
	assert.Equal(t, 11, list.Line)

	create := c.Request("create")
	require.NotNil(t, create)
	assert.Equal(t, "POST", create.Method)
	assert.JSONEq(t, `{"name":"Jane"}`, create.Body)
	assert.Equal(t, "text/plain", create.Headers["Accept"])
	assert.Equal(t, []string{"list"}, create.Depends)
	assert.Equal(t, 2, create.Retry)
	assert.Equal(t, []int{502, 503}, create.RetryOn)
	assert.False(t, create.HasScripts())

	assert.Nil(t, c.Request("missing"))
}

func TestParse_Skip(t *testing.T) {
	input := `requests:
  - {name: a, url: "http://x", skip: true}
  - {name: b, url: "http://x", skip: "flaky upstream"}
  - {name: c, url: "http://x", skip: false}
  - {name: d, url: "http://x", body: "raw text"}
`
	c, err := Parse([]byte(input), "")
	require.NoError(t, err)
	assert.Equal(t, "skipped", c.Requests[0].Skip)
	assert.Equal(t, "flaky upstream", c.Requests[1].Skip)
	assert.Equal(t, "", c.Requests[2].Skip)
	assert.Equal(t, "raw text", c.Requests[3].Body)
}

func TestParse_DefaultNames(t *testing.T) {
	c, err := Parse([]byte("requests:\n  - url: 'http://x'\n  - url: 'http://y'\n"), "smoke.hitscript.yml")
	require.NoError(t, err)
	assert.Equal(t, "smoke", c.Name)
	assert.Equal(t, "request 1", c.Requests[0].Name)
	assert.Equal(t, "request 2", c.Requests[1].Name)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:     "no requests",
			input:    "name: empty\n",
			contains: []string{"collection has no requests"},
		},
		{
			name:     "missing url",
			input:    "requests:\n  - name: a\n",
			contains: []string{`request "a": missing url`},
		},
		{
			name:     "unsupported method",
			input:    "requests:\n  - {name: a, method: FETCH, url: 'http://x'}\n",
			contains: []string{"unsupported method FETCH"},
		},
		{
			name:     "duplicate names",
			input:    "requests:\n  - {name: a, url: 'http://x'}\n  - {name: a, url: 'http://y'}\n",
			contains: []string{`c.hitscript.yaml:3: request "a": duplicate request name`},
		},
		{
			name:     "inline and file script",
			input:    "requests:\n  - {name: a, url: 'http://x', test: 'x', testFile: t.js}\n",
			contains: []string{"both test and testFile are set"},
		},
		{
			name:     "unknown dependency",
			input:    "requests:\n  - {name: a, url: 'http://x', depends: [b]}\n",
			contains: []string{`depends on unknown request "b"`},
		},
		{
			name:     "negative retry",
			input:    "requests:\n  - {name: a, url: 'http://x', retry: -1}\n",
			contains: []string{"must not be negative"},
		},
		{
			name:  "all problems reported",
			input: "requests:\n  - {name: a}\n  - {name: b, method: BREW}\n",
			contains: []string{
				`request "a": missing url`,
				`request "b": unsupported method BREW`,
				`request "b": missing url`,
			},
		},
		{
			name:     "invalid yaml",
			input:    "requests: [\n",
			contains: []string{"c.hitscript.yaml: yaml:"},
		},
		{
			name:     "bad skip",
			input:    "requests:\n  - {name: a, url: 'http://x', skip: [1]}\n",
			contains: []string{"skip must be a boolean or a reason"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "c.hitscript.yaml")
			require.Error(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestParseFile_ScriptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "pre.js"), []byte(`pm.variables.set("a", 1);`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "test.js"), []byte(`pm.test.assertTrue(true);`), 0644))

	path := filepath.Join(dir, "api.hitscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`requests:
  - name: a
    url: 'http://x'
    preRequestFile: scripts/pre.js
    testFile: scripts/test.js
`), 0644))

	c, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "api", c.Name)
	assert.Equal(t, path, c.Path)
	assert.Equal(t, `pm.variables.set("a", 1);`, c.Requests[0].PreRequest)
	assert.Equal(t, `pm.test.assertTrue(true);`, c.Requests[0].Test)
	assert.Equal(t, "scripts/pre.js", c.Requests[0].PreRequestFile)
}

func TestParseFile_ScriptOutsideDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "collections")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "evil.js"), []byte("1"), 0644))

	path := filepath.Join(dir, "api.hitscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requests:\n  - {name: a, url: 'http://x', preRequestFile: ../evil.js}\n"), 0644))

	_, err := ParseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal detected")
}

func TestParseFile_MissingScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.hitscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requests:\n  - {name: a, url: 'http://x', testFile: nope.js}\n"), 0644))

	_, err := ParseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testFile:")
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.hitscript.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsCollectionFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"api.hitscript.yaml", true},
		{"dir/API.HITSCRIPT.YML", true},
		{"api.yaml", false},
		{"api.http", false},
		{"hitscript.yaml", false},
		{"dir/.hitscript.yaml", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCollectionFile(tt.path))
		})
	}
}

func TestValidatePathWithinBase(t *testing.T) {
	base := t.TempDir()
	assert.NoError(t, validatePathWithinBase(filepath.Join(base, "a", "b.js"), base))
	assert.NoError(t, validatePathWithinBase(base, base))
	assert.Error(t, validatePathWithinBase(filepath.Join(base, "..", "x.js"), base))
	assert.NoError(t, validatePathWithinBase("/anything", ""))
}
