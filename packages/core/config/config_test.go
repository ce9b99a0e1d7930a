package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.False(t, c.GetBail())
	assert.False(t, c.GetHistoryEnabled())
	assert.Equal(t, 5000, c.ScriptTimeout)
	assert.True(t, c.IsDefault())
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hitscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaultEnvironment: staging
scriptTimeout: 250
engines: [js]
sendRequestRate: 5
bail: true
log:
  level: debug
history:
  enabled: true
  retentionDays: 7
environments:
  staging:
    baseUrl: https://staging.example.com
`), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "staging", c.DefaultEnvironment)
	assert.Equal(t, 250, c.ScriptTimeout)
	assert.Equal(t, []string{"js"}, c.Engines)
	assert.Equal(t, 5.0, c.SendRequestRate)
	assert.True(t, c.GetBail())
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format, "unset fields keep defaults")
	assert.True(t, c.GetHistoryEnabled())
	assert.Equal(t, 7, c.History.RetentionDays)
	assert.Equal(t, "https://staging.example.com", c.Environments["staging"]["baseUrl"])
	assert.True(t, c.GetFollowRedirects())
	assert.False(t, c.IsDefault())
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout": 1000, "validateSSL": false}`), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, c.Timeout)
	assert.False(t, c.GetValidateSSL())
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [nope"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "parsing config")

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	c, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, c.IsDefault())
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"Accept": "application/json"}
	base.Environments = map[string]map[string]string{"dev": {"a": "1"}}

	merged := base.Merge(&Config{
		Timeout:       5000,
		Bail:          BoolPtr(true),
		Headers:       map[string]string{"X-Trace": "1"},
		ScriptTimeout: 100,
		Log:           LogConfig{Level: "debug"},
		History:       HistoryConfig{Enabled: BoolPtr(true)},
		Environments:  map[string]map[string]string{"prod": {"a": "2"}},
	})

	assert.Equal(t, 5000, merged.Timeout)
	assert.True(t, merged.GetBail())
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Trace": "1"}, merged.Headers)
	assert.Equal(t, 100, merged.ScriptTimeout)
	assert.Equal(t, "debug", merged.Log.Level)
	assert.Equal(t, "stderr", merged.Log.Output)
	assert.True(t, merged.GetHistoryEnabled())
	assert.Len(t, merged.Environments, 2)

	assert.Len(t, base.Headers, 1, "merge leaves the receiver untouched")
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			c.ScriptTimeout = 42
			path := filepath.Join(dir, name)
			require.NoError(t, c.SaveConfig(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, 42, loaded.ScriptTimeout)
		})
	}
}
