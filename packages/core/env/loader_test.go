package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(map[string]map[string]string{
		"dev":     {"baseUrl": "http://localhost:8080", "user": "dev"},
		"staging": {"baseUrl": "https://staging.example.com"},
	})
}

func TestManager_Use(t *testing.T) {
	m := testManager()
	assert.Equal(t, "", m.ActiveName())
	_, ok := m.VariableValue("baseUrl")
	assert.False(t, ok)

	require.NoError(t, m.Use("staging"))
	assert.Equal(t, "staging", m.ActiveName())
	v, ok := m.VariableValue("baseUrl")
	assert.True(t, ok)
	assert.Equal(t, "https://staging.example.com", v)

	err := m.Use("prod")
	assert.ErrorContains(t, err, `unknown environment "prod" (available: dev, staging)`)
	assert.Equal(t, "staging", m.ActiveName())

	require.NoError(t, m.Use(""))
	assert.Equal(t, "", m.ActiveName())
}

func TestManager_OverlayWins(t *testing.T) {
	m := testManager()
	require.NoError(t, m.Use("dev"))
	m.Overlay(map[string]string{"user": "override", "secret": "s3"})

	assert.Equal(t, map[string]string{
		"baseUrl": "http://localhost:8080",
		"user":    "override",
		"secret":  "s3",
	}, m.Variables())
}

func TestManager_LoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("API_KEY=k1\n"), 0644))

	m := testManager()
	require.NoError(t, m.LoadDotEnv(path))
	v, ok := m.VariableValue("API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "k1", v)

	assert.Error(t, m.LoadDotEnv(filepath.Join(t.TempDir(), "missing")))
}

func TestManager_VariablesIsCopy(t *testing.T) {
	m := testManager()
	require.NoError(t, m.Use("dev"))
	vars := m.Variables()
	vars["user"] = "changed"

	v, _ := m.VariableValue("user")
	assert.Equal(t, "dev", v)
}

func TestManager_ResolveVariables(t *testing.T) {
	m := testManager()
	require.NoError(t, m.Use("dev"))
	assert.Equal(t, "http://localhost:8080/users/{{id}}", m.ResolveVariables("{{baseUrl}}/users/{{id}}"))
	assert.Equal(t, []string{"dev", "staging"}, m.Names())
	assert.True(t, m.Has("dev"))
}

func TestMergeEnvironments(t *testing.T) {
	merged := MergeEnvironments(
		map[string]map[string]string{"dev": {"a": "1", "b": "1"}},
		map[string]map[string]string{"dev": {"b": "2"}, "prod": {"a": "3"}},
	)
	assert.Equal(t, map[string]map[string]string{
		"dev":  {"a": "1", "b": "2"},
		"prod": {"a": "3"},
	}, merged)
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv("HITSCRIPT_VAR_token", "abc")
	vars := LoadSystemEnv("HITSCRIPT_VAR_")
	assert.Equal(t, "abc", vars["token"])
}
