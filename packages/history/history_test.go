package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_ConnectionStrings(t *testing.T) {
	dir := t.TempDir()
	for _, dsn := range []string{
		"sqlite://" + filepath.Join(dir, "a.db"),
		"sqlite:" + filepath.Join(dir, "b.db"),
		":memory:",
	} {
		t.Run(dsn, func(t *testing.T) {
			s, err := Open(dsn)
			require.NoError(t, err)
			n, err := s.Count(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			require.NoError(t, s.Close())
		})
	}
}

func TestStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	first := &Entry{
		File:       "users.hitscript.yaml",
		Collection: "users",
		Request:    "login",
		Method:     "POST",
		URL:        "http://localhost/login",
		Status:     200,
		Passed:     true,
		Duration:   120 * time.Millisecond,
		Assertions: []Assertion{{Passed: true, Message: "Status code should be 200"}},
		Body:       `{"token":"t"}`,
		CreatedAt:  base,
	}
	second := &Entry{
		Collection: "users",
		Request:    "profile",
		Method:     "GET",
		URL:        "http://localhost/me",
		Status:     401,
		Error:      "test script failed",
		CreatedAt:  base.Add(time.Second),
	}
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	entries, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "profile", entries[0].Request)

	got := entries[1]
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.Passed)
	assert.Equal(t, 120*time.Millisecond, got.Duration)
	assert.Equal(t, first.Assertions, got.Assertions)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Equal(t, `{"token":"t"}`, got.Body)

	assert.Empty(t, entries[0].Assertions)
	assert.Equal(t, "test script failed", entries[0].Error)
}

func TestStore_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	now := time.Now()

	for i, e := range []*Entry{
		{Collection: "users", Request: "a", Passed: true, CreatedAt: now.Add(-3 * time.Hour)},
		{Collection: "users", Request: "b", Passed: false, CreatedAt: now.Add(-2 * time.Hour)},
		{Collection: "orders", Request: "a", Passed: false, CreatedAt: now.Add(-time.Hour)},
	} {
		require.NoError(t, s.Save(ctx, e), "entry %d", i)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"orders/a", "users/b", "users/a"}},
		{"collection", Filter{Collection: "users"}, []string{"users/b", "users/a"}},
		{"request", Filter{Request: "a"}, []string{"orders/a", "users/a"}},
		{"failed", Filter{FailedOnly: true}, []string{"orders/a", "users/b"}},
		{"since", Filter{Since: now.Add(-90 * time.Minute)}, []string{"orders/a"}},
		{"limit", Filter{Limit: 1}, []string{"orders/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, e := range entries {
				got = append(got, e.Collection+"/"+e.Request)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	now := time.Now()

	require.NoError(t, s.Save(ctx, &Entry{Request: "old", CreatedAt: now.AddDate(0, 0, -45)}))
	require.NoError(t, s.Save(ctx, &Entry{Request: "recent", CreatedAt: now.AddDate(0, 0, -10)}))
	require.NoError(t, s.Save(ctx, &Entry{Request: "new"}))

	removed, err := s.PurgeOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = s.Purge(ctx, now.AddDate(0, 0, -5))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_TruncatesBody(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Save(ctx, &Entry{Request: "big", Body: strings.Repeat("x", MaxBodySize+10)}))

	entries, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries[0].Body, MaxBodySize)
}
