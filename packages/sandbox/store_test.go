package sandbox

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestVariableStore_GetDistinguishesNilFromAbsent(t *testing.T) {
	s := NewVariableStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("nothing", nil)
	v, ok := s.Get("nothing")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestVariableStore_Unset(t *testing.T) {
	s := NewVariableStore()
	s.Set("token", "abc")

	assert.True(t, s.Unset("token"))
	assert.False(t, s.Unset("token"))
	assert.False(t, s.Has("token"))
}

func TestVariableStore_ToObjectIsCopy(t *testing.T) {
	s := NewVariableStore()
	s.Set("a", 1)

	snap := s.ToObject()
	snap["a"] = 2
	snap["b"] = 3

	v, _ := s.Get("a")
	assert.Equal(t, 1, v)
	assert.False(t, s.Has("b"))
}

func TestVariableStore_KeysSortedAndClear(t *testing.T) {
	s := NewVariableStore()
	s.SetAll(map[string]any{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, s.Keys())
	assert.Equal(t, 3, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestVariableStore_Concurrent(t *testing.T) {
	s := NewVariableStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := strings.Repeat("k", n+1)
			for j := 0; j < 100; j++ {
				s.Set(key, j)
				s.Get(key)
				s.ToObject()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
}

func TestVariableStore_MatchesMapModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewVariableStore()
		model := map[string]any{}
		key := rapid.StringMatching(`[a-d]{1,2}`)

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			k := key.Draw(t, "key")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				v := rapid.Int().Draw(t, "value")
				s.Set(k, v)
				model[k] = v
			case 1:
				_, had := model[k]
				if got := s.Unset(k); got != had {
					t.Fatalf("Unset(%q) = %v, want %v", k, got, had)
				}
				delete(model, k)
			case 2:
				want, wantOK := model[k]
				got, ok := s.Get(k)
				if ok != wantOK || got != want {
					t.Fatalf("Get(%q) = %v,%v want %v,%v", k, got, ok, want, wantOK)
				}
			}
		}
		if s.Len() != len(model) {
			t.Fatalf("Len() = %d, want %d", s.Len(), len(model))
		}
	})
}

func TestVariableStore_SetThenGetRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewVariableStore()
		k := rapid.String().Draw(t, "key")
		v := rapid.String().Draw(t, "value")
		s.Set(k, v)
		got, ok := s.Get(k)
		if !ok || got != v {
			t.Fatalf("Get(%q) = %v,%v after Set(%q)", k, got, ok, v)
		}
	})
}
