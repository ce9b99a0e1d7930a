package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConsoleEntry_Message(t *testing.T) {
	tests := []struct {
		name  string
		entry ConsoleEntry
		want  string
	}{
		{"strings", ConsoleEntry{Level: LevelLog, Args: []any{"a", "b"}}, "a b"},
		{"null and undefined", ConsoleEntry{Level: LevelLog, Args: []any{nil, Undefined{}}}, "null undefined"},
		{"structured", ConsoleEntry{Level: LevelInfo, Args: []any{"user", map[string]any{"id": int64(1)}}}, `user {"id":1}`},
		{"numbers", ConsoleEntry{Level: LevelLog, Args: []any{int64(3), 1.5}}, "3 1.5"},
		{"assert", ConsoleEntry{Level: LevelAssert, Args: []any{"boom"}}, "Assertion failed: boom"},
		{"bare assert", ConsoleEntry{Level: LevelAssert}, "Assertion failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Message())
		})
	}
}

func TestConsoleSink_AssertOnlyRecordsFailures(t *testing.T) {
	s := NewConsoleSink()
	s.Assert(true, "never")
	s.Assert(false, "shown")

	entries := s.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, LevelAssert, entries[0].Level)
	assert.Equal(t, []any{"shown"}, entries[0].Args)
}

func TestConsoleSink_FlushPreservesOrder(t *testing.T) {
	s := NewConsoleSink()
	s.Emit(LevelLog, "one")
	s.Emit(LevelWarn, "two")
	s.Emit(LevelError, "three")

	var got []string
	s.Flush(ConsoleLoggerFunc(func(e ConsoleEntry) {
		got = append(got, e.Level.String()+":"+e.Message())
	}))

	assert.Equal(t, []string{"log:one", "warn:two", "error:three"}, got)
}

func TestZapConsoleLogger_LevelMapping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapConsoleLogger(zap.New(core))

	for _, level := range Levels() {
		l.LogConsole(ConsoleEntry{Level: level, Args: []any{level.String()}})
	}

	want := map[string]zapcore.Level{
		"log":                      zapcore.InfoLevel,
		"info":                     zapcore.InfoLevel,
		"warn":                     zapcore.WarnLevel,
		"error":                    zapcore.ErrorLevel,
		"debug":                    zapcore.DebugLevel,
		"trace":                    zapcore.DebugLevel,
		"Assertion failed: assert": zapcore.ErrorLevel,
		"table":                    zapcore.InfoLevel,
	}
	entries := logs.All()
	assert.Len(t, entries, len(want))
	for _, e := range entries {
		assert.Equal(t, want[e.Message], e.Level, e.Message)
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "table", LevelTable.String())
	assert.Equal(t, "unknown", Level(99).String())
}
