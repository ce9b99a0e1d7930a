package sandbox

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/assertions"
)

// Level is the console method a guest called.
type Level int

const (
	LevelLog Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelDebug
	LevelTrace
	LevelAssert
	LevelTable
)

var levelNames = [...]string{"log", "info", "warn", "error", "debug", "trace", "assert", "table"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// Levels returns every console level in declaration order.
func Levels() []Level {
	out := make([]Level, len(levelNames))
	for i := range levelNames {
		out[i] = Level(i)
	}
	return out
}

// Undefined stands in for a guest undefined value in console arguments.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }

// ConsoleEntry is one console call. Args keep the exported guest values and
// are only rendered by Message.
type ConsoleEntry struct {
	Level Level
	Args  []any
	Time  time.Time
}

// Message renders the arguments space separated, structured values as JSON.
func (e ConsoleEntry) Message() string {
	parts := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		if a == nil {
			parts = append(parts, "null")
			continue
		}
		parts = append(parts, assertions.Stringify(a))
	}
	msg := strings.Join(parts, " ")
	if e.Level == LevelAssert {
		if msg == "" {
			return "Assertion failed"
		}
		return "Assertion failed: " + msg
	}
	return msg
}

// ConsoleSink collects console entries for one run.
type ConsoleSink struct {
	entries []ConsoleEntry
}

// NewConsoleSink returns an empty sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Emit records one entry at level.
func (s *ConsoleSink) Emit(level Level, args ...any) {
	s.entries = append(s.entries, ConsoleEntry{
		Level: level,
		Args:  args,
		Time:  time.Now(),
	})
}

// Assert records an assert entry only when cond is false.
func (s *ConsoleSink) Assert(cond bool, args ...any) {
	if cond {
		return
	}
	s.Emit(LevelAssert, args...)
}

// Entries returns a copy of the collected entries.
func (s *ConsoleSink) Entries() []ConsoleEntry {
	out := make([]ConsoleEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of collected entries.
func (s *ConsoleSink) Len() int {
	return len(s.entries)
}

// Flush hands every entry to l in order.
func (s *ConsoleSink) Flush(l ConsoleLogger) {
	if l == nil {
		return
	}
	for _, e := range s.entries {
		l.LogConsole(e)
	}
}

// ConsoleLogger receives flushed console entries.
type ConsoleLogger interface {
	LogConsole(entry ConsoleEntry)
}

// ConsoleLoggerFunc adapts a function to ConsoleLogger.
type ConsoleLoggerFunc func(entry ConsoleEntry)

func (f ConsoleLoggerFunc) LogConsole(entry ConsoleEntry) {
	f(entry)
}

type zapConsoleLogger struct {
	log *zap.Logger
}

// NewZapConsoleLogger writes console entries to l, mapping guest levels onto
// zap levels.
func NewZapConsoleLogger(l *zap.Logger) ConsoleLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapConsoleLogger{log: l}
}

func (z *zapConsoleLogger) LogConsole(e ConsoleEntry) {
	fields := []zap.Field{
		zap.String("console", e.Level.String()),
		zap.Time("at", e.Time),
	}
	msg := e.Message()
	switch e.Level {
	case LevelWarn:
		z.log.Warn(msg, fields...)
	case LevelError, LevelAssert:
		z.log.Error(msg, fields...)
	case LevelDebug, LevelTrace:
		z.log.Debug(msg, fields...)
	default:
		z.log.Info(msg, fields...)
	}
}
