package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxRunMicros is the slowest run the histogram resolves, 60s.
const maxRunMicros = 60_000_000

// ScriptStats tracks script run latency across a whole run.
type ScriptStats struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	failures  int64
}

// ScriptSummary is a snapshot of ScriptStats.
type ScriptSummary struct {
	Runs     int64         `json:"runs"`
	Failures int64         `json:"failures"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	P99      time.Duration `json:"p99"`
	Max      time.Duration `json:"max"`
	Mean     time.Duration `json:"mean"`
}

func NewScriptStats() *ScriptStats {
	return &ScriptStats{
		histogram: hdrhistogram.New(1, maxRunMicros, 3),
	}
}

// Record adds one script run.
func (s *ScriptStats) Record(d time.Duration, failed bool) {
	us := d.Microseconds()
	s.mu.Lock()
	defer s.mu.Unlock()
	// Out of range values are clamped so slow runs still count.
	us = max(1, min(us, maxRunMicros))
	_ = s.histogram.RecordValue(us)
	if failed {
		s.failures++
	}
}

func (s *ScriptStats) Summary() ScriptSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.histogram
	return ScriptSummary{
		Runs:     h.TotalCount(),
		Failures: s.failures,
		P50:      time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:      time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:      time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Max:      time.Duration(h.Max()) * time.Microsecond,
		Mean:     time.Duration(h.Mean()) * time.Microsecond,
	}
}

func (s *ScriptStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histogram.Reset()
	s.failures = 0
}
