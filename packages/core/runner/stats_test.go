package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScriptStats_Record(t *testing.T) {
	tests := []struct {
		name    string
		runs    []time.Duration
		wantMax time.Duration
	}{
		{"zero duration", []time.Duration{0}, time.Microsecond},
		{"within range", []time.Duration{5 * time.Millisecond}, 5 * time.Millisecond},
		{"beyond range is clamped", []time.Duration{2 * time.Minute}, time.Minute},
		{"mixed", []time.Duration{time.Millisecond, 10 * time.Minute, 3 * time.Second}, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScriptStats()
			for _, d := range tt.runs {
				s.Record(d, false)
			}
			summary := s.Summary()
			assert.Equal(t, int64(len(tt.runs)), summary.Runs)
			assert.InEpsilon(t, float64(tt.wantMax), float64(summary.Max), 0.01)
		})
	}
}

func TestScriptStats_FailuresAndReset(t *testing.T) {
	s := NewScriptStats()
	s.Record(time.Millisecond, true)
	s.Record(90*time.Second, true)
	s.Record(time.Millisecond, false)

	summary := s.Summary()
	assert.Equal(t, int64(3), summary.Runs)
	assert.Equal(t, int64(2), summary.Failures)

	s.Reset()
	summary = s.Summary()
	assert.Zero(t, summary.Runs)
	assert.Zero(t, summary.Failures)
}
