package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderSummary(t *testing.T) {
	rec := NewRecorder()
	rec.Start()
	for i := 1; i <= 100; i++ {
		rec.Record(Outcome{Target: "a", Status: 200, Duration: time.Duration(i) * time.Millisecond})
	}
	rec.Record(Outcome{Target: "b", Status: 500, Duration: time.Millisecond, Failed: true})
	rec.Record(Outcome{Target: "b", Timeout: true})
	rec.Stop()

	s := rec.Summary()

	assert.Equal(t, int64(102), s.Total)
	assert.Equal(t, int64(100), s.Succeeded)
	assert.Equal(t, int64(2), s.Failed)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.InDelta(t, 2.0/102, s.ErrorRate, 1e-9)
	assert.Equal(t, map[int]int64{200: 100, 500: 1}, s.Statuses)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.Latency.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Latency.Max), float64(time.Millisecond))
	assert.Equal(t, time.Millisecond, s.Latency.Min)

	require.Len(t, s.Targets, 2)
	assert.Equal(t, "a", s.Targets[0].Name)
	assert.Equal(t, int64(100), s.Targets[0].Total)
	assert.Equal(t, "b", s.Targets[1].Name)
	assert.Equal(t, int64(2), s.Targets[1].Failed)
}

func TestRecorderEmpty(t *testing.T) {
	s := NewRecorder().Summary()

	assert.Zero(t, s.Total)
	assert.Zero(t, s.RPS)
	assert.Zero(t, s.ErrorRate)
	assert.Equal(t, Latency{}, s.Latency)
}

func TestSummaryEvaluate(t *testing.T) {
	s := &Summary{
		RPS:       40,
		ErrorRate: 0.02,
		Latency:   Latency{P50: 10 * time.Millisecond, P95: 80 * time.Millisecond, Max: time.Second},
	}

	checks := s.Evaluate(Thresholds{
		P50:       20 * time.Millisecond,
		P95:       50 * time.Millisecond,
		ErrorRate: 0.05,
		MinRPS:    50,
	})

	require.Len(t, checks, 4)
	byName := map[string]Check{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	assert.True(t, byName["p50"].Passed)
	assert.False(t, byName["p95"].Passed)
	assert.Equal(t, "80ms", byName["p95"].Actual)
	assert.True(t, byName["error rate"].Passed)
	assert.Equal(t, "2%", byName["error rate"].Actual)
	assert.False(t, byName["rps"].Passed)
	assert.Equal(t, ">= 50", byName["rps"].Limit)

	assert.Empty(t, s.Evaluate(Thresholds{}))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "999", formatCount(999))
	assert.Equal(t, "1,000", formatCount(1000))
	assert.Equal(t, "1,234,567", formatCount(1234567))
	assert.Equal(t, "-12,345", formatCount(-12345))
}
