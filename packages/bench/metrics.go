package bench

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds between 1us and one minute.
const (
	minLatency = 1
	maxLatency = int64(time.Minute / time.Microsecond)
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency, maxLatency, 3)
}

func micros(d time.Duration) int64 {
	return min(max(d.Microseconds(), minLatency), maxLatency)
}

func fromMicros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

func fromMicrosF(v float64) time.Duration {
	return time.Duration(v * float64(time.Microsecond))
}

type series struct {
	total, failed int64
	hist          *hdrhistogram.Histogram
}

// Recorder aggregates outcomes of a run. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	all      series
	timeouts int64
	statuses map[int]int64
	targets  map[string]*series

	users   atomic.Int32
	started time.Time
	stopped time.Time
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		all:      series{hist: newHistogram()},
		statuses: make(map[int]int64),
		targets:  make(map[string]*series),
	}
}

// Start marks the beginning of the measured window.
func (r *Recorder) Start() {
	r.mu.Lock()
	r.started = time.Now()
	r.mu.Unlock()
}

// Stop marks its end.
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.stopped = time.Now()
	r.mu.Unlock()
}

// Outcome is one finished request.
type Outcome struct {
	Target   string
	Status   int // zero when no response arrived
	Duration time.Duration
	Failed   bool
	Timeout  bool
}

// Record adds an outcome. Timeouts count as failures and carry no latency.
func (r *Recorder) Record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[o.Target]
	if !ok {
		t = &series{hist: newHistogram()}
		r.targets[o.Target] = t
	}
	for _, s := range []*series{&r.all, t} {
		s.total++
		if o.Failed || o.Timeout {
			s.failed++
		}
		if !o.Timeout {
			_ = s.hist.RecordValue(micros(o.Duration))
		}
	}
	if o.Timeout {
		r.timeouts++
	}
	if o.Status > 0 {
		r.statuses[o.Status]++
	}
}

func (r *Recorder) userStarted() { r.users.Add(1) }
func (r *Recorder) userStopped() { r.users.Add(-1) }

// Latency is a percentile snapshot.
type Latency struct {
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stddev"`
}

func latencyOf(h *hdrhistogram.Histogram) Latency {
	if h.TotalCount() == 0 {
		return Latency{}
	}
	return Latency{
		P50:    fromMicros(h.ValueAtQuantile(50)),
		P95:    fromMicros(h.ValueAtQuantile(95)),
		P99:    fromMicros(h.ValueAtQuantile(99)),
		Min:    fromMicros(h.Min()),
		Max:    fromMicros(h.Max()),
		Mean:   fromMicrosF(h.Mean()),
		StdDev: fromMicrosF(h.StdDev()),
	}
}

// TargetSummary is the breakdown for one target.
type TargetSummary struct {
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Failed  int64   `json:"failed"`
	Latency Latency `json:"latency"`
}

// Summary describes a run so far, or a finished run after Stop.
type Summary struct {
	Elapsed   time.Duration   `json:"elapsed"`
	Total     int64           `json:"total"`
	Succeeded int64           `json:"succeeded"`
	Failed    int64           `json:"failed"`
	Timeouts  int64           `json:"timeouts"`
	RPS       float64         `json:"rps"`
	ErrorRate float64         `json:"errorRate"`
	Users     int32           `json:"users"`
	Latency   Latency         `json:"latency"`
	Statuses  map[int]int64   `json:"statuses,omitempty"`
	Targets   []TargetSummary `json:"targets,omitempty"`
}

// Summary computes the current aggregates.
func (r *Recorder) Summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := r.stopped
	if end.IsZero() {
		end = time.Now()
	}
	s := &Summary{
		Total:     r.all.total,
		Failed:    r.all.failed,
		Succeeded: r.all.total - r.all.failed,
		Timeouts:  r.timeouts,
		Users:     r.users.Load(),
		Latency:   latencyOf(r.all.hist),
		Statuses:  make(map[int]int64, len(r.statuses)),
	}
	if !r.started.IsZero() {
		s.Elapsed = end.Sub(r.started)
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.RPS = float64(s.Total) / secs
	}
	if s.Total > 0 {
		s.ErrorRate = float64(s.Failed) / float64(s.Total)
	}
	for code, n := range r.statuses {
		s.Statuses[code] = n
	}
	for name, t := range r.targets {
		s.Targets = append(s.Targets, TargetSummary{
			Name:    name,
			Total:   t.total,
			Failed:  t.failed,
			Latency: latencyOf(t.hist),
		})
	}
	sort.Slice(s.Targets, func(i, j int) bool { return s.Targets[i].Name < s.Targets[j].Name })
	return s
}

// Evaluate checks s against every configured limit.
func (s *Summary) Evaluate(t Thresholds) []Check {
	var checks []Check
	latency := func(name string, limit, actual time.Duration) {
		if limit > 0 {
			checks = append(checks, Check{name, actual <= limit, "<= " + limit.String(), actual.String()})
		}
	}
	latency("p50", t.P50, s.Latency.P50)
	latency("p95", t.P95, s.Latency.P95)
	latency("p99", t.P99, s.Latency.P99)
	latency("max", t.Max, s.Latency.Max)
	if t.ErrorRate > 0 {
		checks = append(checks, Check{"error rate", s.ErrorRate <= t.ErrorRate, "<= " + percent(t.ErrorRate), percent(s.ErrorRate)})
	}
	if t.MinRPS > 0 {
		checks = append(checks, Check{"rps", s.RPS >= t.MinRPS, ">= " + decimal(t.MinRPS), decimal(s.RPS)})
	}
	return checks
}
