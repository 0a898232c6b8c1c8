package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode selects how load is generated.
type Mode int

const (
	// ModeRate issues requests at a fixed arrival rate.
	ModeRate Mode = iota
	// ModeVU runs a fixed number of virtual users in closed loops.
	ModeVU
)

func (m Mode) String() string {
	if m == ModeVU {
		return "vu"
	}
	return "rate"
}

// Options configure a benchmark run.
type Options struct {
	Mode        Mode
	Duration    time.Duration
	Rate        float64 // requests per second in ModeRate
	VUs         int     // virtual users in ModeVU
	Concurrency int     // cap on in-flight requests
	Think       time.Duration
	RampUp      time.Duration
	Thresholds  Thresholds
}

// DefaultOptions returns a 30s run at 10 req/s.
func DefaultOptions() *Options {
	return &Options{
		Mode:        ModeRate,
		Duration:    30 * time.Second,
		Rate:        10,
		VUs:         10,
		Concurrency: 100,
	}
}

// Validate reports the first inconsistent setting.
func (o *Options) Validate() error {
	switch {
	case o.Duration <= 0:
		return fmt.Errorf("duration must be positive")
	case o.Mode == ModeRate && o.Rate <= 0:
		return fmt.Errorf("rate must be positive in rate mode")
	case o.Mode == ModeVU && o.VUs <= 0:
		return fmt.Errorf("vus must be positive in vu mode")
	case o.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1")
	case o.RampUp < 0:
		return fmt.Errorf("ramp-up cannot be negative")
	case o.RampUp > o.Duration:
		return fmt.Errorf("ramp-up cannot exceed duration")
	}
	return nil
}

// Thresholds are pass/fail limits evaluated after a run. Zero disables a limit.
type Thresholds struct {
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	ErrorRate float64 // fraction, 0.01 == 1%
	MinRPS    float64
}

// Empty reports whether no limit is set.
func (t Thresholds) Empty() bool {
	return t == Thresholds{}
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a comma separated list such as
// "p95<200ms,errors<1%,rps>50".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := thresholdPattern.FindStringSubmatch(part)
		if m == nil {
			return t, fmt.Errorf("invalid threshold %q", part)
		}
		if err := t.set(strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])); err != nil {
			return t, fmt.Errorf("threshold %q: %w", part, err)
		}
	}
	return t, nil
}

func (t *Thresholds) set(metric, op, value string) error {
	upper := op == "<" || op == "<="
	switch metric {
	case "p50", "p95", "p99", "max":
		if !upper {
			return fmt.Errorf("%s must use < or <=", metric)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		switch metric {
		case "p50":
			t.P50 = d
		case "p95":
			t.P95 = d
		case "p99":
			t.P99 = d
		default:
			t.Max = d
		}
	case "errors", "error", "errorrate":
		if !upper {
			return fmt.Errorf("error rate must use < or <=")
		}
		pct := strings.HasSuffix(value, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate %q", value)
		}
		if pct {
			f /= 100
		}
		t.ErrorRate = f
	case "rps", "rate":
		if upper {
			return fmt.Errorf("rps must use > or >=")
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rps %q", value)
		}
		t.MinRPS = f
	default:
		return fmt.Errorf("unknown metric %q", metric)
	}
	return nil
}

// Check is the outcome of one threshold.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Limit  string `json:"limit"`
	Actual string `json:"actual"`
}
