package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

const progressLines = 3

// Reporter renders a run to a terminal.
type Reporter struct {
	w          io.Writer
	noColor    bool
	noProgress bool
	verbose    bool
	drawn      bool

	ok, bad, warn, accent, bold *color.Color
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) { r.w = w }
}

func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) { r.noColor = noColor }
}

// WithNoProgress disables the live progress block.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) { r.noProgress = noProgress }
}

// WithVerbose adds the per-target and per-status breakdowns to the summary.
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) { r.verbose = verbose }
}

// NewReporter writes to stdout unless WithWriter is given.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{w: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	paint := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if r.noColor {
			c.DisableColor()
		}
		return c
	}
	r.ok = paint(color.FgGreen)
	r.bad = paint(color.FgRed)
	r.warn = paint(color.FgYellow)
	r.accent = paint(color.FgCyan)
	r.bold = paint(color.Bold)
	return r
}

// Header announces the run.
func (r *Reporter) Header(opts *Options, targets []*Target) {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	r.bold.Fprintf(r.w, "\ncourier bench: %s\n", strings.Join(names, ", "))

	load := fmt.Sprintf("rate %s req/s", decimal(opts.Rate))
	if opts.Mode == ModeVU {
		load = fmt.Sprintf("%d users", opts.VUs)
	}
	parts := []string{load, "duration " + opts.Duration.String(), fmt.Sprintf("concurrency %d", opts.Concurrency)}
	if opts.RampUp > 0 {
		parts = append(parts, "ramp-up "+opts.RampUp.String())
	}
	fmt.Fprintf(r.w, "%s\n\n", strings.Join(parts, " | "))
}

// Progress redraws the live block in place.
func (r *Reporter) Progress(s *Summary, total time.Duration) {
	if r.noProgress {
		return
	}
	if r.drawn {
		fmt.Fprintf(r.w, "\033[%dA", progressLines)
	}
	r.drawn = true

	frac := min(float64(s.Elapsed)/float64(total), 1)
	const width = 30
	filled := int(frac * width)
	fmt.Fprintf(r.w, "\r\033[K[%s%s] %s / %s\n",
		strings.Repeat("=", filled), strings.Repeat(" ", width-filled),
		formatDuration(s.Elapsed), formatDuration(total))

	fmt.Fprintf(r.w, "\r\033[K%s requests, ", formatCount(s.Total))
	failures := r.ok
	if s.Failed > 0 {
		failures = r.bad
	}
	failures.Fprintf(r.w, "%s failed", formatCount(s.Failed))
	fmt.Fprintf(r.w, ", %s req/s, %d users\n", r.accent.Sprint(decimal(s.RPS)), s.Users)

	fmt.Fprintf(r.w, "\r\033[Kp50 %s  p95 %s  p99 %s  max %s\n",
		formatLatency(s.Latency.P50), formatLatency(s.Latency.P95),
		formatLatency(s.Latency.P99), formatLatency(s.Latency.Max))
}

// ClearProgress erases the live block.
func (r *Reporter) ClearProgress() {
	if r.noProgress || !r.drawn {
		return
	}
	fmt.Fprintf(r.w, "\033[%dA", progressLines)
	for i := 0; i < progressLines; i++ {
		fmt.Fprint(r.w, "\r\033[K\n")
	}
	fmt.Fprintf(r.w, "\033[%dA", progressLines)
	r.drawn = false
}

// Summary prints the final report.
func (r *Reporter) Summary(s *Summary, checks []Check) {
	r.bold.Fprintln(r.w, "SUMMARY")
	fmt.Fprintf(r.w, "  duration   %s\n", formatDuration(s.Elapsed))
	fmt.Fprintf(r.w, "  requests   %s (%s req/s)\n", formatCount(s.Total), decimal(s.RPS))
	fmt.Fprintf(r.w, "  succeeded  %s\n", r.ok.Sprint(formatCount(s.Succeeded)))
	failed := formatCount(s.Failed)
	if s.Failed > 0 {
		failed = r.bad.Sprint(failed)
	}
	fmt.Fprintf(r.w, "  failed     %s (%s)\n", failed, percent(s.ErrorRate))
	if s.Timeouts > 0 {
		fmt.Fprintf(r.w, "  timeouts   %s\n", r.warn.Sprint(formatCount(s.Timeouts)))
	}

	r.bold.Fprintln(r.w, "\nLATENCY")
	l := s.Latency
	fmt.Fprintf(r.w, "  p50 %s  p95 %s  p99 %s\n", formatLatency(l.P50), formatLatency(l.P95), formatLatency(l.P99))
	fmt.Fprintf(r.w, "  min %s  mean %s  max %s  stddev %s\n",
		formatLatency(l.Min), formatLatency(l.Mean), formatLatency(l.Max), formatLatency(l.StdDev))

	if r.verbose {
		r.breakdown(s)
	}

	if len(checks) > 0 {
		r.bold.Fprintln(r.w, "\nTHRESHOLDS")
		for _, c := range checks {
			mark := r.ok.Sprint("PASS")
			if !c.Passed {
				mark = r.bad.Sprint("FAIL")
			}
			fmt.Fprintf(r.w, "  %s %s %s (actual %s)\n", mark, c.Name, c.Limit, c.Actual)
		}
	}
	fmt.Fprintln(r.w)
}

func (r *Reporter) breakdown(s *Summary) {
	if len(s.Statuses) > 0 {
		r.bold.Fprintln(r.w, "\nSTATUS CODES")
		codes := make([]int, 0, len(s.Statuses))
		for code := range s.Statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(r.w, "  %d  %s\n", code, formatCount(s.Statuses[code]))
		}
	}
	if len(s.Targets) > 1 {
		r.bold.Fprintln(r.w, "\nTARGETS")
		for _, t := range s.Targets {
			fmt.Fprintf(r.w, "  %s: %s requests, %s failed, p50 %s p95 %s\n",
				t.Name, formatCount(t.Total), formatCount(t.Failed),
				formatLatency(t.Latency.P50), formatLatency(t.Latency.P95))
		}
	}
}

// JSON writes the summary and checks as an indented document.
func (r *Reporter) JSON(s *Summary, checks []Check) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Summary
		Checks []Check `json:"thresholds,omitempty"`
	}{s, checks})
}

// Info prints a plain line.
func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

// Error prints a highlighted line.
func (r *Reporter) Error(format string, args ...any) {
	r.bad.Fprintf(r.w, "error: "+format+"\n", args...)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

func formatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// formatCount groups digits in thousands: 1234567 -> 1,234,567.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func percent(f float64) string {
	return decimal(f*100) + "%"
}

func decimal(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
