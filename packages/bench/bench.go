package bench

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Target is a request the benchmark draws from.
type Target struct {
	Name   string
	Config *courier.Config
	Weight int
	Think  time.Duration // overrides Options.Think in VU mode
}

// ParseTarget reads "[weight*]METHOD url" or a bare url, for example
// "3*POST /orders".
func ParseTarget(spec string) (*Target, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty target")
	}
	t := &Target{Weight: 1}
	if w, rest, ok := strings.Cut(spec, "*"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(w))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid weight %q", w)
		}
		t.Weight = n
		spec = strings.TrimSpace(rest)
	}
	method, url := courier.MethodGet, spec
	if m, rest, ok := strings.Cut(spec, " "); ok {
		method, url = strings.ToLower(m), strings.TrimSpace(rest)
	}
	t.Config = &courier.Config{Method: method, URL: url}
	t.Name = strings.ToUpper(method) + " " + url
	return t, nil
}

// Result is the outcome of Run.
type Result struct {
	Summary *Summary
	Checks  []Check
}

// Passed reports whether every threshold held.
func (r *Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Runner drives load through a courier client, so interceptors, auth and
// metrics installed on the client apply to every benchmark request.
type Runner struct {
	client   *courier.Client
	opts     *Options
	targets  []*Target
	setup    []*courier.Config
	teardown []*courier.Config
	rec      *Recorder
	reporter *Reporter
	logger   *slog.Logger
	tick     time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) { r.reporter = reporter }
}

// WithSetup adds requests sent once, in order, before measuring starts.
func WithSetup(cfgs ...*courier.Config) RunnerOption {
	return func(r *Runner) { r.setup = append(r.setup, cfgs...) }
}

// WithTeardown adds requests sent once after measuring ends.
func WithTeardown(cfgs ...*courier.Config) RunnerOption {
	return func(r *Runner) { r.teardown = append(r.teardown, cfgs...) }
}

func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner. A nil client means courier.NewClient().
func NewRunner(client *courier.Client, opts *Options, targets []*Target, options ...RunnerOption) *Runner {
	if client == nil {
		client = courier.NewClient()
	}
	r := &Runner{
		client:  client,
		opts:    opts,
		targets: targets,
		rec:     NewRecorder(),
		logger:  slog.Default(),
		tick:    500 * time.Millisecond,
	}
	for _, o := range options {
		o(r)
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	for i, t := range r.targets {
		if t.Name == "" {
			t.Name = fmt.Sprintf("target-%d", i+1)
		}
	}
	return r
}

// Run executes setup, the measured window and teardown. Cancelling ctx ends
// the window early and still yields a result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if len(r.targets) == 0 {
		return nil, fmt.Errorf("no targets")
	}

	for i, cfg := range r.setup {
		if _, err := r.client.Do(ctx, cfg.Clone()); err != nil {
			return nil, fmt.Errorf("setup request %d: %w", i+1, err)
		}
	}

	r.reporter.Header(r.opts, r.targets)
	sched := NewScheduler(r.opts, r.targets)

	window, cancel := context.WithTimeout(ctx, r.opts.Duration)
	defer cancel()

	r.rec.Start()
	done := make(chan struct{})
	progressed := make(chan struct{})
	go r.progress(done, progressed)

	if r.opts.Mode == ModeVU {
		r.runUsers(window, sched)
	} else {
		r.runArrivals(window, sched)
	}

	r.rec.Stop()
	close(done)
	<-progressed
	r.reporter.ClearProgress()

	for i, cfg := range r.teardown {
		if _, err := r.client.Do(context.WithoutCancel(ctx), cfg.Clone()); err != nil {
			r.reporter.Error("teardown request %d: %v", i+1, err)
		}
	}

	summary := r.rec.Summary()
	result := &Result{Summary: summary, Checks: summary.Evaluate(r.opts.Thresholds)}
	r.reporter.Summary(summary, result.Checks)
	r.logger.Debug("bench finished",
		"requests", summary.Total,
		"failed", summary.Failed,
		"rps", summary.RPS,
	)
	return result, nil
}

// Summary exposes the live aggregates, for example to a caller polling
// from another goroutine.
func (r *Runner) Summary() *Summary {
	return r.rec.Summary()
}

func (r *Runner) runArrivals(ctx context.Context, sched *Scheduler) {
	var wg sync.WaitGroup
	start := time.Now()
	for ctx.Err() == nil {
		if r.opts.RampUp > 0 {
			sched.SetRate(sched.RateAt(time.Since(start)))
		}
		if err := sched.Wait(ctx); err != nil {
			break
		}
		if err := sched.Acquire(ctx); err != nil {
			break
		}
		target := sched.Pick()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sched.Release()
			r.execute(ctx, target)
		}()
	}
	wg.Wait()
}

func (r *Runner) runUsers(ctx context.Context, sched *Scheduler) {
	pool := NewPool(sched, r.opts.Think, r.rec, r.execute)
	start := time.Now()
	pool.Start(ctx, sched.VUsAt(0))

	if r.opts.RampUp > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
	ramp:
		for {
			select {
			case <-ctx.Done():
				break ramp
			case <-ticker.C:
				pool.Scale(sched.VUsAt(time.Since(start)))
			}
		}
	}
	<-ctx.Done()
	pool.Stop()
}

// execute sends one request and records how it settled. A request cut off
// by the end of the window counts as a timeout.
func (r *Runner) execute(ctx context.Context, t *Target) {
	start := time.Now()
	resp, err := r.client.Do(ctx, t.Config.Clone())
	o := Outcome{Target: t.Name, Duration: time.Since(start)}

	switch {
	case err == nil:
		o.Status = resp.Status
	case ctx.Err() != nil:
		o.Timeout = true
	default:
		o.Failed = true
		if e, ok := courier.AsError(err); ok && e.Response != nil {
			o.Status = e.Response.Status
		}
	}
	r.rec.Record(o)
}

func (r *Runner) progress(done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.rec.Summary(), r.opts.Duration)
		}
	}
}
