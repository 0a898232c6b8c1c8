package bench

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Scheduler paces arrivals, bounds concurrency and picks weighted targets.
type Scheduler struct {
	opts    *Options
	limiter *rate.Limiter
	slots   chan struct{}

	targets []*Target
	// cumulative[i] is the summed weight of targets[:i+1].
	cumulative []int
}

// NewScheduler builds a scheduler over targets. Targets with a weight below
// one count as one.
func NewScheduler(opts *Options, targets []*Target) *Scheduler {
	s := &Scheduler{
		opts:    opts,
		slots:   make(chan struct{}, max(opts.Concurrency, 1)),
		targets: targets,
	}
	if opts.Mode == ModeRate && opts.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(s.RateAt(0)), 1)
	}
	total := 0
	for _, t := range targets {
		total += max(t.Weight, 1)
		s.cumulative = append(s.cumulative, total)
	}
	return s
}

// Pick returns a target chosen in proportion to its weight.
func (s *Scheduler) Pick() *Target {
	switch len(s.targets) {
	case 0:
		return nil
	case 1:
		return s.targets[0]
	}
	n := rand.IntN(s.cumulative[len(s.cumulative)-1])
	for i, c := range s.cumulative {
		if n < c {
			return s.targets[i]
		}
	}
	return s.targets[len(s.targets)-1]
}

// Wait blocks until the next arrival is due. It returns at once in VU mode.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// Acquire takes a concurrency slot.
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (s *Scheduler) Release() {
	<-s.slots
}

// InFlight is the number of held slots.
func (s *Scheduler) InFlight() int {
	return len(s.slots)
}

func (s *Scheduler) ramp(elapsed time.Duration) float64 {
	if s.opts.RampUp <= 0 || elapsed >= s.opts.RampUp {
		return 1
	}
	return float64(elapsed) / float64(s.opts.RampUp)
}

// RateAt is the target arrival rate after elapsed, ramping linearly.
// It never drops below one request per second so the limiter keeps ticking.
func (s *Scheduler) RateAt(elapsed time.Duration) float64 {
	return max(s.opts.Rate*s.ramp(elapsed), min(s.opts.Rate, 1))
}

// VUsAt is the target number of virtual users after elapsed.
func (s *Scheduler) VUsAt(elapsed time.Duration) int {
	return max(int(float64(s.opts.VUs)*s.ramp(elapsed)), 1)
}

// SetRate adjusts the limiter.
func (s *Scheduler) SetRate(r float64) {
	if s.limiter != nil && r > 0 {
		s.limiter.SetLimit(rate.Limit(r))
	}
}
