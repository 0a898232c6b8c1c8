package bench

import (
	"context"
	"sync"
	"time"
)

// Exec performs one request against target.
type Exec func(ctx context.Context, target *Target)

// Pool runs virtual users, each looping pick, execute, think until stopped.
type Pool struct {
	sched   *Scheduler
	think   time.Duration
	rec     *Recorder
	exec    Exec
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	workers []context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates an idle pool.
func NewPool(sched *Scheduler, think time.Duration, rec *Recorder, exec Exec) *Pool {
	return &Pool{sched: sched, think: think, rec: rec, exec: exec}
}

// Start launches n users bound to ctx.
func (p *Pool) Start(ctx context.Context, n int) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.Scale(n)
}

// Scale grows or shrinks the pool to n users. Removed users finish their
// current request first.
func (p *Pool) Scale(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.workers) < n {
		ctx, cancel := context.WithCancel(p.ctx)
		p.workers = append(p.workers, cancel)
		p.wg.Add(1)
		go p.user(ctx)
	}
	for len(p.workers) > n {
		last := len(p.workers) - 1
		p.workers[last]()
		p.workers = p.workers[:last]
	}
}

// Size returns the number of users.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Stop cancels every user and waits for them to exit.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) user(ctx context.Context) {
	defer p.wg.Done()
	p.rec.userStarted()
	defer p.rec.userStopped()

	for ctx.Err() == nil {
		target := p.sched.Pick()
		if target == nil {
			return
		}
		if err := p.sched.Acquire(ctx); err != nil {
			return
		}
		p.exec(ctx, target)
		p.sched.Release()

		think := p.think
		if target.Think > 0 {
			think = target.Think
		}
		if think <= 0 {
			continue
		}
		timer := time.NewTimer(think)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
