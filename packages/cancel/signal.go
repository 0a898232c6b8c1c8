package cancel

import (
	"context"
	"sync"
)

// Signal is an abort flag that can be polled and observed. It is the
// counterpart of Token for callers that already own an abort mechanism.
type Signal interface {
	Aborted() bool
	// AddAbortListener registers fn to run when the signal aborts, or runs
	// it at once if it already has, and returns a function that removes it.
	AddAbortListener(fn func()) (remove func())
}

// AbortSignal is the Signal handed out by a Controller.
type AbortSignal struct {
	mu        sync.Mutex
	aborted   bool
	listeners map[uint64]func()
	order     []uint64
	nextID    uint64
}

// Aborted reports whether the owning controller has aborted.
func (s *AbortSignal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// AddAbortListener registers fn. If the signal has already aborted fn runs
// immediately and the returned removal does nothing.
func (s *AbortSignal) AddAbortListener(fn func()) func() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		fn()
		return func() {}
	}
	if s.listeners == nil {
		s.listeners = make(map[uint64]func())
	}
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *AbortSignal) abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	var fns []func()
	for _, id := range s.order {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.listeners = nil
	s.order = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Controller owns an AbortSignal and is the only way to abort it.
type Controller struct {
	signal *AbortSignal
}

// NewController returns a controller with a fresh signal.
func NewController() *Controller {
	return &Controller{signal: &AbortSignal{}}
}

// Signal returns the controller's signal.
func (c *Controller) Signal() *AbortSignal {
	return c.signal
}

// Abort aborts the signal. Repeated calls do nothing.
func (c *Controller) Abort() {
	c.signal.abort()
}

type contextSignal struct {
	ctx context.Context
}

// ContextSignal adapts a context so its cancellation acts as an abort.
func ContextSignal(ctx context.Context) Signal {
	return contextSignal{ctx: ctx}
}

func (s contextSignal) Aborted() bool {
	return s.ctx.Err() != nil
}

func (s contextSignal) AddAbortListener(fn func()) func() {
	stop := context.AfterFunc(s.ctx, fn)
	return func() { stop() }
}
