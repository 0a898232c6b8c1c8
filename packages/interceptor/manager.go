package interceptor

import "sync"

// Fulfilled transforms the value flowing through the chain. It may block;
// the chain waits for it before moving on.
type Fulfilled[V any] func(V) (V, error)

// Rejected handles an error from an earlier stage. Returning a nil error
// recovers with the returned value.
type Rejected[V any] func(error) (V, error)

// Options tune how a handler participates in a chain.
type Options[V any] struct {
	// Synchronous marks the handler as safe to run inline, before the
	// request is dispatched, without continuation scheduling.
	Synchronous bool
	// RunWhen excludes the handler from a call when it returns false.
	RunWhen func(V) bool
}

// Handler is one registered fulfilled/rejected pair.
type Handler[V any] struct {
	Fulfilled   Fulfilled[V]
	Rejected    Rejected[V]
	Synchronous bool
	RunWhen     func(V) bool
}

// Manager is an ordered registry of handlers. Ejected slots stay in place
// so previously returned ids remain valid.
type Manager[V any] struct {
	mu       sync.RWMutex
	handlers []*Handler[V]
}

// NewManager returns an empty registry.
func NewManager[V any]() *Manager[V] {
	return &Manager[V]{}
}

// Use appends a handler and returns its id for Eject.
func (m *Manager[V]) Use(fulfilled Fulfilled[V], rejected Rejected[V], opts ...Options[V]) int {
	h := &Handler[V]{
		Fulfilled: fulfilled,
		Rejected:  rejected,
	}
	if len(opts) > 0 {
		h.Synchronous = opts[0].Synchronous
		h.RunWhen = opts[0].RunWhen
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
	return len(m.handlers) - 1
}

// Eject removes the handler registered under id.
func (m *Manager[V]) Eject(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= 0 && id < len(m.handlers) {
		m.handlers[id] = nil
	}
}

// Clear removes every handler.
func (m *Manager[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = nil
}

// ForEach calls fn for every live handler in registration order. fn runs on
// a snapshot, so it may register or eject handlers without deadlocking.
func (m *Manager[V]) ForEach(fn func(h *Handler[V])) {
	m.mu.RLock()
	snapshot := make([]*Handler[V], len(m.handlers))
	copy(snapshot, m.handlers)
	m.mu.RUnlock()

	for _, h := range snapshot {
		if h != nil {
			fn(h)
		}
	}
}

// Len returns the number of live handlers.
func (m *Manager[V]) Len() int {
	n := 0
	m.ForEach(func(*Handler[V]) { n++ })
	return n
}
