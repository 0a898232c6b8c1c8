package cancel

import "sync"

// Listener is notified once with the reason when a token is cancelled.
type Listener func(reason *Cancel)

// Subscription identifies a listener registered with Token.Subscribe.
type Subscription uint64

type subscriber struct {
	id Subscription
	fn Listener
}

// Token is a cooperative cancellation handle. It moves from pending to
// cancelled exactly once; every later cancel call is a no-op.
type Token struct {
	mu        sync.Mutex
	reason    *Cancel
	listeners []subscriber
	nextID    Subscription
}

// New creates a token and hands its cancel function to executor.
func New(executor func(cancel func(message string))) *Token {
	t := &Token{}
	if executor != nil {
		executor(t.cancel)
	}
	return t
}

func (t *Token) cancel(message string) {
	t.mu.Lock()
	if t.reason != nil {
		t.mu.Unlock()
		return
	}
	reason := &Cancel{Message: message}
	t.reason = reason
	listeners := t.listeners
	t.listeners = nil
	t.mu.Unlock()

	for _, l := range listeners {
		l.fn(reason)
	}
}

// Reason returns the cancellation reason, or nil while the token is pending.
func (t *Token) Reason() *Cancel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Err returns the reason as an error once cancelled, and nil before.
func (t *Token) Err() error {
	if r := t.Reason(); r != nil {
		return r
	}
	return nil
}

// Subscribe registers fn. If the token is already cancelled fn runs
// immediately and the returned Subscription is zero.
func (t *Token) Subscribe(fn Listener) Subscription {
	t.mu.Lock()
	if t.reason != nil {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return 0
	}
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, subscriber{id: id, fn: fn})
	t.mu.Unlock()
	return id
}

// Unsubscribe removes a listener. Unknown or zero ids are ignored.
func (t *Token) Unsubscribe(id Subscription) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.listeners {
		if l.id == id {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

func (t *Token) listenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

// Source pairs a token with the function that cancels it, so the cancel
// side can be held apart from the token passed into a request.
type Source struct {
	Token  *Token
	Cancel func(message string)
}

// NewSource returns a fresh token and its cancel function.
func NewSource() Source {
	var fn func(string)
	tok := New(func(c func(string)) { fn = c })
	return Source{Token: tok, Cancel: fn}
}
