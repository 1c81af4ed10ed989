package sink

import (
	"errors"
	"sync"
)

// errNilNotifier marks a delivery skipped because an active subscription
// carries a nil notifier. The sink logs it and moves on; it is never
// returned to callers.
var errNilNotifier = errors.New("sink: nil notifier on active subscription")

// Subscription is the handle returned by Sink.Subscribe. Closing it stops
// future notifications; an in-flight delivery holding the subscription's
// lock completes before a concurrent Close takes effect.
type Subscription struct {
	mu       sync.Mutex
	notifier Notifier
	closed   bool
}

func newSubscription(n Notifier) *Subscription {
	return &Subscription{notifier: n}
}

// Close marks the subscription closed and drops the notifier reference.
// Idempotent and safe to call concurrently with delivery.
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.notifier = nil
	return nil
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// deliver invokes fn on the subscription's notifier under its lock.
// A closed subscription is skipped without error.
func (s *Subscription) deliver(fn func(Notifier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.notifier == nil {
		return errNilNotifier
	}
	return fn(s.notifier)
}
