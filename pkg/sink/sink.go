// Package sink provides a process-wide, lazily initialized fan-out point
// for diagnostic entries. Producers push entry batches into a Sink; the
// sink contributes them to its surface and forwards every notification to
// all active subscribers independently.
package sink

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/dispatch"
	"github.com/errdeck/errdeck/pkg/entry"
	"github.com/errdeck/errdeck/pkg/surface"
)

// Config identifies the sink on its surface.
type Config struct {
	// SourceID is the stable registration identifier. It doubles as the
	// source tag the sink queries for in ClearOwn. Defaults to "errdeck".
	SourceID string
	// SourceName is the display name shown by the surface. Defaults to
	// SourceID.
	SourceName string
}

// Sink is the entry fan-out point. All methods are safe for concurrent
// use. The surface source registration happens lazily on first real use,
// on the configured dispatcher, at most once per Sink.
type Sink struct {
	cfg        Config
	surface    surface.Surface
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger

	// initMu guards the one-time source registration. It is never held
	// while the subscription list is touched.
	initMu      sync.Mutex
	initialized atomic.Bool
	source      surface.Source

	subMu sync.Mutex
	subs  []*Subscription

	closed atomic.Bool
}

// A sink can itself act as a notifier, so sinks chain: a feed server can
// apply remote batches to a local sink, which fans them out again.
var _ Notifier = (*Sink)(nil)

// New creates a sink bound to the given surface and dispatcher. Both are
// required; a nil collaborator is a construction error.
func New(surf surface.Surface, d dispatch.Dispatcher, cfg Config, logger *slog.Logger) (*Sink, error) {
	if surf == nil {
		return nil, ErrNilSurface
	}
	if d == nil {
		return nil, ErrNilDispatcher
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "errdeck"
	}
	if cfg.SourceName == "" {
		cfg.SourceName = cfg.SourceID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:        cfg,
		surface:    surf,
		dispatcher: d,
		logger:     logger.With("component", "sink", "source", cfg.SourceID),
	}, nil
}

// SourceTag returns the tag producers should stamp on entries they want
// this sink to own.
func (s *Sink) SourceTag() string { return s.cfg.SourceID }

// Subscribe registers a notifier and returns its subscription handle.
// The registration is visible to every delivery that starts after
// Subscribe returns. Closed subscriptions are pruned on the way in, so
// churn does not grow the registry.
func (s *Sink) Subscribe(n Notifier) *Subscription {
	sub := newSubscription(n)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.pruneLocked()
	s.subs = append(s.subs, sub)
	return sub
}

// AddEntries contributes a batch to the surface and forwards it to every
// active subscriber. An empty batch is a no-op and never triggers the
// lazy source registration. One subscriber's failure does not stop
// delivery to the others; the first error is returned.
func (s *Sink) AddEntries(entries []entry.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if err := s.ensureInit(); err != nil {
		return err
	}
	return s.fanOut(func(n Notifier) error { return n.AddEntries(entries) })
}

// RemoveEntries withdraws a batch from the surface and from every active
// subscriber. Mirrors AddEntries: an empty batch is a no-op and never
// triggers the lazy source registration.
func (s *Sink) RemoveEntries(entries []entry.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if err := s.ensureInit(); err != nil {
		return err
	}
	return s.fanOut(func(n Notifier) error { return n.RemoveEntries(entries) })
}

// ClearOwn removes every entry carrying this sink's source tag from the
// surface and from every active subscriber. The surface, not the sink,
// is the source of truth for what is currently visible.
func (s *Sink) ClearOwn() error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if err := s.ensureInit(); err != nil {
		return err
	}
	visible, err := s.surface.VisibleEntries(s.cfg.SourceID)
	if err != nil {
		return errx.Wrap(ErrQueryVisible, err)
	}
	if len(visible) == 0 {
		return nil
	}
	return s.fanOut(func(n Notifier) error { return n.RemoveEntries(visible) })
}

// BringToFront asks the surface to present itself to the user. Surfaces
// without the Raiser capability make this a no-op, not an error.
func (s *Sink) BringToFront() error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if err := s.ensureInit(); err != nil {
		return err
	}
	if r, ok := s.surface.(surface.Raiser); ok {
		return r.RaiseWindow()
	}
	return nil
}

// Close withdraws the source registration from the surface. Further
// operations on the sink fail with ErrSinkClosed. Idempotent.
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.source != nil {
		err := s.source.Unregister()
		s.source = nil
		return err
	}
	return nil
}

// ensureInit performs the one-time surface registration with
// double-checked locking. Fast path: a lock-free initialized check. Slow
// path: take the init lock, re-check, then run the registration on the
// dispatcher while the caller blocks. The initialized flag is set last.
func (s *Sink) ensureInit() error {
	if s.initialized.Load() {
		return nil
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized.Load() {
		return nil
	}
	var src surface.Source
	err := s.dispatcher.RunSync(func() error {
		var err error
		src, err = s.surface.RegisterSource(s.cfg.SourceID, s.cfg.SourceName)
		return err
	})
	if err != nil {
		return errx.Wrap(ErrRegisterSource, err)
	}
	s.source = src
	s.initialized.Store(true)
	s.logger.Debug("source registered", "name", s.cfg.SourceName)
	return nil
}

// fanOut applies fn to the surface source and to a snapshot of the live
// subscriptions. The registry lock is released before any delivery, so a
// notifier may call back into the sink (for example to unsubscribe)
// without deadlocking; each delivery runs under that subscription's own
// lock only.
func (s *Sink) fanOut(fn func(Notifier) error) error {
	var firstErr error

	s.initMu.Lock()
	src := s.source
	s.initMu.Unlock()
	if src != nil {
		if err := fn(src); err != nil {
			s.logger.Warn("surface delivery failed", "error", err)
			firstErr = errx.Wrap(ErrDeliver, err)
		}
	}

	for _, sub := range s.liveSubscriptions() {
		err := sub.deliver(fn)
		if errors.Is(err, errNilNotifier) {
			s.logger.Warn("skipping subscription with nil notifier")
			continue
		}
		if err != nil {
			s.logger.Warn("subscriber delivery failed", "error", err)
			if firstErr == nil {
				firstErr = errx.Wrap(ErrDeliver, err)
			}
		}
	}
	return firstErr
}

// liveSubscriptions prunes closed subscriptions and returns a copy of the
// remainder. Delivery never holds the registry lock.
func (s *Sink) liveSubscriptions() []*Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.pruneLocked()
	out := make([]*Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// pruneLocked drops closed subscriptions in place. Caller holds subMu.
func (s *Sink) pruneLocked() {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if !sub.isClosed() {
			kept = append(kept, sub)
		}
	}
	for i := len(kept); i < len(s.subs); i++ {
		s.subs[i] = nil
	}
	s.subs = kept
}
