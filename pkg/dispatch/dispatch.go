// Package dispatch abstracts "run this on a designated goroutine" for
// components whose one-time setup must happen on a single execution
// context while callers block for the result.
package dispatch

import (
	"errors"
	"sync"
)

var ErrDispatcherClosed = errors.New("dispatch: dispatcher closed")

// Dispatcher runs a function on its own execution context. RunSync blocks
// the caller until the function returns and reports the function's error.
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	RunSync(fn func() error) error
}

// Sync runs the function inline on the calling goroutine. Intended for
// tests and single-threaded tools where no affinity constraint exists.
type Sync struct{}

func (Sync) RunSync(fn func() error) error { return fn() }

// Serial owns a single long-lived goroutine and executes submitted
// functions on it in submission order.
type Serial struct {
	jobs      chan serialJob
	done      chan struct{}
	closeOnce sync.Once
}

type serialJob struct {
	fn   func() error
	errc chan error
}

// NewSerial starts the dispatcher goroutine.
func NewSerial() *Serial {
	s := &Serial{
		jobs: make(chan serialJob),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Serial) loop() {
	for {
		select {
		case job := <-s.jobs:
			job.errc <- job.fn()
		case <-s.done:
			return
		}
	}
}

// RunSync submits fn and blocks until it has run. Returns
// ErrDispatcherClosed if the dispatcher has been closed.
func (s *Serial) RunSync(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.jobs <- serialJob{fn: fn, errc: errc}:
		return <-errc
	case <-s.done:
		return ErrDispatcherClosed
	}
}

// Close stops the dispatcher goroutine. Functions already handed to the
// goroutine complete; later RunSync calls fail.
func (s *Serial) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
