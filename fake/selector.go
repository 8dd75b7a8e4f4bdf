// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing the dispatcher and code built on it.
// Provides predictable, controllable readiness without touching the OS.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-mux/reactor"
)

// Step is one scripted Select outcome. Ready descriptors are intersected
// with the interest set the dispatcher passed in.
type Step struct {
	Ready []int
	Err   error
}

// Selector is a scripted reactor.Selector. With no step queued, Select
// blocks until the timeout elapses, Wake is called or a step is pushed.
type Selector struct {
	mu        sync.Mutex
	steps     []Step
	avail     map[int]int
	availErr  map[int]error
	kick      chan struct{}
	closed    bool
	selects   int
	wakes     int
	lastRead  reactor.FDSet
	lastWrite reactor.FDSet
	closeErr  error
}

var _ reactor.Selector = (*Selector)(nil)

// NewSelector creates an empty scripted selector.
func NewSelector() *Selector {
	return &Selector{
		avail:    make(map[int]int),
		availErr: make(map[int]error),
		kick:     make(chan struct{}, 1),
	}
}

// Push queues steps and releases a blocked Select.
func (s *Selector) Push(steps ...Step) {
	s.mu.Lock()
	s.steps = append(s.steps, steps...)
	s.mu.Unlock()
	s.signal()
}

// SetAvailable sets the pending byte count reported for fd.
func (s *Selector) SetAvailable(fd, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avail[fd] = n
}

// SetAvailableError makes Available fail for fd.
func (s *Selector) SetAvailableError(fd int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availErr[fd] = err
}

// SetCloseError sets the error returned by Close.
func (s *Selector) SetCloseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeErr = err
}

// Select consumes a pending wake-up before any step, so a step is always
// applied against interest sets taken after the last Add or Delete.
func (s *Selector) Select(nfd int, r, w *reactor.FDSet, timeout time.Duration) (int, error) {
	s.mu.Lock()
	s.selects++
	s.lastRead, s.lastWrite = *r, *w
	select {
	case <-s.kick:
		s.mu.Unlock()
		return 0, reactor.ErrWakeup
	default:
	}
	if len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		s.mu.Unlock()
		return apply(step, nfd, r, w)
	}
	s.mu.Unlock()

	if timeout <= 0 {
		r.Zero()
		w.Zero()
		return 0, nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.kick:
		return 0, reactor.ErrWakeup
	case <-t.C:
		r.Zero()
		w.Zero()
		return 0, nil
	}
}

func apply(step Step, nfd int, r, w *reactor.FDSet) (int, error) {
	if step.Err != nil {
		return 0, step.Err
	}
	var ready reactor.FDSet
	for _, fd := range step.Ready {
		if fd < nfd && r.IsSet(fd) {
			ready.Set(fd)
		}
	}
	*r = ready
	w.Zero()
	return ready.Count(), nil
}

func (s *Selector) Available(fd int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.availErr[fd]; err != nil {
		return 0, err
	}
	return s.avail[fd], nil
}

func (s *Selector) Wake() error {
	s.mu.Lock()
	s.wakes++
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *Selector) signal() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

// Closed reports whether Close was called.
func (s *Selector) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Selects returns the number of Select calls so far.
func (s *Selector) Selects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selects
}

// Pending returns the number of steps not yet consumed.
func (s *Selector) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// LastInterest returns the read and write sets passed to the latest Select.
func (s *Selector) LastInterest() (r, w reactor.FDSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRead, s.lastWrite
}
