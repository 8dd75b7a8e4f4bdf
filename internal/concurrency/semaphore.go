// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Counting semaphore with context-aware waits.

package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/momentics/hioload-mux/api"
)

// Semaphore is a counting semaphore. Post never blocks; Wait blocks until
// the count is positive. Each Post releases exactly one Wait.
type Semaphore struct {
	mu        sync.Mutex
	count     int
	notify    chan struct{} // closed and replaced on every Post
	destroyed bool
}

var _ api.Semaphore = (*Semaphore)(nil)

// NewSemaphore creates a semaphore with the given initial count.
func NewSemaphore(initial int) *Semaphore {
	if initial < 0 {
		initial = 0
	}
	return &Semaphore{count: initial, notify: make(chan struct{})}
}

// Wait blocks until the count can be decremented.
func (s *Semaphore) Wait() error {
	return s.WaitContext(context.Background())
}

// WaitContext is Wait bounded by ctx.
func (s *Semaphore) WaitContext(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return ErrSemaphoreDestroyed
		}
		if s.count > 0 {
			s.count--
			s.mu.Unlock()
			return nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TimedWait is Wait bounded by d; it returns ErrSemaphoreTimeout on expiry.
func (s *Semaphore) TimedWait(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := s.WaitContext(ctx)
	if err == context.DeadlineExceeded {
		return ErrSemaphoreTimeout
	}
	return err
}

// Post increments the count and wakes waiters.
func (s *Semaphore) Post() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.count++
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
}

// Value returns the current count.
func (s *Semaphore) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Destroy releases every waiter with ErrSemaphoreDestroyed.
func (s *Semaphore) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	close(s.notify)
}
