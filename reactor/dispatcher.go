// File: reactor/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher: a (descriptor, kind) registration table served by one polling
// goroutine locked to its OS thread.
//
// Ready descriptors are classified by the number of bytes pending:
// zero means a pending connection (Accept) or a peer shutdown (Close),
// anything else is data (Receive). Handlers run synchronously on the polling
// goroutine and must not block.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/internal/concurrency"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Registration is a snapshot of one registered event.
type Registration struct {
	FD   int
	Kind api.EventKind
	Arg  any
}

type registration struct {
	fd      int
	kind    api.EventKind
	handler api.Handler
	arg     any
}

type exceptionCallback struct {
	fn  api.ExceptionHandler
	arg any
}

// Dispatcher implements api.Dispatcher on top of a Selector.
type Dispatcher struct {
	cfg     Config
	sel     Selector
	log     zerolog.Logger
	metrics api.Metrics
	unhook  func()

	mu        sync.Mutex
	regs      []*registration
	rfds      FDSet
	wfds      FDSet
	maxFD     int
	onTimeout exceptionCallback
	onError   exceptionCallback
	err       error

	thread      *concurrency.Thread
	stop        atomic.Bool
	dispatching atomic.Bool
	done        chan struct{}
	closeOnce   sync.Once
	cleanOnce   sync.Once
}

var _ api.Dispatcher = (*Dispatcher)(nil)

// New creates a dispatcher and starts its polling loop. On failure nothing
// is left running and the returned dispatcher is nil.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	o := options{cpu: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	d := &Dispatcher{
		cfg:     cfg,
		metrics: api.NopMetrics{},
		done:    make(chan struct{}),
	}
	if o.logger != nil {
		d.log = *o.logger
	} else {
		d.log = log.Logger.With().Str("component", "reactor").Logger()
	}
	if o.metrics != nil {
		d.metrics = o.metrics
	}

	d.sel = o.selector
	if d.sel == nil {
		sel, err := NewSelector()
		if err != nil {
			return nil, fmt.Errorf("reactor: create selector: %w", err)
		}
		d.sel = sel
	}

	th, err := concurrency.StartThread(d.loop, concurrency.WithOSThread(), concurrency.WithCPU(o.cpu))
	if err != nil {
		_ = d.sel.Close()
		return nil, fmt.Errorf("reactor: start polling thread: %w", err)
	}
	d.thread = th

	if o.hooks != nil {
		d.unhook = o.hooks.RegisterCloser("reactor", d)
	}
	d.log.Debug().Dur("timeout", cfg.Timeout).Bool("watch_write", cfg.WatchWrite).Msg("dispatcher started")
	return d, nil
}

// Add registers h for (fd, kind). An existing registration for the same pair
// is updated in place.
func (d *Dispatcher) Add(fd int, kind api.EventKind, h api.Handler, arg any) error {
	if h == nil || fd < 1 || fd >= FDSetSize || !kind.Valid() {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid registration").
			WithContext("fd", fd).
			WithContext("kind", kind.String())
	}
	if d.stop.Load() {
		return fmt.Errorf("reactor: add fd %d: %w", fd, api.ErrClosed)
	}

	d.mu.Lock()
	if r := d.lookup(fd, kind); r != nil {
		r.handler = h
		r.arg = arg
	} else {
		d.regs = append(d.regs, &registration{fd: fd, kind: kind, handler: h, arg: arg})
	}
	d.rfds.Set(fd)
	d.wfds.Set(fd)
	if fd > d.maxFD {
		d.maxFD = fd
	}
	d.mu.Unlock()

	d.wake()
	return nil
}

// Delete removes the (fd, kind) registration and drops fd from both interest
// sets. Deleting a pair that is not registered is not an error.
func (d *Dispatcher) Delete(fd int, kind api.EventKind) error {
	d.mu.Lock()
	removed := d.remove(fd, kind)
	if removed {
		d.rfds.Clear(fd)
		d.wfds.Clear(fd)
	}
	d.mu.Unlock()

	if removed {
		d.wake()
	}
	return nil
}

// SetExceptionHandler installs the timeout or error callback. Unknown kinds
// are ignored.
func (d *Dispatcher) SetExceptionHandler(kind api.ExceptionKind, h api.ExceptionHandler, arg any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch kind {
	case api.ExceptionTimeout:
		d.onTimeout = exceptionCallback{fn: h, arg: arg}
	case api.ExceptionError:
		d.onError = exceptionCallback{fn: h, arg: arg}
	default:
		d.log.Debug().Stringer("kind", kind).Msg("unknown exception kind ignored")
	}
}

// Registrations returns the registered events in registration order.
func (d *Dispatcher) Registrations() []Registration {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Registration, 0, len(d.regs))
	for _, r := range d.regs {
		out = append(out, Registration{FD: r.fd, Kind: r.kind, Arg: r.arg})
	}
	return out
}

// Len returns the number of registered events.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.regs)
}

// Running reports whether the polling loop is still serving events.
func (d *Dispatcher) Running() bool {
	select {
	case <-d.done:
		return false
	default:
		return !d.stop.Load()
	}
}

// Done is closed when the polling loop exits, either through Close or after
// a fatal poll error.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Err returns the poll error that terminated the loop, if any.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close stops the polling loop, waits for it and releases the registration
// table and the selector. Registered descriptors stay open.
//
// While a handler is running (including a Close issued by the handler
// itself) Close returns without waiting; the loop finishes the teardown once
// the handler returns.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.stop.Store(true)
		if d.unhook != nil {
			d.unhook()
		}
		d.wake()
		if d.dispatching.Load() {
			d.thread.Detach()
			return
		}
		_ = d.thread.Join()
		d.cleanup()
	})
	return nil
}

// Shutdown implements api.GracefulShutdown.
func (d *Dispatcher) Shutdown() error { return d.Close() }

func (d *Dispatcher) cleanup() {
	d.cleanOnce.Do(func() {
		d.mu.Lock()
		d.regs = nil
		d.rfds.Zero()
		d.wfds.Zero()
		d.maxFD = 0
		d.mu.Unlock()
		if err := d.sel.Close(); err != nil {
			d.log.Warn().Err(err).Msg("selector close failed")
		}
		d.log.Debug().Msg("dispatcher closed")
	})
}

func (d *Dispatcher) wake() {
	if err := d.sel.Wake(); err != nil && !d.stop.Load() {
		d.log.Debug().Err(err).Msg("selector wake failed")
	}
}

func (d *Dispatcher) lookup(fd int, kind api.EventKind) *registration {
	for _, r := range d.regs {
		if r.fd == fd && r.kind == kind {
			return r
		}
	}
	return nil
}

func (d *Dispatcher) remove(fd int, kind api.EventKind) bool {
	for i, r := range d.regs {
		if r.fd == fd && r.kind == kind {
			d.regs = append(d.regs[:i], d.regs[i+1:]...)
			return true
		}
	}
	return false
}

// removeFD drops every registration for fd and clears it from both sets.
func (d *Dispatcher) removeFD(fd int) int {
	kept := d.regs[:0]
	n := 0
	for _, r := range d.regs {
		if r.fd == fd {
			n++
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(d.regs); i++ {
		d.regs[i] = nil
	}
	d.regs = kept
	d.rfds.Clear(fd)
	d.wfds.Clear(fd)
	return n
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	var r, w FDSet
	for !d.stop.Load() && ctx.Err() == nil {
		d.mu.Lock()
		r = d.rfds
		if d.cfg.WatchWrite {
			w = d.wfds
		} else {
			w.Zero()
		}
		nfd := d.maxFD + 1
		d.mu.Unlock()

		n, err := d.sel.Select(nfd, &r, &w, d.cfg.Timeout)
		if d.stop.Load() {
			break
		}
		switch {
		case errors.Is(err, ErrWakeup), errors.Is(err, ErrInterrupted):
			continue
		case err != nil:
			d.fail(err)
			return
		case n == 0:
			d.metrics.PollTimeout()
			d.mu.Lock()
			cb := d.onTimeout
			d.mu.Unlock()
			d.callException(api.ExceptionTimeout, cb)
			continue
		}
		d.dispatchReady(&r)
	}

	if d.stop.Load() {
		d.cleanup()
	}
}

func (d *Dispatcher) fail(err error) {
	d.metrics.PollError()
	d.log.Error().Err(err).Msg("poll failed, dispatcher stopped")
	d.mu.Lock()
	d.err = err
	cb := d.onError
	d.mu.Unlock()
	d.callException(api.ExceptionError, cb)
}

// dispatchReady serves every ready descriptor once. Each round scans the
// table in registration order for the first registration whose descriptor
// is still in the ready snapshot.
func (d *Dispatcher) dispatchReady(ready *FDSet) {
	for !d.stop.Load() {
		d.mu.Lock()
		fd := -1
		for _, r := range d.regs {
			if ready.IsSet(r.fd) {
				fd = r.fd
				break
			}
		}
		d.mu.Unlock()
		if fd < 0 {
			return
		}
		ready.Clear(fd)

		avail, err := d.sel.Available(fd)
		if err != nil {
			d.log.Debug().Err(err).Int("fd", fd).Msg("pending byte count unavailable, treating as zero")
			avail = 0
		}

		d.mu.Lock()
		var match *registration
		if avail == 0 {
			if match = d.lookup(fd, api.EventAccept); match == nil {
				match = d.lookup(fd, api.EventClose)
			}
		} else {
			match = d.lookup(fd, api.EventReceive)
		}
		var reg registration
		if match != nil {
			reg = *match
		}
		d.mu.Unlock()

		if match == nil {
			continue
		}
		if !d.invoke(reg) {
			return
		}

		if reg.kind == api.EventClose {
			d.mu.Lock()
			n := d.removeFD(fd)
			d.mu.Unlock()
			d.log.Debug().Int("fd", fd).Int("removed", n).Msg("descriptor closed, registrations dropped")
		}
	}
}

// enter marks a callback as running. It reports false once Close has set
// the stop flag; Close reads the two flags in the opposite order, so either
// the callback is skipped or Close sees it running and does not join.
func (d *Dispatcher) enter() bool {
	d.dispatching.Store(true)
	if d.stop.Load() {
		d.dispatching.Store(false)
		return false
	}
	return true
}

func (d *Dispatcher) invoke(r registration) bool {
	if !d.enter() {
		return false
	}
	defer d.dispatching.Store(false)
	defer func() {
		if p := recover(); p != nil {
			d.log.Warn().Interface("panic", p).Int("fd", r.fd).Stringer("kind", r.kind).Msg("handler panicked")
		}
	}()
	d.metrics.EventDispatched(r.kind)
	r.handler(r.fd, r.arg)
	return true
}

func (d *Dispatcher) callException(kind api.ExceptionKind, cb exceptionCallback) {
	if cb.fn == nil || !d.enter() {
		return
	}
	defer d.dispatching.Store(false)
	defer func() {
		if p := recover(); p != nil {
			d.log.Warn().Interface("panic", p).Stringer("kind", kind).Msg("exception handler panicked")
		}
	}()
	cb.fn(cb.arg)
}
