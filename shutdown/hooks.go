// File: shutdown/hooks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Explicit registry of teardown hooks, run on demand or on SIGINT/SIGTERM.

package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/momentics/hioload-mux/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Hook tears down one component.
type Hook func(ctx context.Context) error

type entry struct {
	id   uint64
	name string
	fn   Hook
}

// Hooks is an ordered set of teardown hooks with an explicit lifetime.
// Each hook runs at most once per Shutdown.
type Hooks struct {
	mu      sync.Mutex
	seq     uint64
	entries []entry
	log     zerolog.Logger

	exit func(code int)
}

var _ api.GracefulShutdown = (*Hooks)(nil)

// New creates an empty registry.
func New(logger zerolog.Logger) *Hooks {
	return &Hooks{log: logger, exit: os.Exit}
}

// Register adds fn under name; the returned func removes it again.
func (h *Hooks) Register(name string, fn Hook) (unregister func()) {
	h.mu.Lock()
	h.seq++
	id := h.seq
	h.entries = append(h.entries, entry{id: id, name: name, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, e := range h.entries {
			if e.id == id {
				h.entries = append(h.entries[:i], h.entries[i+1:]...)
				return
			}
		}
	}
}

// RegisterCloser adds c.Close as a hook.
func (h *Hooks) RegisterCloser(name string, c io.Closer) (unregister func()) {
	return h.Register(name, func(context.Context) error { return c.Close() })
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Shutdown drains the registry and runs every hook concurrently.
// All hook errors are joined.
func (h *Hooks) Shutdown() error {
	return h.Run(context.Background())
}

// Run is Shutdown bounded by ctx. Hooks run concurrently and every hook
// runs to completion: a failing hook does not cancel the context handed to
// the others. Failures are collected and returned joined.
func (h *Hooks) Run(ctx context.Context) error {
	h.mu.Lock()
	entries := h.entries
	h.entries = nil
	h.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			err := e.fn(gctx)
			if err != nil {
				h.log.Error().Err(err).Str("hook", e.name).Msg("shutdown hook failed")
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
				mu.Unlock()
			} else {
				h.log.Debug().Str("hook", e.name).Msg("shutdown hook done")
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Listen runs the hooks when SIGINT or SIGTERM arrives, then exits the
// process with status 1 if exit is set. Cancelling ctx or calling the
// returned stop func uninstalls the signal handler without running hooks.
func (h *Hooks) Listen(ctx context.Context, exit bool) (stop func()) {
	sigCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()
		select {
		case <-stopCh:
			return
		default:
		}
		if ctx.Err() != nil {
			return
		}
		// a second signal while hooks run falls back to the default handler
		cancel()
		h.log.Info().Msg("termination signal received, shutting down")
		if err := h.Run(context.Background()); err != nil {
			h.log.Error().Err(err).Msg("shutdown finished with errors")
		}
		if exit {
			h.exit(1)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			cancel()
			<-done
		})
	}
}
