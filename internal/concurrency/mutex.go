// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-mux/api"
	"github.com/rs/zerolog"
)

// Mutex is a sync.Mutex that reports misuse to a diagnostic logger instead
// of crashing. Unlocking an unlocked Mutex is logged and ignored.
type Mutex struct {
	mu        sync.Mutex
	held      atomic.Bool
	destroyed atomic.Bool
	log       zerolog.Logger
}

var _ api.Mutex = (*Mutex)(nil)

// NewMutex creates an unlocked mutex logging to logger.
func NewMutex(logger zerolog.Logger) *Mutex {
	return &Mutex{log: logger}
}

func (m *Mutex) Lock() {
	if m.destroyed.Load() {
		m.log.Debug().Msg("lock of destroyed mutex")
	}
	m.mu.Lock()
	m.held.Store(true)
}

// TryLock acquires the mutex only if it is free.
func (m *Mutex) TryLock() bool {
	if !m.mu.TryLock() {
		return false
	}
	m.held.Store(true)
	return true
}

func (m *Mutex) Unlock() {
	if !m.held.CompareAndSwap(true, false) {
		m.log.Warn().Msg("unlock of unlocked mutex ignored")
		return
	}
	m.mu.Unlock()
}

// Destroy marks the mutex unusable. There is nothing to free.
func (m *Mutex) Destroy() {
	m.destroyed.Store(true)
}
