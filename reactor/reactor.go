// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness boundary of the event dispatcher: descriptor sets and the
// Selector interface the polling loop blocks in.

package reactor

import (
	"errors"
	"math/bits"
	"time"
)

// FDSetSize bounds the descriptors a Dispatcher can watch, matching FD_SETSIZE.
const FDSetSize = 1024

const wordBits = bits.UintSize

var (
	// ErrWakeup is returned by Selector.Select when Wake interrupted the wait.
	ErrWakeup = errors.New("reactor: selector woken")
	// ErrInterrupted is returned by Selector.Select when a signal interrupted the wait.
	ErrInterrupted = errors.New("reactor: select interrupted")
)

// FDSet is a fixed-size descriptor bitmap, independent of the platform fd_set layout.
type FDSet struct {
	words [FDSetSize / wordBits]uint
}

func (s *FDSet) Set(fd int) {
	if fd >= 0 && fd < FDSetSize {
		s.words[fd/wordBits] |= 1 << (uint(fd) % wordBits)
	}
}

func (s *FDSet) Clear(fd int) {
	if fd >= 0 && fd < FDSetSize {
		s.words[fd/wordBits] &^= 1 << (uint(fd) % wordBits)
	}
}

func (s *FDSet) IsSet(fd int) bool {
	if fd < 0 || fd >= FDSetSize {
		return false
	}
	return s.words[fd/wordBits]&(1<<(uint(fd)%wordBits)) != 0
}

// Zero clears every descriptor.
func (s *FDSet) Zero() { *s = FDSet{} }

// Count returns the number of descriptors set.
func (s *FDSet) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount(w)
	}
	return n
}

// Selector is the dispatcher's sole I/O dependency.
//
// Select blocks until a descriptor below nfd in r or w is ready, the timeout
// elapses or Wake is called. On return r and w hold only the ready
// descriptors. A timeout yields (0, nil). A zero timeout polls without
// blocking.
type Selector interface {
	Select(nfd int, r, w *FDSet, timeout time.Duration) (int, error)
	// Available reports how many bytes can be read from fd without blocking.
	Available(fd int) (int, error)
	// Wake makes a concurrent or the next Select return ErrWakeup.
	Wake() error
	Close() error
}

// Config holds dispatcher tunables.
type Config struct {
	// Timeout bounds each poll cycle. Negative values are clamped to zero.
	Timeout time.Duration
	// WatchWrite passes the write-interest set to the selector. Sockets are
	// almost always writable, so this is off by default.
	WatchWrite bool
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{Timeout: time.Second}
}
