//go:build linux || darwin

// File: reactor/selector_unix.go
// Author: momentics <momentics@gmail.com>
//
// select(2) selector with a FIONREAD byte counter and a self-pipe for wake-ups.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type selectSelector struct {
	mu     sync.Mutex
	closed bool
	wakeR  int
	wakeW  int
	rset   unix.FdSet
	wset   unix.FdSet
}

// NewSelector returns the platform selector.
func NewSelector() (Selector, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("wake pipe nonblock: %w", err)
		}
	}
	if p[0] >= FDSetSize {
		unix.Close(p[0])
		unix.Close(p[1])
		return nil, fmt.Errorf("wake pipe fd %d exceeds FD_SETSIZE", p[0])
	}
	return &selectSelector{wakeR: p[0], wakeW: p[1]}, nil
}

func (s *selectSelector) Select(nfd int, r, w *FDSet, timeout time.Duration) (int, error) {
	s.rset.Zero()
	s.wset.Zero()
	for fd := 0; fd < nfd && fd < FDSetSize; fd++ {
		if r.IsSet(fd) {
			s.rset.Set(fd)
		}
		if w.IsSet(fd) {
			s.wset.Set(fd)
		}
	}
	s.rset.Set(s.wakeR)
	if s.wakeR >= nfd {
		nfd = s.wakeR + 1
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(nfd, &s.rset, &s.wset, nil, &tv)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, ErrInterrupted
		}
		return 0, fmt.Errorf("select: %w", err)
	}

	woken := s.rset.IsSet(s.wakeR)
	if woken {
		s.drain()
		n--
	}
	r.Zero()
	w.Zero()
	for fd := 0; fd < nfd && fd < FDSetSize; fd++ {
		if fd == s.wakeR {
			continue
		}
		if s.rset.IsSet(fd) {
			r.Set(fd)
		}
		if s.wset.IsSet(fd) {
			w.Set(fd)
		}
	}
	if woken && n == 0 {
		return 0, ErrWakeup
	}
	return n, nil
}

func (s *selectSelector) Available(fd int) (int, error) {
	return unix.IoctlGetInt(fd, fionread)
}

func (s *selectSelector) Wake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSelectorClosed
	}
	_, err := unix.Write(s.wakeW, []byte{1})
	if errors.Is(err, unix.EAGAIN) {
		// pipe full, a wake-up is already pending
		return nil
	}
	return err
}

func (s *selectSelector) drain() {
	var buf [64]byte
	for {
		if n, err := unix.Read(s.wakeR, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (s *selectSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(unix.Close(s.wakeR), unix.Close(s.wakeW))
}
