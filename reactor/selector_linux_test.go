//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor_test

import (
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/reactor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newSystemDispatcher(t *testing.T, timeout time.Duration) *reactor.Dispatcher {
	t.Helper()
	d, err := reactor.New(reactor.Config{Timeout: timeout}, reactor.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestSystemDispatcher_TimeoutTicks(t *testing.T) {
	d := newSystemDispatcher(t, 100*time.Millisecond)
	var ticks []time.Time
	var n atomic.Int32
	stamps := make(chan time.Time, 16)
	d.SetExceptionHandler(api.ExceptionTimeout, func(any) {
		n.Add(1)
		select {
		case stamps <- time.Now():
		default:
		}
	}, nil)
	for len(ticks) < 3 {
		select {
		case ts := <-stamps:
			ticks = append(ticks, ts)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d timeout callbacks", len(ticks))
		}
	}
	for i := 1; i < len(ticks); i++ {
		gap := ticks[i].Sub(ticks[i-1])
		assert.GreaterOrEqual(t, gap, 80*time.Millisecond)
		assert.Less(t, gap, time.Second)
	}

	require.NoError(t, d.Close())
	after := n.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, after, n.Load())
}

func TestSystemDispatcher_ReceiveThenPeerClose(t *testing.T) {
	d := newSystemDispatcher(t, time.Second)
	local, peer := socketPair(t)

	got := make(chan string, 4)
	closed := make(chan int, 1)
	require.NoError(t, d.Add(local, api.EventReceive, func(fd int, _ any) {
		buf := make([]byte, 64)
		n, err := unix.Read(fd, buf)
		if err == nil {
			got <- string(buf[:n])
		}
	}, nil))
	require.NoError(t, d.Add(local, api.EventClose, func(fd int, _ any) { closed <- fd }, nil))

	_, err := unix.Write(peer, []byte("hello"))
	require.NoError(t, err)
	select {
	case s := <-got:
		assert.Equal(t, "hello", s)
	case <-time.After(2 * time.Second):
		t.Fatal("receive handler not invoked")
	}

	require.NoError(t, unix.Shutdown(peer, unix.SHUT_WR))
	select {
	case fd := <-closed:
		assert.Equal(t, local, fd)
	case <-time.After(2 * time.Second):
		t.Fatal("close handler not invoked")
	}
	assert.Eventually(t, func() bool { return d.Len() == 0 }, time.Second, time.Millisecond)
}

func TestSystemDispatcher_AcceptOnListener(t *testing.T) {
	d := newSystemDispatcher(t, time.Second)

	lfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(lfd) })
	require.NoError(t, unix.Bind(lfd, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}))
	require.NoError(t, unix.Listen(lfd, 8))
	sa, err := unix.Getsockname(lfd)
	require.NoError(t, err)
	port := sa.(*unix.SockaddrInet4).Port

	accepted := make(chan struct{}, 1)
	require.NoError(t, d.Add(lfd, api.EventAccept, func(fd int, _ any) {
		nfd, _, err := unix.Accept(fd)
		if err == nil {
			_ = unix.Close(nfd)
			accepted <- struct{}{}
		}
	}, nil))
	require.NoError(t, d.Add(lfd, api.EventClose, func(int, any) { t.Error("listener classified as closed") }, nil))

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept handler not invoked")
	}
	assert.Equal(t, 2, d.Len())
}

func TestSystemSelector_WakeInterruptsSelect(t *testing.T) {
	sel, err := reactor.NewSelector()
	require.NoError(t, err)
	defer sel.Close()

	errc := make(chan error, 1)
	go func() {
		var r, w reactor.FDSet
		_, err := sel.Select(1, &r, &w, time.Hour)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sel.Wake())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, reactor.ErrWakeup)
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not interrupt Select")
	}

	require.NoError(t, sel.Close())
	assert.ErrorIs(t, sel.Wake(), api.ErrClosed)
}

func TestSelector_AvailableCountsPendingBytes(t *testing.T) {
	sel, err := reactor.NewSelector()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sel.Close() })
	local, peer := socketPair(t)

	n, err := sel.Available(local)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = unix.Write(peer, []byte("hello"))
	require.NoError(t, err)
	n, err = sel.Available(local)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
