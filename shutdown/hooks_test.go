// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestHooks_RunAll(t *testing.T) {
	h := New(zerolog.Nop())
	var ran atomic.Int32
	h.Register("a", func(context.Context) error { ran.Add(1); return nil })
	h.RegisterCloser("b", closerFunc(func() error { ran.Add(1); return nil }))
	require.Equal(t, 2, h.Len())

	require.NoError(t, h.Shutdown())
	assert.EqualValues(t, 2, ran.Load())
	assert.Zero(t, h.Len())

	// drained: a second run is a no-op
	require.NoError(t, h.Shutdown())
	assert.EqualValues(t, 2, ran.Load())
}

func TestHooks_Unregister(t *testing.T) {
	h := New(zerolog.Nop())
	var ran atomic.Bool
	unregister := h.Register("x", func(context.Context) error { ran.Store(true); return nil })
	unregister()
	unregister()
	require.NoError(t, h.Shutdown())
	assert.False(t, ran.Load())
}

func TestHooks_JoinsErrors(t *testing.T) {
	h := New(zerolog.Nop())
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	h.Register("a", func(context.Context) error { return errA })
	h.Register("b", func(context.Context) error { return errB })
	h.Register("ok", func(context.Context) error { return nil })

	err := h.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestHooks_FailureDoesNotCancelOthers(t *testing.T) {
	h := New(zerolog.Nop())
	failed := make(chan struct{})
	h.Register("fails", func(context.Context) error {
		defer close(failed)
		return errors.New("boom")
	})
	var ctxErr atomic.Value
	h.Register("slow", func(ctx context.Context) error {
		<-failed
		ctxErr.Store(fmt.Sprint(ctx.Err()))
		return nil
	})

	require.Error(t, h.Shutdown())
	assert.Equal(t, "<nil>", ctxErr.Load())
}

func TestHooks_ListenStopDoesNotRun(t *testing.T) {
	h := New(zerolog.Nop())
	var ran atomic.Bool
	h.Register("x", func(context.Context) error { ran.Store(true); return nil })

	stop := h.Listen(context.Background(), false)
	stop()
	stop()
	assert.False(t, ran.Load())
	assert.Equal(t, 1, h.Len())
}
