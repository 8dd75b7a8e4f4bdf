package adapters_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/hioload-mux/adapters"
	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/control"
	"github.com/momentics/hioload-mux/fake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	mw := func(name string) adapters.Middleware {
		return func(next api.Handler) api.Handler {
			return func(fd int, arg any) {
				trace = append(trace, name)
				next(fd, arg)
			}
		}
	}
	h := adapters.Chain(func(int, any) { trace = append(trace, "handler") }, mw("a"), mw("b"))
	h(3, nil)
	assert.Equal(t, []string{"a", "b", "handler"}, trace)
}

func TestRecoveryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	h := adapters.Chain(func(int, any) { panic("bad") },
		adapters.RecoveryMiddleware(logger),
		adapters.LoggingMiddleware(logger, api.EventReceive))
	assert.NotPanics(t, func() { h(5, nil) })
	assert.Contains(t, buf.String(), "handler invoked")
	assert.Contains(t, buf.String(), "handler panic recovered")
}

func TestMetricsMiddleware(t *testing.T) {
	reg := control.NewMetricsRegistry()
	h := adapters.Chain(func(int, any) {}, adapters.MetricsMiddleware(reg, api.EventAccept))
	h(1, nil)
	h(1, nil)
	assert.EqualValues(t, 2, reg.Counter(control.DispatchKey(api.EventAccept)))
}

func TestOffloadMiddleware(t *testing.T) {
	pool := &fake.Pool{}
	var gotFD int
	var gotArg any
	h := adapters.Chain(func(fd int, arg any) { gotFD, gotArg = fd, arg },
		adapters.OffloadMiddleware(pool, zerolog.Nop()))
	h(7, "x")
	assert.Equal(t, 1, pool.Jobs())
	assert.Equal(t, 7, gotFD)
	assert.Equal(t, "x", gotArg)

	pool.FailWith(errors.New("full"))
	gotFD = 0
	h(8, nil)
	assert.Zero(t, gotFD)
	assert.Equal(t, 1, pool.Jobs())
}
