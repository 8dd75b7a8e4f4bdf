// File: api/handler.go
// Package api defines the callback shapes used by the dispatcher and pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler is invoked on the dispatcher's polling thread with the ready
// descriptor and the argument supplied at registration.
type Handler func(fd int, arg any)

// ExceptionHandler receives the argument supplied to SetExceptionHandler.
type ExceptionHandler func(arg any)

// Task is a unit of work executed once by a pooled worker.
type Task func(arg any)
