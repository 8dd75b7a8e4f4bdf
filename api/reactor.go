// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the descriptor-readiness event dispatcher
// used to multiplex sockets onto a single polling thread.

package api

// Dispatcher owns a (descriptor, kind) -> handler registration table and a
// dedicated polling loop that invokes handlers synchronously.
type Dispatcher interface {
	// Add registers interest in kind for fd. Re-adding an existing
	// (fd, kind) pair replaces its handler and argument in place.
	Add(fd int, kind EventKind, h Handler, arg any) error

	// Delete removes the (fd, kind) registration. Missing pairs are not an error.
	Delete(fd int, kind EventKind) error

	// SetExceptionHandler installs the timeout or poll-error callback.
	SetExceptionHandler(kind ExceptionKind, h ExceptionHandler, arg any)

	// Close stops the polling loop and releases the registration table.
	// Registered descriptors are never closed by the dispatcher.
	Close() error
}
