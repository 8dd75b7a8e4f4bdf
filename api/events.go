// File: api/events.go
// Package api defines the descriptor event kinds dispatched by a Dispatcher.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// EventKind identifies which readiness condition a registration listens for.
// Kinds are distinct bits so callers can OR them into masks.
type EventKind int

const (
	EventAccept  EventKind = 1 << 1 // pending inbound connection
	EventConnect EventKind = 1 << 2 // outbound connection completed
	EventReceive EventKind = 1 << 3 // bytes available to read
	EventClose   EventKind = 1 << 4 // peer closed the descriptor
)

// Valid reports whether k is exactly one of the four registrable kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventAccept, EventConnect, EventReceive, EventClose:
		return true
	}
	return false
}

func (k EventKind) String() string {
	switch k {
	case EventAccept:
		return "accept"
	case EventConnect:
		return "connect"
	case EventReceive:
		return "receive"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ExceptionKind selects which dispatcher-level callback SetExceptionHandler installs.
type ExceptionKind int

const (
	// ExceptionTimeout fires when a poll cycle elapses with no ready descriptors.
	ExceptionTimeout ExceptionKind = iota + 1
	// ExceptionError fires once when the readiness query itself fails.
	ExceptionError
)

func (k ExceptionKind) String() string {
	switch k {
	case ExceptionTimeout:
		return "timeout"
	case ExceptionError:
		return "error"
	default:
		return fmt.Sprintf("ExceptionKind(%d)", int(k))
	}
}
