// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements the descriptor-readiness event dispatcher.
//
// A Dispatcher keeps a table of (descriptor, kind) registrations and serves
// it from a single polling goroutine locked to an OS thread. Readiness comes
// from a Selector; the production selector is select(2) with FIONREAD used
// to tell data (Receive) from pending connections (Accept) and peer
// shutdowns (Close). A Close event removes every registration of its
// descriptor. The dispatcher never closes descriptors itself.
//
// Supported platforms: Linux and Darwin. Elsewhere a Selector must be
// supplied with WithSelector.
package reactor
