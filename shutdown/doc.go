// Package shutdown
// Author: momentics <momentics@gmail.com>
//
// Orderly teardown for processes that own dispatchers and worker pools.
// Components register a hook with a Hooks registry they are given; nothing
// is tracked in package-level state. Listen turns SIGINT/SIGTERM into a
// single Run of the registry before the process exits.
package shutdown
