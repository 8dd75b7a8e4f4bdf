//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"

	"github.com/momentics/hioload-mux/api"
	"golang.org/x/sys/unix"
)

// pinCurrentThread binds the calling OS thread to cpu via sched_setaffinity.
func pinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if set.Count() == 0 {
		return fmt.Errorf("cpu %d out of range: %w", cpu, api.ErrInvalidArgument)
	}
	return unix.SchedSetaffinity(0, &set)
}
