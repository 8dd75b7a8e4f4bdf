//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "github.com/momentics/hioload-mux/api"

func pinCurrentThread(int) error { return api.ErrNotSupported }
