//go:build !linux && !darwin

// File: reactor/selector_other.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-mux/api"
)

// NewSelector reports that no platform selector exists; supply one with
// WithSelector.
func NewSelector() (Selector, error) {
	return nil, fmt.Errorf("reactor: select selector: %w", api.ErrNotSupported)
}
