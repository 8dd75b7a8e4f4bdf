// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-mux/api"
)

var errSelectorClosed = fmt.Errorf("reactor: selector: %w", api.ErrClosed)
