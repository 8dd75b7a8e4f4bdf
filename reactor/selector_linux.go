// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "golang.org/x/sys/unix"

// bytes pending in the receive queue
const fionread = unix.SIOCINQ
