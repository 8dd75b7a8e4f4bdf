// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFDSet(t *testing.T) {
	var s FDSet
	for _, fd := range []int{0, 1, 63, 64, 65, FDSetSize - 1} {
		s.Set(fd)
		assert.True(t, s.IsSet(fd), "fd %d", fd)
	}
	assert.Equal(t, 6, s.Count())

	s.Set(-1)
	s.Set(FDSetSize)
	assert.False(t, s.IsSet(FDSetSize))
	assert.Equal(t, 6, s.Count())

	s.Clear(64)
	assert.False(t, s.IsSet(64))
	assert.True(t, s.IsSet(63))
	s.Zero()
	assert.Zero(t, s.Count())
}
