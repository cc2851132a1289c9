package jesfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S2's worked example: CRC-32 of "ABC" is 0xA3830348 (the standard,
// finalized ISO-3309 value; see DESIGN.md's "CRC-32" open question entry for
// why this, and not the raw running register, is what's persisted).
func TestCRC32_S2WorkedExample(t *testing.T) {
	c := newFileCRC()
	c.update([]byte{0x41, 0x42, 0x43})
	require.Equal(t, uint32(0xA3830348), c.value())
}

func TestCRC32_IncrementalMatchesOneShot(t *testing.T) {
	oneShot := newFileCRC()
	oneShot.update([]byte("the quick brown fox"))

	incremental := newFileCRC()
	incremental.update([]byte("the quick "))
	incremental.update([]byte("brown fox"))

	require.Equal(t, oneShot.value(), incremental.value())
}

func TestCRC32_ResetClearsState(t *testing.T) {
	c := newFileCRC()
	c.update([]byte{0x41, 0x42, 0x43})
	c.reset()

	fresh := newFileCRC()
	require.Equal(t, fresh.value(), c.value())
}
