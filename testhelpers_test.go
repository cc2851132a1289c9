package jesfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jesfs/go-jesfs/flash"
	"github.com/jesfs/go-jesfs/simulator"
)

const testDensity = 19 // 1<<19 = 512 KiB, matching scenario S1's virtual disk

var testID = [3]byte{0xC2, 0x28, testDensity}

// newTestDisk formats a fresh 512 KiB simulated disk and returns its Mount
// alongside the underlying Driver, so a test can Dump/reload it to simulate
// a power cut (spec §8 S5).
func newTestDisk(t *testing.T) (*Mount, *simulator.Driver) {
	t.Helper()

	drv := simulator.New(uint32(1)<<testDensity, testID)
	mount := NewMount(drv, flash.DefaultConfig())

	err := mount.Format(FormatSoft)
	require.NoError(t, err)

	return mount, drv
}

// reopenTestDisk rebuilds a Mount over a disk image previously held by drv,
// as if power had been lost and the process restarted, then calls
// Start(mode).
func reopenTestDisk(t *testing.T, drv *simulator.Driver, mode StartMode) *Mount {
	t.Helper()

	mount := NewMount(drv, flash.DefaultConfig())
	err := mount.Start(mode)
	require.NoError(t, err)
	return mount
}

func readAll(t *testing.T, fd *FileDescriptor) []byte {
	t.Helper()

	var out []byte
	buf := make([]byte, 256)
	for {
		n, err := fd.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}
