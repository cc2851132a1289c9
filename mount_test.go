package jesfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jesfs/go-jesfs/flash"
)

// S1: format SOFT a 512 KiB disk, expect an empty, fully-available disk.
func TestFormat_S1EmptyDisk(t *testing.T) {
	mount, _ := newTestDisk(t)

	require.Equal(t, uint16(0), mount.filesUsed)
	require.Equal(t, uint16(0), mount.filesActive)
	require.EqualValues(t, (1<<testDensity)-SectorSize, mount.availableDiskSize)
}

// Property 6 (format idempotence), checked through the mount counters: a
// second format(SOFT) leaves the same empty, fully-available disk.
func TestFormat_SoftIdempotent(t *testing.T) {
	mount, _ := newTestDisk(t)

	err := mount.Format(FormatSoft)
	require.NoError(t, err)

	require.Equal(t, uint16(0), mount.filesUsed)
	require.Equal(t, uint16(0), mount.filesActive)
	require.EqualValues(t, (1<<testDensity)-SectorSize, mount.availableDiskSize)
}

// Property 7: sector 0 keeps its original DISK_MAGIC/identification across
// ordinary operations.
func TestStart_SuperblockSurvivesActivity(t *testing.T) {
	mount, drv := newTestDisk(t)

	fd, err := mount.Open("keep", OpenCreate|OpenWrite)
	require.NoError(t, err)
	require.NoError(t, fd.Write([]byte("hello")))
	require.NoError(t, fd.Close())

	wantCTime := mount.diskCTime
	wantID := mount.identification

	reopened := reopenTestDisk(t, drv, StartNormal)

	raw := make([]byte, HeaderSize)
	require.NoError(t, reopened.dev.ReadData(0, raw))
	sb, err := UnpackSuperblock(raw)
	require.NoError(t, err)

	require.Equal(t, diskMagic, sb.DiskMagic)
	require.Equal(t, wantID, sb.Identification)
	require.Equal(t, wantCTime, sb.DiskCTime)
}

func TestStart_RestartSkipsRescanWhenUnchanged(t *testing.T) {
	mount, drv := newTestDisk(t)

	fd, err := mount.Open("a", OpenCreate|OpenWrite)
	require.NoError(t, err)
	require.NoError(t, fd.Close())

	fresh := NewMount(drv, flash.DefaultConfig())
	require.NoError(t, fresh.Start(StartNormal))
	require.Equal(t, uint16(1), fresh.filesUsed)

	require.NoError(t, fresh.Start(StartRestart))
	require.Equal(t, uint16(1), fresh.filesUsed)
}

func TestFormat_RejectsUnknownMode(t *testing.T) {
	mount, _ := newTestDisk(t)
	err := mount.Format(FormatMode(0))
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, CodeBadFormatParameter, code)
}
