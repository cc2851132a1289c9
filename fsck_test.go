package jesfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFsck_CleanDiskNoErrors(t *testing.T) {
	mount, _ := newTestDisk(t)

	fd, err := mount.Open("alpha", OpenCreate|OpenWrite|OpenCRC)
	require.NoError(t, err)
	require.NoError(t, fd.Write([]byte{0x41, 0x42, 0x43}))
	require.NoError(t, fd.Close())

	var lines []string
	report, err := mount.Fsck(StartNormal, func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Equal(t, 0, report.ErrorCount)
	require.Len(t, report.Entries, 1)
	require.True(t, report.Entries[0].CRCChecked)
	require.True(t, report.Entries[0].CRCOk)
	require.NotEmpty(t, lines)
}

func TestFsck_RecoversUnclosedLength(t *testing.T) {
	mount, drv := newTestDisk(t)

	fd, err := mount.Open("u", OpenCreate|OpenWrite)
	require.NoError(t, err)
	require.NoError(t, fd.Write([]byte{1, 2, 3, 4, 5}))

	reopened := reopenTestDisk(t, drv, StartNormal)

	report, err := reopened.Fsck(StartNormal, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.ErrorCount)
	require.Len(t, report.Entries, 1)
	require.True(t, report.Entries[0].Status.Has(StatUnclosed))
}

func TestFsck_FlagsTamperedCRC(t *testing.T) {
	mount, _ := newTestDisk(t)

	fd, err := mount.Open("alpha", OpenCreate|OpenWrite|OpenCRC)
	require.NoError(t, err)
	require.NoError(t, fd.Write([]byte{0x41, 0x42, 0x43}))
	require.NoError(t, fd.Close())

	// Corrupt the persisted CRC directly on flash. Programming can only
	// clear bits (1->0), so zero is the one value guaranteed reachable from
	// any prior contents.
	var bad [4]byte
	require.NoError(t, mount.dev.PageProgram(fd.headAddr+HeaderSize+4, bad[:]))

	report, err := mount.Fsck(StartNormal, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.ErrorCount)
	require.True(t, report.Entries[0].CRCChecked)
	require.False(t, report.Entries[0].CRCOk)
}
