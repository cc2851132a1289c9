package simulator_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jesfs/go-jesfs/flash"
	"github.com/jesfs/go-jesfs/simulator"
)

var testID = [3]byte{0xC2, 0x28, 0x13}

func TestDumpAndLoadRoundtrip(t *testing.T) {
	drv := simulator.New(1<<19, testID)
	dev := flash.NewDevice(drv, flash.DefaultConfig())
	require.NoError(t, dev.Init())

	id, err := dev.ReadIdentification()
	require.NoError(t, err)
	require.NoError(t, dev.InterpretID(id))
	require.NoError(t, dev.PageProgram(4096, []byte("persisted across dump/load")))

	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, drv.Dump(path))

	reloaded, err := simulator.Load(path, testID)
	require.NoError(t, err)

	dev2 := flash.NewDevice(reloaded, flash.DefaultConfig())
	require.NoError(t, dev2.Init())
	id2, err := dev2.ReadIdentification()
	require.NoError(t, err)
	require.NoError(t, dev2.InterpretID(id2))

	buf := make([]byte, len("persisted across dump/load"))
	require.NoError(t, dev2.ReadData(4096, buf))
	require.Equal(t, "persisted across dump/load", string(buf))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := simulator.Load(filepath.Join(t.TempDir(), "nope.img"), testID)
	require.Error(t, err)
}

func TestFreshImageIsAllOnes(t *testing.T) {
	drv := simulator.New(1<<19, testID)
	dev := flash.NewDevice(drv, flash.DefaultConfig())
	require.NoError(t, dev.Init())
	id, err := dev.ReadIdentification()
	require.NoError(t, err)
	require.NoError(t, dev.InterpretID(id))

	buf := make([]byte, 16)
	require.NoError(t, dev.ReadData(0, buf))
	for _, b := range buf {
		require.Equal(t, byte(0xFF), b)
	}
}
