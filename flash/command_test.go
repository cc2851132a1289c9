package flash_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jesfs/go-jesfs/flash"
	"github.com/jesfs/go-jesfs/simulator"
)

var testID = [3]byte{0xC2, 0x28, 0x13} // Macronix MX25R, density 0x13 = 512 KiB

func newDevice(t *testing.T) *flash.Device {
	t.Helper()
	drv := simulator.New(1<<19, testID)
	dev := flash.NewDevice(drv, flash.DefaultConfig())
	require.NoError(t, dev.Init())
	return dev
}

func TestDevice_IdentificationAndSize(t *testing.T) {
	dev := newDevice(t)

	id, err := dev.ReadIdentification()
	require.NoError(t, err)
	require.NoError(t, dev.InterpretID(id))

	require.EqualValues(t, 0xC22813, dev.Identification())
	require.EqualValues(t, 1<<19, dev.TotalSize())
}

func TestDevice_InterpretID_RejectsUnknownManufacturer(t *testing.T) {
	dev := newDevice(t)
	err := dev.InterpretID(0xAA5513)
	require.Error(t, err)
	code, ok := flash.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, flash.CodeUnknownType, code)
}

func TestDevice_InterpretID_RejectsBadDensity(t *testing.T) {
	dev := newDevice(t)
	err := dev.InterpretID(0xC22805)
	require.Error(t, err)
	code, ok := flash.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, flash.CodeBadDensity, code)
}

func TestDevice_PageProgramAndReadDataRoundtrip(t *testing.T) {
	dev := newDevice(t)
	id, err := dev.ReadIdentification()
	require.NoError(t, err)
	require.NoError(t, dev.InterpretID(id))

	payload := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, dev.PageProgram(4096, payload))

	readBack := make([]byte, len(payload))
	require.NoError(t, dev.ReadData(4096, readBack))
	require.Equal(t, payload, readBack)
}

func TestDevice_SectorErase4K(t *testing.T) {
	dev := newDevice(t)
	id, err := dev.ReadIdentification()
	require.NoError(t, err)
	require.NoError(t, dev.InterpretID(id))

	require.NoError(t, dev.PageProgram(4096, []byte{1, 2, 3, 4}))
	require.NoError(t, dev.SectorErase4K(4096))

	readBack := make([]byte, 4)
	require.NoError(t, dev.ReadData(4096, readBack))
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, readBack)
}

func TestDevice_WakeFromSleep(t *testing.T) {
	dev := newDevice(t)

	require.NoError(t, dev.DeepPowerDown())

	id, err := dev.WakeFromSleep()
	require.NoError(t, err)
	require.EqualValues(t, 0xC22813, id)
}
