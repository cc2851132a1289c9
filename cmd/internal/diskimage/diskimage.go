// Package diskimage is the small piece of plumbing the cmd/jesfs-* tools
// share: turning a --density byte and a host file path into a
// simulator-backed flash.Driver. It exists because every tool needs the
// identical manufacturer/type/density word a real chip's 0x9F response would
// carry, not because the operations themselves are shared (each tool still
// drives its own Mount/FileDescriptor calls directly).
package diskimage

import (
	"github.com/jesfs/go-jesfs/flash"
	"github.com/jesfs/go-jesfs/simulator"
)

// ManufacturerType is the fixed manufacturer+type word used by every
// jesfs-* tool's simulated chip (Macronix MX25R, the first entry in
// flash.KnownManufacturerType).
const ManufacturerType = 0xC228

// ID builds the 24-bit identification word for density, matching the byte
// a real MX25R part would answer CMD_RDID with.
func ID(density byte) [3]byte {
	return [3]byte{byte(ManufacturerType >> 8), byte(ManufacturerType), density}
}

// Create returns a fresh, fully-erased simulator image sized 1<<density
// bytes. Callers still own calling Mount.Format and Dump.
func Create(density byte) *simulator.Driver {
	return simulator.New(uint32(1)<<density, ID(density))
}

// Open reloads a previously-Dump-ed image file, assuming it was created
// with the given density (the density isn't recoverable from the image
// alone — just like a real chip's identification isn't stored on its own
// media, it has to be asked for again).
func Open(path string, density byte) (*simulator.Driver, error) {
	return simulator.Load(path, ID(density))
}

// DefaultConfig is the chunk/timeout tunable set every tool mounts with.
func DefaultConfig() flash.Config {
	return flash.DefaultConfig()
}
