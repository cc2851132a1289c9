// Package flash implements the SPI-NOR command layer that sits directly on
// top of the physical bus. Everything below Driver is external to this
// module: the bus itself, chip-select GPIO, and timing are the caller's
// concern.
package flash

import "time"

// Driver is the small capability set the command layer is generic over: the
// bus primitives, plus a delay function so busy-waits can be parameterized
// instead of hard-coding a sleep call.
type Driver interface {
	Init() error
	Close()

	Select()
	Deselect()

	// Read fills buf with len(buf) bytes from MISO. Chip-select must already
	// be held (Select called first).
	Read(buf []byte) error

	// Write sends buf to MOSI. Chip-select must already be held.
	Write(buf []byte) error

	// WaitUsec blocks for approximately the given duration.
	WaitUsec(d time.Duration)
}
