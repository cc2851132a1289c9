// Package simulator implements the optional host-side collaborator from
// spec §6.4: a RAM-backed flash.Driver that interprets the same SPI-NOR
// command protocol a real chip would, so the rest of the module — and its
// tests — can run without real hardware. It also offers a way to persist
// the virtual disk image to a host file and reload it (Dump and Load), which
// the cmd/jesfs-* tools use between runs. The jesfs package's power-loss tests
// instead build a fresh Mount over the same Driver and Start(NORMAL) again.
package simulator

import (
	"os"
	"time"

	"github.com/dsoprea/go-logging"

	"github.com/jesfs/go-jesfs/flash"
)

const (
	opReadID        = 0x9F
	opDeepPowerDown = 0xB9
	opReleaseDPD    = 0xAB
	opReadData      = 0x03
	opStatusReg     = 0x05
	opWriteEnable   = 0x06
	opPageWrite     = 0x02
	opBulkErase     = 0xC7
	opSectorErase4K = 0x20

	sectorSize = 4096
)

// Driver is a RAM-backed implementation of flash.Driver. Construct with New
// for a fresh 0xFF-filled image, or Load to resume a previously Dump-ed one.
type Driver struct {
	data []byte
	id   [3]byte

	writeEnable bool
	deepSleep   bool

	selected bool
	session  *cmdSession
}

type cmdSession struct {
	op      byte
	addr    uint32
	gotAddr bool
}

// New returns a Driver over a totalSize-byte, fully-erased (0xFF) image,
// reporting id on ReadIdentification (manufacturer:type:density, as spec
// §4.1 describes).
func New(totalSize uint32, id [3]byte) *Driver {
	data := make([]byte, totalSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &Driver{data: data, id: id}
}

// Load reconstructs a Driver from a previously Dump-ed image file.
func Load(path string, id [3]byte) (*Driver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, flash.WrapError(flash.CodeSpiInit, "load simulator image", err)
	}
	return &Driver{data: raw, id: id}, nil
}

// Dump writes the current image verbatim to a host file.
func (d *Driver) Dump(path string) error {
	if err := os.WriteFile(path, d.data, 0o644); err != nil {
		return flash.WrapError(flash.CodeSpiInit, "dump simulator image", err)
	}
	return nil
}

func (d *Driver) Init() error { return nil }
func (d *Driver) Close()      {}

func (d *Driver) Select() {
	d.selected = true
	d.session = &cmdSession{}
}

func (d *Driver) Deselect() {
	d.selected = false
	d.session = nil
}

func (d *Driver) WaitUsec(dur time.Duration) {
	// The host simulator has no real bus timing to honor; busy-wait loops
	// in the command layer still run (and terminate immediately) against
	// the status register below.
	_ = dur
}

func (d *Driver) Write(buf []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()

	if !d.selected || d.session == nil {
		log.Panicf("simulator: write without select")
	}

	for len(buf) > 0 {
		if d.session.op == 0 {
			d.session.op = buf[0]
			buf = buf[1:]
			continue
		}

		switch d.session.op {
		case opReadID, opStatusReg, opWriteEnable, opDeepPowerDown, opReleaseDPD, opBulkErase:
			// No further command bytes expected for these opcodes; treat any
			// extra write as payload to ignore (shouldn't happen from Device).
			buf = nil

		case opReadData, opPageWrite, opSectorErase4K:
			if !d.session.gotAddr {
				need := 3
				if len(buf) < need {
					log.Panicf("simulator: short address on opcode 0x%02x", d.session.op)
				}
				d.session.addr = uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
				d.session.gotAddr = true
				buf = buf[need:]

				if d.session.op == opSectorErase4K {
					d.doSectorErase(d.session.addr)
					buf = nil
				}
				continue
			}

			if d.session.op == opPageWrite {
				d.doProgram(d.session.addr, buf)
				d.session.addr += uint32(len(buf))
			}
			buf = nil

		default:
			log.Panicf("simulator: unknown opcode 0x%02x", d.session.op)
		}
	}

	switch d.session.op {
	case opWriteEnable:
		d.writeEnable = true
	case opDeepPowerDown:
		d.deepSleep = true
	case opReleaseDPD:
		d.deepSleep = false
	case opBulkErase:
		d.doBulkErase()
	}

	return nil
}

func (d *Driver) Read(buf []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()

	if !d.selected || d.session == nil {
		log.Panicf("simulator: read without select")
	}

	switch d.session.op {
	case opReadID:
		if d.deepSleep {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		for i := range buf {
			if i < 3 {
				buf[i] = d.id[i]
			} else {
				buf[i] = 0
			}
		}

	case opStatusReg:
		status := byte(0) // never busy: the simulator completes ops synchronously
		if d.writeEnable {
			status |= 0x02
		}
		for i := range buf {
			buf[i] = status
		}

	case opReadData:
		if !d.session.gotAddr {
			log.Panicf("simulator: read data before address")
		}
		addr := d.session.addr
		for i := range buf {
			if int(addr)+i < len(d.data) {
				buf[i] = d.data[int(addr)+i]
			} else {
				buf[i] = 0xFF
			}
		}
		d.session.addr += uint32(len(buf))

	default:
		log.Panicf("simulator: read with no active read-capable opcode (0x%02x)", d.session.op)
	}

	return nil
}

func (d *Driver) doProgram(addr uint32, payload []byte) {
	if !d.writeEnable {
		return
	}
	for i, b := range payload {
		pos := int(addr) + i
		if pos >= len(d.data) {
			break
		}
		d.data[pos] &= b // flash programming can only clear bits (1->0)
	}
	d.writeEnable = false
}

func (d *Driver) doSectorErase(addr uint32) {
	if !d.writeEnable {
		return
	}
	start := int(addr) - int(addr)%sectorSize
	end := start + sectorSize
	if end > len(d.data) {
		end = len(d.data)
	}
	for i := start; i < end; i++ {
		d.data[i] = 0xFF
	}
	d.writeEnable = false
}

func (d *Driver) doBulkErase() {
	if !d.writeEnable {
		return
	}
	for i := range d.data {
		d.data[i] = 0xFF
	}
	d.writeEnable = false
}

func panicToErr(r interface{}) error {
	if err, ok := r.(error); ok {
		return log.Wrap(err)
	}
	return log.Errorf("simulator: non-error panic: %v", r)
}
