package flash

import (
	"time"

	"github.com/dsoprea/go-logging"
)

// SPI-NOR opcodes. Identical across the Macronix/GigaDevice families this
// layer targets; see original_source/jesfs_ml.c (sflash_*) for the reference
// sequencing and other_examples/…gentam-gice__flash.go for the same opcode
// table expressed against a different bus abstraction.
const (
	cmdReadID        = 0x9F
	cmdDeepPowerDown = 0xB9
	cmdReleaseDPD    = 0xAB
	cmdReadData      = 0x03
	cmdStatusReg     = 0x05
	cmdWriteEnable   = 0x06
	cmdPageWrite     = 0x02
	cmdBulkErase     = 0xC7
	cmdSectorErase4K = 0x20
)

const (
	// PageSize is the chip's native program-page boundary; PageProgram never
	// crosses it in one call.
	PageSize = 256

	// MinDensity/MaxDensity bound the density byte of the JEDEC ID: 8kB..16MB.
	MinDensity = 0x0D
	MaxDensity = 0x18
)

// KnownManufacturerType is the manufacturer+type allow-list (top two ID
// bytes). Density is validated separately against [MinDensity, MaxDensity].
var KnownManufacturerType = map[uint16]string{
	0xC228: "Macronix MX25R (ultra-low-power)",
	0xC840: "GigaDevice",
}

// Config holds the tunables spec §9 calls out as "conditional compilation
// becomes a configuration value" — chunk limits and poll timeouts a caller
// may want to cap for a specific bus/heap.
type Config struct {
	// ReadChunkLimit caps a single hardware read transfer. Zero means
	// unlimited (bounded only by the sector boundary).
	ReadChunkLimit int

	// WriteChunkLimit caps a single hardware write transfer in addition to
	// the 256-byte page boundary. Zero means the page boundary is the only
	// limit.
	WriteChunkLimit int

	// PageWriteTimeout bounds a single page-program busy-wait.
	PageWriteTimeout time.Duration
	// SectorEraseTimeout bounds a single 4K sector-erase busy-wait.
	SectorEraseTimeout time.Duration
	// BulkEraseTimeout bounds a chip (bulk) erase busy-wait; datasheets quote
	// minutes for large parts.
	BulkEraseTimeout time.Duration
}

// DefaultConfig matches the conservative figures in jesfs_ml.c's comments
// (100ms/page, 400ms/4K sector, 120s bulk erase).
func DefaultConfig() Config {
	return Config{
		PageWriteTimeout:   100 * time.Millisecond,
		SectorEraseTimeout: 400 * time.Millisecond,
		BulkEraseTimeout:   120 * time.Second,
	}
}

// Device is the flash command layer: it turns Driver's raw bus primitives
// into the vendor command protocol, enforcing per-operation busy-wait and
// write-enable latching.
type Device struct {
	drv    Driver
	cfg    Config
	id     uint32
	sizeB  uint32
}

// NewDevice wraps drv with the command layer using cfg for chunk/timeout
// tunables.
func NewDevice(drv Driver, cfg Config) *Device {
	return &Device{drv: drv, cfg: cfg}
}

// Init opens the underlying bus.
func (d *Device) Init() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()

	rawErr := d.drv.Init()
	log.PanicIf(rawErr)

	return nil
}

// Close releases the underlying bus.
func (d *Device) Close() {
	d.drv.Close()
}

// Identification returns the last-read 24-bit manufacturer/type/density
// word, and TotalSize its implied capacity in bytes.
func (d *Device) Identification() uint32 { return d.id }
func (d *Device) TotalSize() uint32      { return d.sizeB }

func (d *Device) byteCmd(cmd byte, more bool) (err error) {
	d.drv.Select()
	if werr := d.drv.Write([]byte{cmd}); werr != nil {
		d.drv.Deselect()
		return WrapError(CodeSpiInit, "byte command", werr)
	}
	if !more {
		d.drv.Deselect()
	}
	return nil
}

func addrBytes(addr uint32) [3]byte {
	return [3]byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// ReadIdentification issues CMD_RDID and returns the raw 24-bit
// manufacturer:type:density word. The flash must already be awake.
func (d *Device) ReadIdentification() (id uint32, err error) {
	if err = d.byteCmd(cmdReadID, true); err != nil {
		return 0, err
	}
	buf := make([]byte, 3)
	if rerr := d.drv.Read(buf); rerr != nil {
		d.drv.Deselect()
		return 0, WrapError(CodeSpiInit, "read identification", rerr)
	}
	d.drv.Deselect()

	id = uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	return id, nil
}

// InterpretID validates id against the manufacturer/type allow-list and the
// density range, and records the implied total size on success.
func (d *Device) InterpretID(id uint32) error {
	manuType := uint16(id >> 8)
	if _, ok := KnownManufacturerType[manuType]; !ok {
		return NewError(CodeUnknownType, "unrecognized flash manufacturer/type")
	}

	density := byte(id)
	if density < MinDensity || density > MaxDensity {
		return NewError(CodeBadDensity, "flash density out of supported range")
	}

	d.id = id
	d.sizeB = uint32(1) << density
	return nil
}

// ReleaseFromDeepPowerDown issues the release command (no further wait; the
// caller is expected to follow spec §4.1's wake sequence).
func (d *Device) ReleaseFromDeepPowerDown() error {
	return d.byteCmd(cmdReleaseDPD, false)
}

// DeepPowerDown puts the chip into its lowest-power sleep state.
func (d *Device) DeepPowerDown() error {
	return d.byteCmd(cmdDeepPowerDown, false)
}

// WakeFromSleep implements spec §4.1's tolerant wake sequence: release, wait
// 45us, then try to read identification up to three times, since some chips
// only answer correctly on the second attempt after deep sleep.
func (d *Device) WakeFromSleep() (id uint32, err error) {
	if err = d.ReleaseFromDeepPowerDown(); err != nil {
		return 0, err
	}
	d.drv.WaitUsec(45 * time.Microsecond)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		id, lastErr = d.ReadIdentification()
		if lastErr == nil && id != 0 && id != 0xFFFFFF {
			return id, nil
		}
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, NewError(CodeSpiInit, "flash did not respond to identification after wake")
}

// ReadStatus returns the raw status register (bit0: write-in-progress,
// bit1: write-enable-latch).
func (d *Device) ReadStatus() (byte, error) {
	if err := d.byteCmd(cmdStatusReg, true); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if err := d.drv.Read(buf); err != nil {
		d.drv.Deselect()
		return 0, WrapError(CodeSpiInit, "read status", err)
	}
	d.drv.Deselect()
	return buf[0], nil
}

// WriteEnable latches the write-enable bit and confirms it stuck.
func (d *Device) WriteEnable() error {
	if err := d.byteCmd(cmdWriteEnable, false); err != nil {
		return err
	}
	status, err := d.ReadStatus()
	if err != nil {
		return err
	}
	if status&0x02 == 0 {
		return NewError(CodeWriteLocked, "write-enable latch did not take (flash locked or write-protected)")
	}
	return nil
}

// WaitBusy polls the status register until bit0 clears or timeout elapses.
func (d *Device) WaitBusy(timeout time.Duration) error {
	deadline := timeout
	const poll = time.Millisecond
	for elapsed := time.Duration(0); elapsed < deadline; elapsed += poll {
		d.drv.WaitUsec(poll)
		status, err := d.ReadStatus()
		if err != nil {
			return err
		}
		if status&0x01 == 0 {
			return nil
		}
	}
	return NewError(CodeTimeout, "timed out waiting for flash to go idle")
}

// ReadData reads len(buf) bytes starting at addr, chunked to respect
// Config.ReadChunkLimit. addr is not checked against the chip size.
func (d *Device) ReadData(addr uint32, buf []byte) error {
	remaining := buf
	pos := addr
	for len(remaining) > 0 {
		chunk := len(remaining)
		if d.cfg.ReadChunkLimit > 0 && chunk > d.cfg.ReadChunkLimit {
			chunk = d.cfg.ReadChunkLimit
		}

		d.drv.Select()
		cmd := append([]byte{cmdReadData}, addrBytesSlice(pos)...)
		if err := d.drv.Write(cmd); err != nil {
			d.drv.Deselect()
			return WrapError(CodeSpiInit, "read data command", err)
		}
		if err := d.drv.Read(remaining[:chunk]); err != nil {
			d.drv.Deselect()
			return WrapError(CodeSpiInit, "read data payload", err)
		}
		d.drv.Deselect()

		remaining = remaining[chunk:]
		pos += uint32(chunk)
	}
	return nil
}

func addrBytesSlice(addr uint32) []byte {
	b := addrBytes(addr)
	return b[:]
}

// PageProgram writes data at addr, chunking each hardware call to stay
// within the 256-byte page boundary and Config.WriteChunkLimit, latching
// write-enable and waiting for completion before each chunk (per spec
// §4.1: "a higher layer computes per-call chunk size").
func (d *Device) PageProgram(addr uint32, data []byte) error {
	if addr >= d.sizeB {
		return NewError(CodeBadAddress, "page program address beyond flash size")
	}

	remaining := data
	pos := addr
	for len(remaining) > 0 {
		chunk := PageSize - int(pos%PageSize)
		if d.cfg.WriteChunkLimit > 0 && chunk > d.cfg.WriteChunkLimit {
			chunk = d.cfg.WriteChunkLimit
		}
		if chunk > len(remaining) {
			chunk = len(remaining)
		}

		if err := d.WriteEnable(); err != nil {
			return err
		}

		d.drv.Select()
		cmd := append([]byte{cmdPageWrite}, addrBytesSlice(pos)...)
		if err := d.drv.Write(cmd); err != nil {
			d.drv.Deselect()
			return WrapError(CodeWriteFailed, "page program command", err)
		}
		if err := d.drv.Write(remaining[:chunk]); err != nil {
			d.drv.Deselect()
			return WrapError(CodeWriteFailed, "page program payload", err)
		}
		d.drv.Deselect()

		timeout := d.cfg.PageWriteTimeout
		if timeout == 0 {
			timeout = DefaultConfig().PageWriteTimeout
		}
		if err := d.WaitBusy(timeout); err != nil {
			return err
		}

		remaining = remaining[chunk:]
		pos += uint32(chunk)
	}
	return nil
}

// SectorErase4K erases the 4K sector containing addr.
func (d *Device) SectorErase4K(addr uint32) error {
	if err := d.WriteEnable(); err != nil {
		return err
	}
	d.drv.Select()
	cmd := append([]byte{cmdSectorErase4K}, addrBytesSlice(addr)...)
	if err := d.drv.Write(cmd); err != nil {
		d.drv.Deselect()
		return WrapError(CodeEraseFailed, "sector erase command", err)
	}
	d.drv.Deselect()

	timeout := d.cfg.SectorEraseTimeout
	if timeout == 0 {
		timeout = DefaultConfig().SectorEraseTimeout
	}
	return d.WaitBusy(timeout)
}

// BulkErase erases the entire chip.
func (d *Device) BulkErase() error {
	if err := d.WriteEnable(); err != nil {
		return err
	}
	if err := d.byteCmd(cmdBulkErase, false); err != nil {
		return err
	}

	timeout := d.cfg.BulkEraseTimeout
	if timeout == 0 {
		timeout = DefaultConfig().BulkEraseTimeout
	}
	return d.WaitBusy(timeout)
}

func panicToErr(r interface{}) error {
	if err, ok := r.(error); ok {
		return log.Wrap(err)
	}
	return log.Errorf("non-error panic: %v", r)
}
