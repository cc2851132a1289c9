package jesfs

import (
	"fmt"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"

	"github.com/jesfs/go-jesfs/flash"
)

// StartMode selects how thoroughly Start re-validates the flash (spec §3.5).
type StartMode uint8

const (
	// StartNormal walks every sector's full 12-byte header, validating the
	// structural invariants (owner/next) as it goes.
	StartNormal StartMode = 0
	// StartFast walks only the 4-byte MAGIC of every sector, trusting the
	// structural invariants and only building counters.
	StartFast StartMode = 1
	// StartRestart skips the scan entirely if the chip's identification
	// still matches what's already known (waking from deep sleep).
	StartRestart StartMode = 1 << 7
)

func (m StartMode) has(bit StartMode) bool { return m&bit != 0 }

// FormatMode selects how Format clears the chip (spec §3.5/§9).
type FormatMode uint8

const (
	// FormatFull bulk-erases the whole chip before laying down a fresh
	// superblock.
	FormatFull FormatMode = 1
	// FormatSoft only erases sectors that aren't already fully erased (a
	// FREE MAGIC over a dirty body is erased too), which can be faster on a
	// mostly-empty disk.
	FormatSoft FormatMode = 2
)

// Mount is the process-wide filesystem state (spec §3.5): one flash.Device,
// the cached identification/geometry, the free-sector rotation cursor, and
// the running file/space counters fs_start derives from a full scan.
type Mount struct {
	dev *flash.Device

	identification uint32
	totalSize      uint32
	diskCTime      uint32

	lusectAddr        uint32
	availableDiskSize uint32
	filesUsed         uint16
	filesActive       uint16

	sectorsToDelete uint16
	sectorsClear    uint16
	sectorsUnknown  uint16

	deepSleep bool
}

// NewMount wraps drv with the flash command layer using cfg, ready for
// Start.
func NewMount(drv flash.Driver, cfg flash.Config) *Mount {
	return &Mount{dev: flash.NewDevice(drv, cfg)}
}

// Start brings the filesystem up: initializes the bus, wakes the chip,
// identifies it, and (unless waking from deep sleep with an unchanged chip)
// scans every sector and the index to rebuild the in-memory counters,
// mirroring fs_start.
func (m *Mount) Start(mode StartMode) (err error) {
	defer recoverErr(&err)

	log.PanicIf(m.dev.Init())

	id, rerr := m.dev.WakeFromSleep()
	log.PanicIf(rerr)

	if mode.has(StartRestart) && m.totalSize != 0 && id == m.identification {
		m.deepSleep = false
		return nil
	}

	if ierr := m.dev.InterpretID(id); ierr != nil {
		panic(ierr)
	}
	m.identification = m.dev.Identification()
	m.totalSize = m.dev.TotalSize()

	raw := make([]byte, HeaderSize)
	log.PanicIf(m.dev.ReadData(0, raw))
	sb, uerr := UnpackSuperblock(raw)
	log.PanicIf(uerr)

	if sb.DiskMagic != diskMagic {
		panic(NewError(CodeUnformatted, "unrecognized superblock magic, chip is unformatted or holds other data"))
	}
	if sb.Identification != m.identification {
		panic(NewError(CodeIdMismatch, "superblock identification does not match chip hardware ID"))
	}
	m.diskCTime = sb.DiskCTime

	m.availableDiskSize = m.totalSize - SectorSize
	m.filesUsed = 0
	m.filesActive = 0
	m.sectorsToDelete = 0
	m.sectorsClear = 0
	m.sectorsUnknown = 0
	m.lusectAddr = 0
	m.deepSleep = false

	errCount := 0
	readLen := HeaderSize
	if mode.has(StartFast) {
		readLen = 4
	}

	for sadr := uint32(SectorSize); sadr < m.totalSize; sadr += SectorSize {
		hbuf := make([]byte, readLen)
		log.PanicIf(m.dev.ReadData(sadr, hbuf))

		magic := MagicState(byteOrder.Uint32(hbuf[0:4]))
		switch magic {
		case MagicFree:
			m.sectorsClear++
		case MagicToDelete:
			m.sectorsToDelete++
			m.lusectAddr = sadr
		case MagicHeadActive:
			m.filesActive++
			m.filesUsed++
			m.availableDiskSize -= SectorSize
			m.lusectAddr = sadr
		case MagicHeadDeleted:
			m.filesUsed++
			m.availableDiskSize -= SectorSize
			m.lusectAddr = sadr
		case MagicData:
			m.availableDiskSize -= SectorSize
			m.lusectAddr = sadr
		default:
			m.sectorsUnknown++
			errCount++
		}

		if !mode.has(StartFast) {
			owner := byteOrder.Uint32(hbuf[4:8])
			next := byteOrder.Uint32(hbuf[8:12])
			switch magic {
			case MagicFree:
				if owner != allOnes32 || next != allOnes32 {
					errCount++
				}
			case MagicHeadActive, MagicHeadDeleted:
				if owner != allOnes32 {
					errCount++
				}
				if m.sadrInvalid(next) {
					errCount++
				}
			case MagicData, MagicToDelete:
				if owner == allOnes32 || m.sadrInvalid(owner) {
					errCount++
				}
				if m.sadrInvalid(next) {
					errCount++
				}
			}
		}
	}

	validHeads := 0
	for off := uint32(indexSlotBase); off != SectorSize; off += 4 {
		ibuf := make([]byte, 4)
		log.PanicIf(m.dev.ReadData(off, ibuf))
		idxAdr := byteOrder.Uint32(ibuf)
		if idxAdr == allOnes32 {
			break
		}
		if m.sadrInvalid(idxAdr) {
			errCount++
			continue
		}
		mbuf := make([]byte, 4)
		log.PanicIf(m.dev.ReadData(idxAdr, mbuf))
		dirTyp := MagicState(byteOrder.Uint32(mbuf))
		if dirTyp == MagicHeadActive || dirTyp == MagicHeadDeleted {
			validHeads++
		} else {
			errCount++
		}
	}

	if errCount > 0 || uint16(validHeads) != m.filesUsed {
		return NewError(CodeCorrupt, "fs_start found problems in the filesystem structure")
	}
	return nil
}

// Format lays down a fresh superblock, clearing the chip per mode, and then
// runs Start(StartNormal) to rebuild state (spec §3.5, fs_format).
func (m *Mount) Format(mode FormatMode) (err error) {
	defer recoverErr(&err)

	log.PanicIf(m.dev.Init())
	id, werr := m.dev.WakeFromSleep()
	log.PanicIf(werr)
	if ierr := m.dev.InterpretID(id); ierr != nil {
		panic(ierr)
	}

	switch mode {
	case FormatFull:
		log.PanicIf(m.dev.BulkErase())
	case FormatSoft:
		sbuf := make([]byte, SectorSize)
		for sadr := uint32(0); sadr < m.dev.TotalSize(); sadr += SectorSize {
			log.PanicIf(m.dev.ReadData(sadr, sbuf))
			if byteOrder.Uint32(sbuf[:4]) != uint32(MagicFree) || !isFullyErased(sbuf) {
				log.PanicIf(m.dev.SectorErase4K(sadr))
			}
		}
	default:
		panic(NewError(CodeBadFormatParameter, "unknown format mode"))
	}

	sb := Superblock{
		DiskMagic:      diskMagic,
		Identification: m.dev.Identification(),
		DiskCTime:      nowSeconds(),
	}
	raw, perr := sb.Pack()
	log.PanicIf(perr)
	log.PanicIf(m.dev.PageProgram(0, raw))

	return m.Start(StartNormal)
}

// Deepsleep puts the chip into its lowest-power state; Start(StartRestart)
// wakes it again.
func (m *Mount) Deepsleep() (err error) {
	defer recoverErr(&err)
	if m.deepSleep {
		return NewError(CodeAlreadySleeping, "filesystem already sleeping")
	}
	log.PanicIf(m.dev.DeepPowerDown())
	m.deepSleep = true
	return nil
}

func (m *Mount) checkAwake() error {
	if m.deepSleep {
		return NewError(CodeSleepingBusy, "filesystem is sleeping, call Start(StartRestart) first")
	}
	return nil
}

// Describe renders a short human-readable summary, the way cmd/jesfs-ls and
// cmd/jesfs-format report disk geometry.
func (m *Mount) Describe() string {
	return fmt.Sprintf(
		"JesFs id=0x%06X size=%s available=%s files=%d active=%d",
		m.identification,
		humanize.Comma(int64(m.totalSize)),
		humanize.Comma(int64(m.availableDiskSize)),
		m.filesUsed, m.filesActive,
	)
}
