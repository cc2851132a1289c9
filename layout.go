// Package jesfs implements Jo's Embedded Serial File System: a flat-namespace
// file system for SPI-attached NOR flash on small microcontrollers. See
// SPEC_FULL.md for the full design; this file holds the on-media binary
// layout (spec §3).
package jesfs

import (
	"encoding/binary"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

// byteOrder is the wire/media encoding for every multi-byte integer on
// flash (spec §6.2: "Integers are little-endian on flash").
var byteOrder = binary.LittleEndian

const (
	// SectorSize is the flash erase granularity (PSEC), fixed by design.
	SectorSize = 4096

	// HeaderSize is the 12-byte sector header every PSEC starts with.
	HeaderSize = 12

	// FileInfoSize is the 36-byte file-info header that follows the sector
	// header in a head sector.
	FileInfoSize = 36

	// MaxNameLen is the longest filename (NUL not included).
	MaxNameLen = 21

	// nameFieldSize is the on-flash width of FileInfoHeader.Name, including
	// the mandatory trailing NUL.
	nameFieldSize = MaxNameLen + 1

	// HeadPayloadOffset/DataPayloadOffset are where file bytes begin within
	// a head vs. non-head sector.
	HeadPayloadOffset = HeaderSize + FileInfoSize
	DataPayloadOffset = HeaderSize

	// HeadPayloadCapacity/DataPayloadCapacity are the usable bytes per
	// sector once the headers are accounted for.
	HeadPayloadCapacity = SectorSize - HeadPayloadOffset
	DataPayloadCapacity = SectorSize - DataPayloadOffset

	// allOnes32 is the sentinel for "free"/"end of chain"/"unclosed".
	allOnes32 = 0xFFFFFFFF
)

// SectorHeader is the mandatory 12-byte prefix of every PSEC (spec §3.1).
type SectorHeader struct {
	Magic MagicState
	Owner uint32
	Next  uint32
}

// Pack serializes the header to its on-flash 12-byte form.
func (h SectorHeader) Pack() ([]byte, error) {
	raw, err := restruct.Pack(byteOrder, &h)
	if err != nil {
		return nil, log.Wrap(err)
	}
	return raw, nil
}

// UnpackSectorHeader parses a 12-byte buffer into a SectorHeader.
func UnpackSectorHeader(raw []byte) (h SectorHeader, err error) {
	if len(raw) < HeaderSize {
		return h, NewError(CodeBadHeader, "short sector header")
	}
	if uerr := restruct.Unpack(raw[:HeaderSize], byteOrder, &h); uerr != nil {
		return h, log.Wrap(uerr)
	}
	return h, nil
}

// FileInfoHeader is the 36-byte block that follows the sector header in a
// head sector (spec §3.1).
type FileInfoHeader struct {
	Len       uint32
	CRC32     uint32
	Name      [nameFieldSize]byte
	CTime     uint32
	OpenFlags uint8
	_         uint8 // reserved, all-ones
}

// Pack serializes the file-info header to its on-flash 36-byte form.
func (fi FileInfoHeader) Pack() ([]byte, error) {
	raw, err := restruct.Pack(byteOrder, &fi)
	if err != nil {
		return nil, log.Wrap(err)
	}
	return raw, nil
}

// UnpackFileInfoHeader parses a 36-byte buffer into a FileInfoHeader.
func UnpackFileInfoHeader(raw []byte) (fi FileInfoHeader, err error) {
	if len(raw) < FileInfoSize {
		return fi, NewError(CodeBadHeader, "short file-info header")
	}
	if uerr := restruct.Unpack(raw[:FileInfoSize], byteOrder, &fi); uerr != nil {
		return fi, log.Wrap(uerr)
	}
	return fi, nil
}

// NameString returns the NUL-terminated Name field as a Go string.
func (fi FileInfoHeader) NameString() string {
	return nameFromBytes(fi.Name[:])
}

func nameFromBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func nameToBytes(name string) ([nameFieldSize]byte, error) {
	var out [nameFieldSize]byte
	for i := range out {
		out[i] = 0xFF
	}
	if len(name) == 0 || len(name) > MaxNameLen {
		return out, NewError(CodeBadName, "filename must be 1..21 bytes")
	}
	copy(out[:], name)
	out[len(name)] = 0
	return out, nil
}

// Superblock is the 12-byte structure at PSEC 0, offset 0 (spec §3.2).
type Superblock struct {
	DiskMagic      uint32
	Identification uint32
	DiskCTime      uint32
}

// diskMagic is the ASCII bytes "JesF" reinterpreted as a little-endian word.
const diskMagic uint32 = 0x4673654A

// Pack serializes the superblock to its on-flash 12-byte form.
func (sb Superblock) Pack() ([]byte, error) {
	raw, err := restruct.Pack(byteOrder, &sb)
	if err != nil {
		return nil, log.Wrap(err)
	}
	return raw, nil
}

// UnpackSuperblock parses a 12-byte buffer into a Superblock.
func UnpackSuperblock(raw []byte) (sb Superblock, err error) {
	if len(raw) < HeaderSize {
		return sb, NewError(CodeBadHeader, "short superblock")
	}
	if uerr := restruct.Unpack(raw[:HeaderSize], byteOrder, &sb); uerr != nil {
		return sb, log.Wrap(uerr)
	}
	return sb, nil
}

// indexSlotBase is where the index array starts within sector 0.
const indexSlotBase = HeaderSize

// maxIndexSlots is the number of 32-bit words that fit between the
// superblock and the end of sector 0: (4096-12)/4 = 1021. appendIndexSlot
// never fills the last one (offset 4092), so at most 1020 slots are used and
// an all-ones end marker always remains.
const maxIndexSlots = (SectorSize - indexSlotBase) / 4

func indexSlotAddr(fno uint16) uint32 {
	return indexSlotBase + uint32(fno)*4
}
