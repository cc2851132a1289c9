package jesfs

// MagicState is a sector's MAGIC tag (spec §3.3). The five values are chosen
// so every legal transition only flips 1-bits to 0-bits; only the
// TODELETE->FREE and HEAD_DELETED->FREE transitions require an erase.
type MagicState uint32

const (
	// MagicFree marks an unused, erased sector (all-ones).
	MagicFree MagicState = 0xFFFFFFFF
	// MagicHeadActive marks an active file's first sector.
	MagicHeadActive MagicState = 0xFFFF293A
	// MagicHeadDeleted marks the tombstone head of a deleted file.
	MagicHeadDeleted MagicState = 0xFFFF2130
	// MagicData marks a non-head data sector of some file.
	MagicData MagicState = 0xFFFF5D5B
	// MagicToDelete marks a data sector scheduled for erase.
	MagicToDelete MagicState = 0xFFFF4040
)

// IsFree reports whether the sector is an erased, unused PSEC.
func (m MagicState) IsFree() bool { return m == MagicFree }

// IsHead reports whether the sector is a file head, active or tombstoned.
func (m MagicState) IsHead() bool { return m == MagicHeadActive || m == MagicHeadDeleted }

// IsData reports whether the sector is a non-head data link, live or
// scheduled for erase.
func (m MagicState) IsData() bool { return m == MagicData || m == MagicToDelete }

// IsKnown reports whether m is one of the five defined states; anything else
// indicates flash corruption.
func (m MagicState) IsKnown() bool {
	switch m {
	case MagicFree, MagicHeadActive, MagicHeadDeleted, MagicData, MagicToDelete:
		return true
	default:
		return false
	}
}

func (m MagicState) String() string {
	switch m {
	case MagicFree:
		return "FREE"
	case MagicHeadActive:
		return "HEAD_ACTIVE"
	case MagicHeadDeleted:
		return "HEAD_DELETED"
	case MagicData:
		return "DATA"
	case MagicToDelete:
		return "TODELETE"
	default:
		return "UNKNOWN"
	}
}

// OpenFlags is the bitmask callers pass to Open (spec §4.3).
type OpenFlags uint8

const (
	OpenRead     OpenFlags = 1 << 0
	OpenCreate   OpenFlags = 1 << 1
	OpenWrite    OpenFlags = 1 << 2
	OpenRaw      OpenFlags = 1 << 3
	OpenCRC      OpenFlags = 1 << 4
	xOpenUnclosed OpenFlags = 1 << 5 // informative only; set by Open/Info, never passed in
	OpenExtSync  OpenFlags = 1 << 6
)

func (f OpenFlags) Has(bit OpenFlags) bool { return f&bit != 0 }

// IsUnclosed reports whether the informative "unclosed" bit is set — only
// ever true on flags Open/Info hand back, never on flags a caller passes in.
func (f OpenFlags) IsUnclosed() bool { return f.Has(xOpenUnclosed) }

// persistedFlagsMask selects which bits of a head sector's stored OpenFlags
// byte Open carries onto a descriptor that reopens an existing file. The
// byte holds every flag the creator passed, but READ/CREATE/WRITE/RAW are
// not meaningful after the fact, so only CRC and EXT_SYNC are carried over.
const persistedFlagsMask = OpenCRC | OpenExtSync

// StatFlags is the bitmask Info returns describing a directory slot's state
// (spec §4.3 "info").
type StatFlags uint8

const (
	StatActive   StatFlags = 1 << 0
	StatInactive StatFlags = 1 << 1
	StatUnclosed StatFlags = 1 << 2
	StatEndOfIndex StatFlags = 1 << 7
)

func (f StatFlags) Has(bit StatFlags) bool { return f&bit != 0 }
