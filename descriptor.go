package jesfs

// FileDescriptor is an open file handle (spec §3.4/§9). Unlike the original
// FS_DESC, which overloads _head_sadr==0 as "not open", validity is a
// separate tag: headAddr is a legitimate flash address, not a sentinel, and
// callers get a clear error instead of silently operating on a stale handle.
type FileDescriptor struct {
	mount *Mount

	valid bool

	headAddr  uint32
	workAddr  uint32
	sectorRel uint32

	pos   uint32
	len   uint32 // allOnes32 while unknown (an unclosed file opened READ/RAW, until a read finds its end)
	ctime uint32
	flags OpenFlags

	crc        crc32Hash
	crcEnabled bool
}

// Pos returns the current read/write offset.
func (fd *FileDescriptor) Pos() uint32 { return fd.pos }

// Len returns the file's length, or the allOnes32 sentinel if it isn't known
// yet (an unclosed file opened READ/RAW whose read hasn't reached the actual
// end). A WRITE descriptor tracks its length exactly.
func (fd *FileDescriptor) Len() uint32 { return fd.len }

// IsUnclosed reports whether this handle's length is still unknown.
func (fd *FileDescriptor) IsUnclosed() bool { return fd.len == allOnes32 }

// Flags returns the descriptor's current open flags, including any
// informative bits (xOpenUnclosed) set by Open.
func (fd *FileDescriptor) Flags() OpenFlags { return fd.flags }

// CRC32 returns the running CRC-32 if the descriptor was opened with
// OpenCRC, or the all-ones "not tracked" sentinel otherwise.
func (fd *FileDescriptor) CRC32() uint32 {
	if !fd.crcEnabled {
		return allOnes32
	}
	return fd.crc.value()
}

func (fd *FileDescriptor) checkValid() error {
	if !fd.valid {
		return NewError(CodeBadDescriptor, "file descriptor is closed or was never opened")
	}
	return nil
}

// FileStat is the snapshot Mount.Info returns for a single index position
// (spec §4.3 "info").
type FileStat struct {
	Name      string
	CTime     uint32
	Len       uint32 // allOnes32 sentinel = unclosed
	CRC32     uint32
	DiskFlags OpenFlags
	Status    StatFlags
}
