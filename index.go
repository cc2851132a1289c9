package jesfs

// findByName scans the populated index slots (0..filesUsed) looking for a
// head sector whose name matches. It mirrors fs_open's lookup loop: every
// slot must point at a HEAD_ACTIVE or HEAD_DELETED sector (anything else is
// index corruption), and a HEAD_DELETED slot encountered along the way is
// remembered as reclaimable even if the name never matches, so a later
// create can reuse its sector instead of allocating a fresh one.
func (m *Mount) findByName(name string) (headAddr uint32, reclaimable uint32, err error) {
	for i := uint16(0); i < m.filesUsed; i++ {
		slotAddr := indexSlotAddr(i)
		ibuf := make([]byte, 4)
		if err := m.dev.ReadData(slotAddr, ibuf); err != nil {
			return 0, 0, WrapError(CodeSpiInit, "read index slot", err)
		}
		sadr := byteOrder.Uint32(ibuf)

		hbuf := make([]byte, HeaderSize+FileInfoSize)
		if err := m.dev.ReadData(sadr, hbuf); err != nil {
			return 0, 0, WrapError(CodeSpiInit, "read head sector", err)
		}
		hdr, herr := UnpackSectorHeader(hbuf[:HeaderSize])
		if herr != nil {
			return 0, 0, herr
		}
		fi, ferr := UnpackFileInfoHeader(hbuf[HeaderSize:])
		if ferr != nil {
			return 0, 0, ferr
		}

		switch hdr.Magic {
		case MagicHeadDeleted:
			reclaimable = sadr
		case MagicHeadActive:
			if fi.NameString() == name {
				return sadr, reclaimable, nil
			}
		default:
			return 0, 0, NewError(CodeCorrupt, "index corrupted: slot does not point at a head sector")
		}
	}
	return 0, reclaimable, nil
}

// appendIndexSlot records a newly-allocated head sector's address in the
// first unused index slot, failing IndexFull once the index would encroach
// on the last 4 bytes of sector 0 (kept clear the way the original reserves
// room for the trailing all-ones sentinel scan).
func (m *Mount) appendIndexSlot(headAddr uint32) error {
	slotAddr := indexSlotBase + uint32(m.filesUsed)*4
	if slotAddr >= SectorSize-4 {
		return NewError(CodeIndexFull, "directory index is full")
	}
	var raw [4]byte
	byteOrder.PutUint32(raw[:], headAddr)
	if err := m.dev.PageProgram(slotAddr, raw[:]); err != nil {
		return WrapError(CodeWriteFailed, "append index slot", err)
	}
	m.availableDiskSize -= SectorSize
	m.filesUsed++
	return nil
}

// readIndexSlot returns the sector address stored at index position fno, and
// whether that slot is populated at all (an all-ones slot means "end of
// index", spec §4.3's info()).
func (m *Mount) readIndexSlot(fno uint16) (addr uint32, populated bool, err error) {
	slotAddr := indexSlotAddr(fno)
	if slotAddr > SectorSize-4 {
		return 0, false, NewError(CodeIndexOutOfRange, "index position out of range")
	}
	buf := make([]byte, 4)
	if rerr := m.dev.ReadData(slotAddr, buf); rerr != nil {
		return 0, false, WrapError(CodeSpiInit, "read index slot", rerr)
	}
	addr = byteOrder.Uint32(buf)
	if addr == allOnes32 {
		return 0, false, nil
	}
	return addr, true, nil
}
