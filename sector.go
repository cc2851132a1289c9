package jesfs

// sadrInvalid mirrors original_source/jesfs_hl.c's sflash_sadr_invalid: the
// all-ones sentinel means "no sector" and is fine, zero is never a legal
// sector address (PSEC 0 holds the superblock/index), and anything not
// sector-aligned or beyond the chip is corruption.
func (m *Mount) sadrInvalid(sadr uint32) bool {
	if sadr == allOnes32 {
		return false
	}
	if sadr == 0 {
		return true
	}
	if sadr%SectorSize != 0 {
		return true
	}
	if sadr >= m.totalSize {
		return true
	}
	return false
}

// allocateFreeSector rotates m.lusectAddr forward through the chip looking
// for a FREE or TODELETE sector (erasing the latter lazily on the spot),
// mirroring sflash_get_free_sector's single forward pass that wraps at the
// top of the chip and never revisits PSEC 0.
func (m *Mount) allocateFreeSector() (uint32, error) {
	maxSect := m.totalSize / SectorSize
	for maxSect > 1 {
		maxSect--
		m.lusectAddr += SectorSize
		if m.lusectAddr >= m.totalSize {
			m.lusectAddr = SectorSize
		}

		hdr, err := m.readSectorHeader(m.lusectAddr)
		if err != nil {
			return 0, err
		}
		switch hdr.Magic {
		case MagicToDelete:
			if err := m.dev.SectorErase4K(m.lusectAddr); err != nil {
				return 0, err
			}
			return m.lusectAddr, nil
		case MagicFree:
			return m.lusectAddr, nil
		}
	}
	return 0, NewError(CodeOutOfSpace, "no free sector available")
}

func (m *Mount) readSectorHeader(addr uint32) (SectorHeader, error) {
	raw := make([]byte, HeaderSize)
	if err := m.dev.ReadData(addr, raw); err != nil {
		return SectorHeader{}, WrapError(CodeSpiInit, "read sector header", err)
	}
	return UnpackSectorHeader(raw)
}

// findLastUsedLength mirrors sflash_find_mlen: an unclosed RAW/append file
// has no reliable LEN, so the actual end of written data is found by
// scanning backward from the high-water mark until a non-0xFF byte turns
// up. maxLen bounds the scan to the caller's known-written region (never
// more than one sector's payload).
func (m *Mount) findLastUsedLength(addr uint32, maxLen uint16) (uint16, error) {
	const chunk = 128
	usedLen := maxLen
	scanAddr := addr + uint32(maxLen)
	remaining := maxLen
	for remaining > 0 {
		wlen := remaining
		if wlen > chunk {
			wlen = chunk
		}
		remaining -= wlen
		scanAddr -= uint32(wlen)

		buf := make([]byte, wlen)
		if err := m.dev.ReadData(scanAddr, buf); err != nil {
			return 0, WrapError(CodeSpiInit, "scan for last-used length", err)
		}
		for i := int(wlen) - 1; i >= 0; i-- {
			if buf[i] != 0xFF {
				return usedLen, nil
			}
			usedLen--
		}
	}
	return 0, nil
}

// isFullyErased reports whether every byte of buf is 0xFF, used by a soft
// Format to catch a PSEC whose MAGIC reads as free but whose body was left
// dirty by a prior crash or bug.
func isFullyErased(buf []byte) bool {
	for _, b := range buf {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// intraFlashCopy copies clen bytes from sadr to dadr in 128-byte chunks,
// page-safe because every PageProgram call already chunks to the 256-byte
// boundary (flash_intrasec_copy).
func (m *Mount) intraFlashCopy(sadr, dadr uint32, clen uint16) error {
	const chunk = 128
	remaining := clen
	for remaining > 0 {
		blen := remaining
		if blen > chunk {
			blen = chunk
		}
		buf := make([]byte, blen)
		if err := m.dev.ReadData(sadr, buf); err != nil {
			return WrapError(CodeSpiInit, "intra-flash copy read", err)
		}
		if err := m.dev.PageProgram(dadr, buf); err != nil {
			return WrapError(CodeWriteFailed, "intra-flash copy write", err)
		}
		sadr += uint32(blen)
		dadr += uint32(blen)
		remaining -= blen
	}
	return nil
}

// setToDelete walks the chain starting at a file's head sector, tombstoning
// the head (HEAD_ACTIVE->HEAD_DELETED) and every data sector it owns
// (DATA->TODELETE), mirroring flash_set2delete. Erasure is deferred to
// allocateFreeSector's lazy reclaim, not done here.
func (m *Mount) setToDelete(headAddr uint32) error {
	maxSect := m.totalSize / SectorSize
	sadr := headAddr
	origHead := headAddr

	for maxSect > 1 {
		maxSect--
		if m.sadrInvalid(sadr) {
			return NewError(CodeBadSectorAddress, "set-to-delete: invalid sector address")
		}
		hdr, err := m.readSectorHeader(sadr)
		if err != nil {
			return err
		}

		switch hdr.Magic {
		case MagicHeadActive:
			if hdr.Owner != allOnes32 {
				return NewError(CodeOwnerMismatch, "set-to-delete: head sector owner must be all-ones")
			}
			hdr.Magic = MagicHeadDeleted
			m.filesActive--
		case MagicData:
			if hdr.Owner != origHead {
				return NewError(CodeOwnerMismatch, "set-to-delete: data sector owner mismatch")
			}
			hdr.Magic = MagicToDelete
			m.availableDiskSize += SectorSize
		default:
			return NewError(CodeBadSectorType, "set-to-delete: unexpected sector magic")
		}

		raw, err := hdr.Pack()
		if err != nil {
			return err
		}
		if err := m.dev.PageProgram(sadr, raw[:4]); err != nil {
			return WrapError(CodeWriteFailed, "set-to-delete: program magic", err)
		}

		next := hdr.Next
		if next == allOnes32 {
			return nil
		}
		sadr = next
	}
	return NewError(CodeChainLoop, "set-to-delete: sector chain too long, probable loop")
}
