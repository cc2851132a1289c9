package jesfs

import "github.com/dsoprea/go-logging"

// Open finds or creates a file by name (spec §4.3 "open"). Opening an
// existing file for READ or RAW resumes it as-is; opening for WRITE always
// tombstones any existing chain and starts a fresh head sector, reusing the
// old head's slot. Opening a name that doesn't exist requires OpenCreate.
func (m *Mount) Open(name string, flags OpenFlags) (fd *FileDescriptor, err error) {
	defer recoverErr(&err)

	if aerr := m.checkAwake(); aerr != nil {
		panic(aerr)
	}
	if len(name) == 0 || len(name) > MaxNameLen {
		panic(NewError(CodeBadName, "filename must be 1..21 bytes"))
	}

	headAddr, reclaimable, ferr := m.findByName(name)
	log.PanicIf(ferr)

	fd = &FileDescriptor{mount: m, flags: flags}

	if headAddr != 0 {
		hbuf := make([]byte, HeaderSize+FileInfoSize)
		log.PanicIf(m.dev.ReadData(headAddr, hbuf))
		fi, uerr := UnpackFileInfoHeader(hbuf[HeaderSize:])
		log.PanicIf(uerr)

		fd.headAddr = headAddr
		fd.workAddr = headAddr
		fd.sectorRel = HeadPayloadOffset
		fd.len = fi.Len
		fd.ctime = fi.CTime
		fd.flags |= OpenFlags(fi.OpenFlags) & persistedFlagsMask
		if fd.len == allOnes32 {
			fd.flags |= xOpenUnclosed
		}
		fd.valid = true
		fd.crc = newFileCRC()
		fd.crcEnabled = flags.Has(OpenCRC)

		if flags.Has(OpenRead) || flags.Has(OpenRaw) {
			return fd, nil
		}

		log.PanicIf(m.setToDelete(headAddr))
		reclaimable = headAddr
	} else {
		if !flags.Has(OpenCreate) {
			panic(NewError(CodeNotFound, "file not found"))
		}
	}

	var sfunAddr uint32
	if reclaimable != 0 {
		log.PanicIf(m.dev.SectorErase4K(reclaimable))
		sfunAddr = reclaimable
	} else {
		addr, aerr2 := m.allocateFreeSector()
		log.PanicIf(aerr2)
		log.PanicIf(m.appendIndexSlot(addr))
		sfunAddr = addr
	}

	nameBytes, nerr := nameToBytes(name)
	log.PanicIf(nerr)
	ctime := nowSeconds()

	hdr := SectorHeader{Magic: MagicHeadActive, Owner: allOnes32, Next: allOnes32}
	hdrRaw, perr := hdr.Pack()
	log.PanicIf(perr)

	fi := FileInfoHeader{
		Len:       allOnes32,
		CRC32:     allOnes32,
		Name:      nameBytes,
		CTime:     ctime,
		OpenFlags: uint8(flags),
	}
	fiRaw, perr2 := fi.Pack()
	log.PanicIf(perr2)

	full := make([]byte, 0, HeaderSize+FileInfoSize)
	full = append(full, hdrRaw...)
	full = append(full, fiRaw...)
	log.PanicIf(m.dev.PageProgram(sfunAddr, full))

	fd.headAddr = sfunAddr
	fd.workAddr = sfunAddr
	fd.sectorRel = HeadPayloadOffset
	fd.pos = 0
	fd.len = 0 // known exactly while writing; the on-flash LEN stays all-ones (unclosed) until Close
	fd.ctime = ctime
	fd.flags = flags
	fd.valid = true
	fd.crc = newFileCRC()
	fd.crcEnabled = flags.Has(OpenCRC)

	m.filesActive++

	return fd, nil
}

// Rewind resets a READ/RAW descriptor to the start of the file (fs_rewind).
// Refused on a WRITE descriptor, matching "append only, never re-read"
// write semantics.
func (fd *FileDescriptor) Rewind() (err error) {
	defer recoverErr(&err)
	if verr := fd.checkValid(); verr != nil {
		panic(verr)
	}
	if fd.flags.Has(OpenWrite) {
		panic(NewError(CodeNotWritable, "cannot rewind a file opened for writing"))
	}
	fd.workAddr = fd.headAddr
	fd.pos = 0
	fd.sectorRel = HeadPayloadOffset
	fd.crc.reset()
	return nil
}

// Read fills dest from the current position, chaining across sectors
// transparently and clipping at the file's length (fs_read). When the
// length isn't known yet (an unclosed append/raw file), the current sector
// is scanned backward to find the real end, and the result is memoized.
func (fd *FileDescriptor) Read(dest []byte) (n int, err error) {
	defer recoverErr(&err)
	if verr := fd.checkValid(); verr != nil {
		panic(verr)
	}
	if !fd.flags.Has(OpenRead) && !fd.flags.Has(OpenRaw) {
		panic(NewError(CodeNotWritable, "file not opened for reading"))
	}
	total, rerr := fd.readCore(dest, uint32(len(dest)))
	log.PanicIf(rerr)
	return int(total), nil
}

// Skip advances the read position by n bytes without transferring data or
// updating CRC, exactly as the original's "pdest==NULL means advance only,
// skip reads are declared fast" read mode.
func (fd *FileDescriptor) Skip(n uint32) (err error) {
	defer recoverErr(&err)
	if verr := fd.checkValid(); verr != nil {
		panic(verr)
	}
	_, rerr := fd.readCore(nil, n)
	log.PanicIf(rerr)
	return nil
}

func (fd *FileDescriptor) readCore(pdest []byte, anz uint32) (total uint32, err error) {
	m := fd.mount

	for anz > 0 {
		hbuf := make([]byte, HeaderSize)
		if rerr := m.dev.ReadData(fd.workAddr, hbuf); rerr != nil {
			return total, WrapError(CodeSpiInit, "read sector header", rerr)
		}
		hdr, herr := UnpackSectorHeader(hbuf)
		if herr != nil {
			return total, herr
		}

		switch hdr.Magic {
		case MagicHeadActive:
			if hdr.Owner != allOnes32 {
				return total, NewError(CodeBadHeader, "head sector owner must be all-ones")
			}
		case MagicData:
			if hdr.Owner != fd.headAddr {
				return total, NewError(CodeOwnerMismatch, "data sector owner mismatch")
			}
		default:
			return total, NewError(CodeBadSectorType, "unexpected sector magic while reading")
		}

		next := hdr.Next
		if m.sadrInvalid(next) {
			return total, NewError(CodeBadSectorAddress, "invalid next-sector address")
		}

		for anz > 0 {
			maxSecRd := SectorSize - fd.sectorRel
			if maxSecRd > SectorSize-HeaderSize {
				return total, NewError(CodeDescriptorCorrupt, "sector offset beyond payload region")
			}

			if fd.len != allOnes32 {
				remaining := fd.len - fd.pos
				if anz > remaining {
					anz = remaining
				}
			} else if next == allOnes32 {
				ucLen, ferr := m.findLastUsedLength(fd.workAddr+fd.sectorRel, uint16(maxSecRd))
				if ferr != nil {
					return total, ferr
				}
				fd.len = fd.pos + uint32(ucLen)
				if anz > uint32(ucLen) {
					anz = uint32(ucLen)
				}
			}

			chunk := maxSecRd
			if chunk > anz {
				chunk = anz
			}

			if pdest != nil {
				if werr := m.dev.ReadData(fd.workAddr+fd.sectorRel, pdest[:chunk]); werr != nil {
					return total, WrapError(CodeSpiInit, "read payload", werr)
				}
				if fd.crcEnabled {
					fd.crc.update(pdest[:chunk])
				}
				pdest = pdest[chunk:]
			}

			anz -= chunk
			fd.pos += chunk
			fd.sectorRel += chunk
			total += chunk

			if fd.sectorRel == SectorSize {
				if next != allOnes32 {
					fd.workAddr = next
					fd.sectorRel = HeaderSize
				}
				break
			}
		}
	}
	return total, nil
}

// Write appends data to the file (fs_write), allocating new sectors as the
// current one fills and chaining them via NEXT following the
// MAGIC+OWNER-before-NEXT crash-consistency invariant (spec §4.3).
func (fd *FileDescriptor) Write(data []byte) (err error) {
	defer recoverErr(&err)
	if verr := fd.checkValid(); verr != nil {
		panic(verr)
	}
	m := fd.mount

	if fd.flags.Has(OpenRaw) {
		if fd.pos != fd.len {
			panic(NewError(CodeWriteUnknownEnd, "cannot write to a RAW file except at its current end"))
		}
	} else if !fd.flags.Has(OpenWrite) {
		panic(NewError(CodeNotWritable, "file not opened for writing"))
	}

	for len(data) > 0 {
		maxWrite := SectorSize - fd.sectorRel
		if maxWrite > SectorSize {
			panic(NewError(CodeSectorBoundary, "sector offset beyond sector size"))
		}
		if maxWrite == 0 {
			newSect, aerr := m.allocateFreeSector()
			log.PanicIf(aerr)
			m.availableDiskSize -= SectorSize

			newHdr := SectorHeader{Magic: MagicData, Owner: fd.headAddr, Next: allOnes32}
			newHdrRaw, perr := newHdr.Pack()
			log.PanicIf(perr)
			log.PanicIf(m.dev.PageProgram(newSect, newHdrRaw[:8]))

			var nextRaw [4]byte
			byteOrder.PutUint32(nextRaw[:], newSect)
			log.PanicIf(m.dev.PageProgram(fd.workAddr+8, nextRaw[:]))

			fd.workAddr = newSect
			fd.sectorRel = HeaderSize
			maxWrite = SectorSize - HeaderSize
		}

		wlen := uint32(len(data))
		if wlen > maxWrite {
			wlen = maxWrite
		}
		if fd.crcEnabled {
			fd.crc.update(data[:wlen])
		}
		log.PanicIf(m.dev.PageProgram(fd.workAddr+fd.sectorRel, data[:wlen]))

		data = data[wlen:]
		fd.sectorRel += wlen
		fd.pos += wlen
		if fd.len != allOnes32 {
			fd.len = fd.pos
		}
	}
	return nil
}

// Close finalizes a WRITE descriptor by programming its final LEN and
// CRC32 into the head sector (fs_close). READ/RAW descriptors merely
// invalidate. A descriptor can only be used through Close once.
func (fd *FileDescriptor) Close() (err error) {
	defer recoverErr(&err)
	if verr := fd.checkValid(); verr != nil {
		panic(verr)
	}
	m := fd.mount
	headAddr := fd.headAddr
	fd.valid = false

	if !fd.flags.Has(OpenWrite) {
		return nil
	}
	if m.sadrInvalid(headAddr) {
		panic(NewError(CodeBadSectorAddress, "invalid head sector address on close"))
	}

	crc := allOnes32
	if fd.crcEnabled {
		crc = fd.crc.value()
	}
	var hinfo [8]byte
	byteOrder.PutUint32(hinfo[0:4], fd.pos)
	byteOrder.PutUint32(hinfo[4:8], crc)
	log.PanicIf(m.dev.PageProgram(headAddr+HeaderSize, hinfo[:]))
	return nil
}

// GetCRC32 reads the persisted CRC-32 directly from the head sector,
// independent of any running descriptor state (fs_get_crc32).
func (fd *FileDescriptor) GetCRC32() (uint32, error) {
	if verr := fd.checkValid(); verr != nil {
		return 0, verr
	}
	buf := make([]byte, 4)
	if err := fd.mount.dev.ReadData(fd.headAddr+HeaderSize+4, buf); err != nil {
		return 0, WrapError(CodeSpiInit, "read persisted crc32", err)
	}
	return byteOrder.Uint32(buf), nil
}

// Delete tombstones a file's chain (fs_delete). Refused on a descriptor
// still open for writing.
func (fd *FileDescriptor) Delete() (err error) {
	defer recoverErr(&err)
	if verr := fd.checkValid(); verr != nil {
		panic(verr)
	}
	if fd.flags.Has(OpenWrite) {
		panic(NewError(CodeNotWritable, "cannot delete a file that's open for writing"))
	}
	log.PanicIf(fd.mount.setToDelete(fd.headAddr))
	fd.valid = false
	return nil
}

// Rename gives src's content dst's name and open flags: dst must be a
// freshly-created empty file (the write target supplying the new identity),
// and everything about src that actually describes its data — LEN, CRC32,
// CTIME, and its NEXT chain — survives unchanged (DESIGN.md "rename field
// preservation"). The new combined head is staged durably on dst's sector
// (name/flags from dst, data fields from src, payload copied from src)
// before src is ever erased, so a crash before that erase leaves the old src
// head intact next to a half-written dst head (spec §4.3 "rename", §7). The
// staged dst head does not link src's NEXT chain. Fsck reports an index slot
// left pointing at an erased src sector as an error; it does not complete
// an interrupted rename.
func (src *FileDescriptor) Rename(dst *FileDescriptor) (err error) {
	defer recoverErr(&err)
	if verr := src.checkValid(); verr != nil {
		panic(verr)
	}
	if verr := dst.checkValid(); verr != nil {
		panic(verr)
	}
	if !src.flags.Has(OpenWrite) && !src.flags.Has(OpenRaw) {
		panic(NewError(CodeRenameBadFlags, "rename source must be open for writing or raw, not read-only"))
	}
	if dst.flags.Has(OpenRead) || dst.flags.Has(OpenRaw) {
		panic(NewError(CodeRenameBadFlags, "rename target must be open for writing, not read/raw"))
	}
	if dst.len != 0 {
		panic(NewError(CodeRenameNeedsEmptyTarget, "rename target must be a freshly created empty file"))
	}

	m := src.mount

	srcHbuf := make([]byte, HeaderSize+FileInfoSize)
	log.PanicIf(m.dev.ReadData(src.headAddr, srcHbuf))
	srcHdr, herr := UnpackSectorHeader(srcHbuf[:HeaderSize])
	log.PanicIf(herr)
	srcFI, ferr := UnpackFileInfoHeader(srcHbuf[HeaderSize:])
	log.PanicIf(ferr)

	dstFIbuf := make([]byte, FileInfoSize)
	log.PanicIf(m.dev.ReadData(dst.headAddr+HeaderSize, dstFIbuf))
	dstFI, ferr2 := UnpackFileInfoHeader(dstFIbuf)
	log.PanicIf(ferr2)

	var mlen uint16
	if srcFI.Len == allOnes32 {
		ucLen, lerr := m.findLastUsedLength(src.headAddr+HeadPayloadOffset, HeadPayloadCapacity)
		log.PanicIf(lerr)
		mlen = ucLen
	} else if srcFI.Len > HeadPayloadCapacity {
		mlen = HeadPayloadCapacity
	} else {
		mlen = uint16(srcFI.Len)
	}

	combined := FileInfoHeader{
		Len:       srcFI.Len,
		CRC32:     srcFI.CRC32,
		Name:      dstFI.Name,
		CTime:     srcFI.CTime,
		OpenFlags: dstFI.OpenFlags,
	}
	combinedRaw, perr := combined.Pack()
	log.PanicIf(perr)
	log.PanicIf(m.dev.PageProgram(dst.headAddr+HeaderSize, combinedRaw))

	log.PanicIf(m.intraFlashCopy(src.headAddr+HeadPayloadOffset, dst.headAddr+HeadPayloadOffset, mlen))

	log.PanicIf(m.dev.SectorErase4K(src.headAddr))

	log.PanicIf(m.dev.PageProgram(src.headAddr+HeaderSize, combinedRaw))
	log.PanicIf(m.intraFlashCopy(dst.headAddr+HeadPayloadOffset, src.headAddr+HeadPayloadOffset, mlen))

	newHdr := SectorHeader{Magic: MagicHeadActive, Owner: allOnes32, Next: srcHdr.Next}
	newHdrRaw, perr2 := newHdr.Pack()
	log.PanicIf(perr2)
	log.PanicIf(m.dev.PageProgram(src.headAddr, newHdrRaw))

	dst.flags = 0
	log.PanicIf(m.setToDelete(dst.headAddr))
	dst.valid = false

	return nil
}

// Info returns a snapshot of the index slot at position fno (fs_info), or
// Status.Has(StatEndOfIndex) if that slot has never been populated.
func (m *Mount) Info(fno uint16) (stat FileStat, err error) {
	defer recoverErr(&err)

	addr, populated, rerr := m.readIndexSlot(fno)
	log.PanicIf(rerr)
	if !populated {
		return FileStat{Status: StatEndOfIndex}, nil
	}
	if addr >= m.dev.TotalSize() {
		panic(NewError(CodeBadStatIndex, "index slot points past the end of flash"))
	}

	hbuf := make([]byte, HeaderSize+FileInfoSize)
	log.PanicIf(m.dev.ReadData(addr, hbuf))
	hdr, herr := UnpackSectorHeader(hbuf[:HeaderSize])
	log.PanicIf(herr)
	fi, ferr := UnpackFileInfoHeader(hbuf[HeaderSize:])
	log.PanicIf(ferr)

	var status StatFlags
	switch hdr.Magic {
	case MagicHeadActive:
		status = StatActive
	case MagicHeadDeleted:
		status = StatInactive
	default:
		panic(NewError(CodeBadHeader, "index slot does not point at a head sector"))
	}

	diskFlags := OpenFlags(fi.OpenFlags)
	length := fi.Len
	if length == allOnes32 {
		status |= StatUnclosed
		diskFlags |= xOpenUnclosed
	}

	return FileStat{
		Name:      fi.NameString(),
		CTime:     fi.CTime,
		Len:       length,
		CRC32:     fi.CRC32,
		DiskFlags: diskFlags,
		Status:    status,
	}, nil
}
