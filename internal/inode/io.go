package inode

import (
	"github.com/gocorefs/corefs/internal/blockdev"
)

// byteToSector returns the backing sector for offset, per spec §4.B. With
// allocate=false it never mutates the inode and only needs a read lock on
// diskMu (taken by the caller); with allocate=true it lazily grows the
// direct/single-indirect/double-indirect tree and persists the inode's own
// sector, so the caller must hold diskMu for writing.
func (in *Inode) byteToSectorLocked(offset int64, allocate bool) (blockdev.Sector, error) {
	if offset >= MaxFileSize {
		return 0, ErrTooLarge
	}
	sectorIdx := int(offset / blockdev.SectorSize)

	switch {
	case sectorIdx < NDirect:
		return in.resolveDirect(sectorIdx, allocate)
	case sectorIdx < NDirect+P:
		return in.resolveSingleIndirect(sectorIdx-NDirect, allocate)
	default:
		idx := sectorIdx - NDirect - P
		return in.resolveDoubleIndirect(idx/P, idx%P, allocate)
	}
}

func (in *Inode) resolveDirect(i int, allocate bool) (blockdev.Sector, error) {
	s := blockdev.Sector(in.disk.direct[i])
	if s != blockdev.SectorUnallocated {
		return s, nil
	}
	if !allocate {
		return blockdev.SectorUnallocated, nil
	}

	leaf, err := allocateZeroedSector(in.freeMap(), in.device())
	if err != nil {
		return 0, err
	}
	in.disk.direct[i] = uint32(leaf)
	if err := in.persistSelfLocked(); err != nil {
		in.freeMap().Release(leaf, 1)
		in.disk.direct[i] = unallocated
		return 0, err
	}
	return leaf, nil
}

func (in *Inode) resolveSingleIndirect(leafIdx int, allocate bool) (blockdev.Sector, error) {
	idxSector, err := in.ensureIndexSector(&in.disk.singleIndirect, allocate)
	if err != nil || idxSector == blockdev.SectorUnallocated {
		return blockdev.SectorUnallocated, err
	}
	return in.resolveLeafInIndexSector(idxSector, leafIdx, allocate)
}

func (in *Inode) resolveDoubleIndirect(midIdx, leafIdx int, allocate bool) (blockdev.Sector, error) {
	topSector, err := in.ensureIndexSector(&in.disk.doubleIndirect, allocate)
	if err != nil || topSector == blockdev.SectorUnallocated {
		return blockdev.SectorUnallocated, err
	}

	midSector, err := in.resolveIndexSlot(topSector, midIdx, allocate)
	if err != nil || midSector == blockdev.SectorUnallocated {
		return blockdev.SectorUnallocated, err
	}
	return in.resolveLeafInIndexSector(midSector, leafIdx, allocate)
}

// ensureIndexSector allocates and zero-initializes *slot if it is
// unallocated and allocate is requested, persisting the inode's own sector
// afterwards.
func (in *Inode) ensureIndexSector(slot *uint32, allocate bool) (blockdev.Sector, error) {
	s := blockdev.Sector(*slot)
	if s != blockdev.SectorUnallocated {
		return s, nil
	}
	if !allocate {
		return blockdev.SectorUnallocated, nil
	}

	newSector, err := in.freeMap().Allocate(1)
	if err != nil {
		return 0, err
	}
	block := newEmptyIndexBlock()
	if err := in.device().WriteSector(newSector, block.encode()); err != nil {
		in.freeMap().Release(newSector, 1)
		return 0, err
	}

	*slot = uint32(newSector)
	if err := in.persistSelfLocked(); err != nil {
		in.freeMap().Release(newSector, 1)
		*slot = unallocated
		return 0, err
	}
	return newSector, nil
}

// resolveLeafInIndexSector reads indexSector, resolving (and lazily
// allocating) slot leafIdx as a data leaf sector.
func (in *Inode) resolveLeafInIndexSector(indexSector blockdev.Sector, leafIdx int, allocate bool) (blockdev.Sector, error) {
	buf := make([]byte, blockdev.SectorSize)
	if err := in.device().ReadSector(indexSector, buf); err != nil {
		return 0, err
	}
	block := decodeIndexBlock(buf)

	leaf := blockdev.Sector(block[leafIdx])
	if leaf != blockdev.SectorUnallocated {
		return leaf, nil
	}
	if !allocate {
		return blockdev.SectorUnallocated, nil
	}

	newLeaf, err := allocateZeroedSector(in.freeMap(), in.device())
	if err != nil {
		return 0, err
	}
	block[leafIdx] = uint32(newLeaf)
	if err := in.device().WriteSector(indexSector, block.encode()); err != nil {
		in.freeMap().Release(newLeaf, 1)
		return 0, err
	}
	return newLeaf, nil
}

// resolveIndexSlot reads indexSector, resolving (and lazily allocating)
// slot idx as another index sector (used for the double-indirect's middle
// tier).
func (in *Inode) resolveIndexSlot(indexSector blockdev.Sector, idx int, allocate bool) (blockdev.Sector, error) {
	buf := make([]byte, blockdev.SectorSize)
	if err := in.device().ReadSector(indexSector, buf); err != nil {
		return 0, err
	}
	block := decodeIndexBlock(buf)

	child := blockdev.Sector(block[idx])
	if child != blockdev.SectorUnallocated {
		return child, nil
	}
	if !allocate {
		return blockdev.SectorUnallocated, nil
	}

	newChild, err := in.freeMap().Allocate(1)
	if err != nil {
		return 0, err
	}
	childBlock := newEmptyIndexBlock()
	if err := in.device().WriteSector(newChild, childBlock.encode()); err != nil {
		in.freeMap().Release(newChild, 1)
		return 0, err
	}

	block[idx] = uint32(newChild)
	if err := in.device().WriteSector(indexSector, block.encode()); err != nil {
		in.freeMap().Release(newChild, 1)
		return 0, err
	}
	return newChild, nil
}

func (in *Inode) persistSelfLocked() error {
	return in.device().WriteSector(in.sector, in.disk.encode())
}

// ReadAt reads up to len(dst) bytes starting at offset, clamped to the
// inode's current length. Sectors that map to the unallocated sentinel
// produce zeros without touching the device (sparse-file semantics).
func (in *Inode) ReadAt(dst []byte, offset int64) (int, error) {
	in.diskMu.RLock()
	length := int64(in.disk.length)
	n := 0
	size := len(dst)
	if offset >= length {
		in.diskMu.RUnlock()
		return 0, nil
	}
	if offset+int64(size) > length {
		size = int(length - offset)
	}

	bounce := make([]byte, blockdev.SectorSize)
	for n < size {
		pos := offset + int64(n)
		sector, err := in.byteToSectorLocked(pos, false)
		if err != nil {
			in.diskMu.RUnlock()
			return n, err
		}
		sectorOff := int(pos % blockdev.SectorSize)
		chunk := blockdev.SectorSize - sectorOff
		if chunk > size-n {
			chunk = size - n
		}

		if sector == blockdev.SectorUnallocated {
			for i := 0; i < chunk; i++ {
				dst[n+i] = 0
			}
		} else {
			if err := in.device().ReadSector(sector, bounce); err != nil {
				in.diskMu.RUnlock()
				return n, err
			}
			copy(dst[n:n+chunk], bounce[sectorOff:sectorOff+chunk])
		}
		n += chunk
	}
	in.diskMu.RUnlock()
	return n, nil
}

// WriteAt writes len(src) bytes at offset, allocating new sectors as
// needed. If the inode currently has a positive deny-write count, it writes
// zero bytes and returns nil (spec §4.B's deny_write lease). Writes that
// extend the inode's length take extendMu for the duration, serializing
// extensions against each other.
func (in *Inode) WriteAt(src []byte, offset int64) (int, error) {
	in.opMu.Lock()
	denied := in.denyWriteCnt > 0
	in.opMu.Unlock()
	if denied {
		return 0, nil
	}

	in.diskMu.RLock()
	extending := offset+int64(len(src)) > int64(in.disk.length)
	in.diskMu.RUnlock()

	if extending {
		in.extendMu.Lock()
		defer in.extendMu.Unlock()
	}

	in.diskMu.Lock()
	defer in.diskMu.Unlock()

	if offset+int64(len(src)) > MaxFileSize {
		return 0, ErrTooLarge
	}

	bounce := make([]byte, blockdev.SectorSize)
	n := 0
	for n < len(src) {
		pos := offset + int64(n)
		sector, err := in.byteToSectorLocked(pos, true)
		if err != nil {
			return n, err
		}
		sectorOff := int(pos % blockdev.SectorSize)
		chunk := blockdev.SectorSize - sectorOff
		if chunk > len(src)-n {
			chunk = len(src) - n
		}

		if chunk != blockdev.SectorSize {
			if err := in.device().ReadSector(sector, bounce); err != nil {
				return n, err
			}
		}
		copy(bounce[sectorOff:sectorOff+chunk], src[n:n+chunk])
		if err := in.device().WriteSector(sector, bounce); err != nil {
			return n, err
		}
		n += chunk
	}

	if newLen := offset + int64(n); newLen > int64(in.disk.length) {
		in.disk.length = uint32(newLen)
		if err := in.persistSelfLocked(); err != nil {
			return n, err
		}
	}
	return n, nil
}
