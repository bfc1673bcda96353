package inode

import (
	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/freemap"
)

// allocateZeroedSector grabs one sector from fm and zero-fills it on disk,
// so that a later sparse read through it never observes stale contents
// (spec §9, "zero-fill-on-allocation semantics").
func allocateZeroedSector(fm *freemap.Map, dev blockdev.Device) (blockdev.Sector, error) {
	s, err := fm.Allocate(1)
	if err != nil {
		return 0, err
	}
	zero := make([]byte, blockdev.SectorSize)
	if err := dev.WriteSector(s, zero); err != nil {
		fm.Release(s, 1)
		return 0, err
	}
	return s, nil
}

func releaseAll(fm *freemap.Map, sectors []blockdev.Sector) {
	for _, s := range sectors {
		fm.Release(s, 1)
	}
}

// buildIndexBlock recursively allocates an index sector and fills each of
// its slots, either with a freshly zeroed data leaf (level 0) or with
// another index block built by recursing with level-1. It stops once
// leavesNeeded leaves have been placed, leaving the remaining slots
// unallocated. On any failure it frees everything it allocated, including
// what it already recursed into, per spec §4.B's "unwinds on any failure by
// freeing everything it allocated."
func buildIndexBlock(fm *freemap.Map, dev blockdev.Device, level int, leavesNeeded int) (top blockdev.Sector, allocated []blockdev.Sector, err error) {
	idxSector, err := fm.Allocate(1)
	if err != nil {
		return 0, nil, err
	}
	allocated = append(allocated, idxSector)

	block := newEmptyIndexBlock()
	remaining := leavesNeeded
	childCapacity := 1
	for i := 0; i < level; i++ {
		childCapacity *= P
	}

	for i := 0; i < P && remaining > 0; i++ {
		if level == 0 {
			leaf, err := allocateZeroedSector(fm, dev)
			if err != nil {
				releaseAll(fm, allocated)
				return 0, nil, err
			}
			allocated = append(allocated, leaf)
			block[i] = uint32(leaf)
			remaining--
			continue
		}

		n := remaining
		if n > childCapacity {
			n = childCapacity
		}
		childTop, childAllocated, err := buildIndexBlock(fm, dev, level-1, n)
		if err != nil {
			releaseAll(fm, allocated)
			return 0, nil, err
		}
		allocated = append(allocated, childAllocated...)
		block[i] = uint32(childTop)
		remaining -= n
	}

	if err := dev.WriteSector(idxSector, func() []byte { b := block.encode(); return b }()); err != nil {
		releaseAll(fm, allocated)
		return 0, nil, err
	}

	return idxSector, allocated, nil
}

// releaseIndexTree walks an index sector (recursing if level > 0) and frees
// every sector it touches, including itself. Called when a removed inode's
// open count reaches zero.
func releaseIndexTree(fm *freemap.Map, dev blockdev.Device, sector blockdev.Sector, level int) error {
	if sector == blockdev.SectorUnallocated {
		return nil
	}

	buf := make([]byte, blockdev.SectorSize)
	if err := dev.ReadSector(sector, buf); err != nil {
		return err
	}
	block := decodeIndexBlock(buf)

	for _, ref := range block {
		child := blockdev.Sector(ref)
		if child == blockdev.SectorUnallocated {
			continue
		}
		if level == 0 {
			if err := fm.Release(child, 1); err != nil {
				return err
			}
		} else if err := releaseIndexTree(fm, dev, child, level-1); err != nil {
			return err
		}
	}

	return fm.Release(sector, 1)
}
