package corefs

import (
	"fmt"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/inode"
)

// Mkfs formats dev from scratch: a fresh bitmap, the free-map file at
// sector 0, and an empty root directory at sector 1, per spec §3/§6. It
// bootstraps the free map's self-hosting the way pintos' free-map.c does:
// the bitmap lives purely in memory, with FreeMapSector and RootDirSector
// already marked used, until the free-map file's own inode has been
// created — at which point AttachBacking starts mirroring every mutation
// to it.
func Mkfs(dev blockdev.Device) (*FS, error) {
	sectors := dev.SectorCount()
	fm := freemap.Create(sectors)
	table := inode.NewTable(dev, fm)

	bitmapLen := freemap.ByteLen(sectors)
	if err := table.CreateAt(freemap.FreeMapSector, bitmapLen, false); err != nil {
		return nil, fmt.Errorf("corefs: mkfs: create free-map file: %w", err)
	}
	fmIn, err := table.Open(freemap.FreeMapSector)
	if err != nil {
		return nil, fmt.Errorf("corefs: mkfs: open free-map file: %w", err)
	}
	if err := fm.AttachBacking(fmIn); err != nil {
		return nil, fmt.Errorf("corefs: mkfs: attach free-map backing: %w", err)
	}

	if err := table.CreateAt(freemap.RootDirSector, 0, true); err != nil {
		return nil, fmt.Errorf("corefs: mkfs: create root directory: %w", err)
	}

	return New(dev, fm, table, fmIn), nil
}

// Mount loads an existing filesystem image from dev.
func Mount(dev blockdev.Device) (*FS, error) {
	sectors := dev.SectorCount()

	// The free map's own inode must be read directly, since Table.Open
	// needs a free map to construct in the first place. Bootstrap with a
	// placeholder in-memory bitmap sized correctly, open the free-map
	// file's inode through a table built against it, then swap the table
	// over to the real bitmap read back through that inode.
	placeholder := freemap.Create(sectors)
	table := inode.NewTable(dev, placeholder)

	fmIn, err := table.Open(freemap.FreeMapSector)
	if err != nil {
		return nil, fmt.Errorf("corefs: mount: open free-map file: %w", err)
	}

	fm, err := freemap.Open(sectors, fmIn)
	if err != nil {
		return nil, fmt.Errorf("corefs: mount: read free-map bitmap: %w", err)
	}

	table.UseFreeMap(fm)
	return New(dev, fm, table, fmIn), nil
}
