package inode

import (
	"fmt"
	"sync"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/metrics"
)

// Table is the global open-inode table: at most one in-memory Inode exists
// per disk sector, reachable through it (spec §3's "Invariant").
type Table struct {
	mu   sync.Mutex // open-inode table mutex
	dev  blockdev.Device
	fm   *freemap.Map
	open map[blockdev.Sector]*Inode
}

func NewTable(dev blockdev.Device, fm *freemap.Map) *Table {
	return &Table{
		dev:  dev,
		fm:   fm,
		open: make(map[blockdev.Sector]*Inode),
	}
}

// UseFreeMap swaps in fm as the table's free map, used once during mount
// after the real bitmap has been read back through a placeholder-backed
// table (see corefs.Mount).
func (t *Table) UseFreeMap(fm *freemap.Map) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fm = fm
}

// CreateAt preallocates all sectors needed to hold length bytes at sector,
// writing a fresh on-disk inode, per spec §4.B's inode_create. It does not
// open the inode; call Open afterwards.
func (t *Table) CreateAt(sector blockdev.Sector, length int64, isDir bool) error {
	if length > MaxFileSize {
		return ErrTooLarge
	}

	dataSectors := int((length + blockdev.SectorSize - 1) / blockdev.SectorSize)
	var allocated []blockdev.Sector
	disk := newEmptyOnDisk(isDir)
	disk.length = uint32(length)

	remaining := dataSectors
	for i := 0; i < NDirect && remaining > 0; i++ {
		leaf, err := allocateZeroedSector(t.fm, t.dev)
		if err != nil {
			releaseAll(t.fm, allocated)
			return err
		}
		allocated = append(allocated, leaf)
		disk.direct[i] = uint32(leaf)
		remaining--
	}

	if remaining > 0 {
		n := remaining
		if n > P {
			n = P
		}
		top, sub, err := buildIndexBlock(t.fm, t.dev, 0, n)
		if err != nil {
			releaseAll(t.fm, allocated)
			return err
		}
		allocated = append(allocated, sub...)
		disk.singleIndirect = uint32(top)
		remaining -= n
	}

	if remaining > 0 {
		n := remaining
		if n > P*P {
			n = P * P
		}
		top, sub, err := buildIndexBlock(t.fm, t.dev, 1, n)
		if err != nil {
			releaseAll(t.fm, allocated)
			return err
		}
		allocated = append(allocated, sub...)
		disk.doubleIndirect = uint32(top)
		remaining -= n
	}

	if remaining > 0 {
		releaseAll(t.fm, allocated)
		return ErrTooLarge
	}

	if err := t.dev.WriteSector(sector, disk.encode()); err != nil {
		releaseAll(t.fm, allocated)
		return err
	}
	return nil
}

// Open returns the in-memory Inode for sector, creating it (and reading the
// disk image) on first open, or incrementing its refcount on reopen. A
// second opener racing a first-time load blocks on the inode's load gate
// rather than busy-looping, per the SUPPLEMENTED FEATURES note on
// inode_open.
func (t *Table) Open(sector blockdev.Sector) (*Inode, error) {
	t.mu.Lock()
	if existing, ok := t.open[sector]; ok {
		existing.opMu.Lock()
		existing.openCount++
		existing.opMu.Unlock()
		t.mu.Unlock()

		<-existing.loadGate
		if existing.loadErr != nil {
			return nil, existing.loadErr
		}
		return existing, nil
	}

	in := newInodeForTable(sector, t)
	t.open[sector] = in
	t.mu.Unlock()
	metrics.OpenInodes.Inc()

	buf := make([]byte, blockdev.SectorSize)
	if err := t.dev.ReadSector(sector, buf); err != nil {
		in.loadErr = err
		close(in.loadGate)
		t.forget(sector)
		return nil, err
	}
	disk, err := decodeOnDisk(buf)
	if err != nil {
		in.loadErr = err
		close(in.loadGate)
		t.forget(sector)
		return nil, err
	}
	in.disk = disk
	close(in.loadGate)
	return in, nil
}

func (t *Table) forget(sector blockdev.Sector) {
	t.mu.Lock()
	delete(t.open, sector)
	t.mu.Unlock()
	metrics.OpenInodes.Dec()
}

// Close decrements in's refcount. When it reaches zero the inode is
// removed from the table and, if marked for deletion, its backing sectors
// are released.
func (t *Table) Close(in *Inode) error {
	in.opMu.Lock()
	in.openCount--
	shouldDestroy := in.openCount == 0
	removed := in.removed
	in.opMu.Unlock()

	if !shouldDestroy {
		return nil
	}

	t.forget(in.sector)

	if !removed {
		return nil
	}

	in.diskMu.RLock()
	disk := in.disk
	in.diskMu.RUnlock()

	for _, s := range disk.direct {
		sec := blockdev.Sector(s)
		if sec == blockdev.SectorUnallocated {
			continue
		}
		if err := t.fm.Release(sec, 1); err != nil {
			return fmt.Errorf("inode: close: %w", err)
		}
	}
	if sec := blockdev.Sector(disk.singleIndirect); sec != blockdev.SectorUnallocated {
		if err := releaseIndexTree(t.fm, t.dev, sec, 0); err != nil {
			return fmt.Errorf("inode: close: %w", err)
		}
	}
	if sec := blockdev.Sector(disk.doubleIndirect); sec != blockdev.SectorUnallocated {
		if err := releaseIndexTree(t.fm, t.dev, sec, 1); err != nil {
			return fmt.Errorf("inode: close: %w", err)
		}
	}
	return t.fm.Release(in.sector, 1)
}

// Stats is a diagnostic snapshot of the open-inode table, reported by fsck.
// The metrics.OpenInodes gauge tracks the same count separately.
type Stats struct {
	OpenCount int
}

func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{OpenCount: len(t.open)}
}
