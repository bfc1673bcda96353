// Package freemap implements spec component A: a bitmap of the filesystem
// device's sectors, persisted to the reserved free-map file at sector 0.
//
// The free-map file is bootstrapped the way pintos' free-map.c does it: the
// bitmap lives entirely in memory until its own backing inode exists, at
// which point AttachBacking starts mirroring every mutation to disk. This
// lets inode.Table.CreateAt allocate the free-map file's own data sectors by
// calling back into the very bitmap it is about to persist.
package freemap

import (
	"fmt"
	"sync"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/metrics"
)

// FreeMapSector and RootDirSector are the two sectors reserved before any
// allocation runs, per spec §3: "Sector 0 is the free-map file; sector 1 is
// the root directory inode."
const (
	FreeMapSector  blockdev.Sector = 0
	RootDirSector  blockdev.Sector = 1
	firstDataStart blockdev.Sector = 2
)

// ErrNoSpace is returned when an allocation cannot find enough contiguous
// clear bits anywhere in the bitmap.
var ErrNoSpace = fmt.Errorf("freemap: no space")

// BackingFile is the narrow slice of the inode layer's file I/O that the
// free map needs to persist itself once its own inode exists. inode.Inode
// satisfies this; the dependency is expressed as an interface here (rather
// than an import of internal/inode) to avoid a layering cycle, since the
// inode layer itself calls back into Map.Allocate/Release.
type BackingFile interface {
	ReadAt(dst []byte, off int64) (int, error)
	WriteAt(src []byte, off int64) (int, error)
}

// Map is the in-memory bitmap plus an optional backing file it mirrors to.
type Map struct {
	mu        sync.Mutex
	bits      []byte // packed, one bit per sector
	nSectors  blockdev.Sector
	startHint blockdev.Sector
	backing   BackingFile // nil until AttachBacking is called
}

// ByteLen returns the number of bytes the packed bitmap occupies, i.e. the
// size the free-map file's inode must be created with.
func ByteLen(nSectors blockdev.Sector) int64 {
	return int64((nSectors + 7) / 8)
}

// Create initializes a fresh bitmap for a device of nSectors sectors,
// marking FreeMapSector and RootDirSector already in use. The bitmap has no
// backing file yet; call AttachBacking once the free-map file's own inode
// has been created.
func Create(nSectors blockdev.Sector) *Map {
	m := &Map{
		bits:     make([]byte, (nSectors+7)/8),
		nSectors: nSectors,
	}
	m.setBit(FreeMapSector, true)
	m.setBit(RootDirSector, true)
	m.startHint = firstDataStart
	return m
}

// Open loads an existing bitmap from bf, a previously-created free-map
// file's backing inode.
func Open(nSectors blockdev.Sector, bf BackingFile) (*Map, error) {
	m := &Map{
		bits:     make([]byte, (nSectors+7)/8),
		nSectors: nSectors,
		backing:  bf,
	}
	if _, err := bf.ReadAt(m.bits, 0); err != nil {
		return nil, fmt.Errorf("freemap: open: %w", err)
	}
	return m, nil
}

// AttachBacking records bf as the free-map file's backing inode and flushes
// the current in-memory bitmap to it. Called once, right after the free-map
// file's own inode has been created and all of its own sectors allocated.
func (m *Map) AttachBacking(bf BackingFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.backing = bf
	return m.persistLocked()
}

func (m *Map) persistLocked() error {
	if m.backing == nil {
		return nil
	}
	if _, err := m.backing.WriteAt(m.bits, 0); err != nil {
		return fmt.Errorf("freemap: persist: %w", err)
	}
	return nil
}

func (m *Map) bitSet(s blockdev.Sector) bool {
	return m.bits[s/8]&(1<<(s%8)) != 0
}

func (m *Map) setBit(s blockdev.Sector, v bool) {
	if v {
		m.bits[s/8] |= 1 << (s % 8)
	} else {
		m.bits[s/8] &^= 1 << (s % 8)
	}
}

// scanFrom looks for n consecutive clear bits starting at 'from', wrapping
// never — callers retry from zero themselves per spec §4.A.
func (m *Map) scanFrom(from blockdev.Sector, n blockdev.Sector) (blockdev.Sector, bool) {
	if n == 0 || from+n > m.nSectors {
		return 0, false
	}
	run := blockdev.Sector(0)
	start := from
	for s := from; s < m.nSectors; s++ {
		if m.bitSet(s) {
			run = 0
			start = s + 1
			continue
		}
		run++
		if run == n {
			return start, true
		}
	}
	return 0, false
}

// Allocate finds n consecutive clear bits starting at the rotating
// start_hint, sets them, and persists. On a scan failure from the hint it
// retries once from zero. A persist failure rolls back the bits it just set.
func (m *Map) Allocate(n blockdev.Sector) (blockdev.Sector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, ok := m.scanFrom(m.startHint, n)
	if !ok {
		start, ok = m.scanFrom(0, n)
		if !ok {
			return 0, ErrNoSpace
		}
	}

	for s := start; s < start+n; s++ {
		m.setBit(s, true)
	}

	if err := m.persistLocked(); err != nil {
		for s := start; s < start+n; s++ {
			m.setBit(s, false)
		}
		return 0, err
	}

	m.startHint = start + n
	metrics.SectorsAllocated.Add(float64(n))
	return start, nil
}

// Release clears n bits starting at sector, and persists. It is a checked
// error for any of those bits to already be clear.
func (m *Map) Release(sector blockdev.Sector, n blockdev.Sector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for s := sector; s < sector+n; s++ {
		if !m.bitSet(s) {
			return fmt.Errorf("freemap: release: sector %d already free", s)
		}
	}
	for s := sector; s < sector+n; s++ {
		m.setBit(s, false)
	}
	if err := m.persistLocked(); err != nil {
		return err
	}
	metrics.SectorsReleased.Add(float64(n))
	return nil
}

// InUse reports the number of sectors currently marked allocated. Used by
// tests asserting the "bitmap bit count is invariant" property.
func (m *Map) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for s := blockdev.Sector(0); s < m.nSectors; s++ {
		if m.bitSet(s) {
			count++
		}
	}
	return count
}
