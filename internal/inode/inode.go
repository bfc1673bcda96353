// Package inode implements spec component B: the on-disk inode layout
// (direct / single-indirect / double-indirect sector pointers) and the
// in-memory, reference-counted inode cache keyed by disk sector.
package inode

import (
	"sync"

	"github.com/jacobsa/syncutil"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/freemap"
)

// Inode is the in-memory, reference-counted inode described in spec §3.
// At most one Inode exists per disk sector, reachable through the owning
// Table.
type Inode struct {
	sector blockdev.Sector
	table  *Table

	// loadGate is closed once the initial disk-image read completes.
	// Concurrent openers block on it instead of busy-looping.
	loadGate chan struct{}
	loadErr  error

	// opMu guards openCount, removed and denyWriteCnt, per the lock table's
	// per-inode "op" mutex.
	opMu         syncutil.InvariantMutex
	openCount    int // GUARDED_BY(opMu)
	removed      bool
	denyWriteCnt int

	// extendMu serializes length-extending writes.
	extendMu sync.Mutex

	// dirMu is the per-directory-inode "dir" mutex; the directory layer
	// takes it directly via DirLock/DirUnlock.
	dirMu sync.Mutex

	// diskMu guards the cached on-disk image, including length, so that
	// concurrent readers never observe a torn length.
	diskMu sync.RWMutex
	disk   onDiskInode // GUARDED_BY(diskMu)
}

func (in *Inode) checkInvariants() {
	if in.openCount < 0 {
		panic("inode: negative open count")
	}
	if in.denyWriteCnt < 0 {
		panic("inode: negative deny-write count")
	}
}

// Sector returns the disk sector backing in.
func (in *Inode) Sector() blockdev.Sector { return in.sector }

// IsDir reports whether the inode describes a directory.
func (in *Inode) IsDir() bool {
	in.diskMu.RLock()
	defer in.diskMu.RUnlock()
	return in.disk.isDirectory != 0
}

// Length returns the current byte length of the inode's content. Reading it
// concurrently with an extending write returns either the old or the new
// length, never a torn value, because it is read under diskMu.
func (in *Inode) Length() int64 {
	in.diskMu.RLock()
	defer in.diskMu.RUnlock()
	return int64(in.disk.length)
}

// DirLock/DirUnlock expose the per-directory "dir" mutex to internal/directory.
func (in *Inode) DirLock()   { in.dirMu.Lock() }
func (in *Inode) DirUnlock() { in.dirMu.Unlock() }

// DenyWrite increments the deny-write lease count, freezing writes until a
// matching AllowWrite. Used to protect a running process's executable.
func (in *Inode) DenyWrite() {
	in.opMu.Lock()
	in.denyWriteCnt++
	in.opMu.Unlock()
}

// AllowWrite releases one deny-write lease.
func (in *Inode) AllowWrite() {
	in.opMu.Lock()
	in.denyWriteCnt--
	in.opMu.Unlock()
}

// Remove marks the inode for deletion. Backing sectors are released when
// the open count later reaches zero (Table.Close).
func (in *Inode) Remove() {
	in.opMu.Lock()
	in.removed = true
	in.opMu.Unlock()
}

// Removed reports whether Remove has been called.
func (in *Inode) Removed() bool {
	in.opMu.Lock()
	defer in.opMu.Unlock()
	return in.removed
}

// OpenCount returns the current open (reference) count.
func (in *Inode) OpenCount() int {
	in.opMu.Lock()
	defer in.opMu.Unlock()
	return in.openCount
}

func newInodeForTable(sector blockdev.Sector, table *Table) *Inode {
	in := &Inode{sector: sector, table: table, openCount: 1, loadGate: make(chan struct{})}
	in.opMu = syncutil.NewInvariantMutex(in.checkInvariants)
	return in
}

// freeMap returns the table's free map; used by ReadAt/WriteAt's calls into
// byteToSector.
func (in *Inode) freeMap() *freemap.Map      { return in.table.fm }
func (in *Inode) device() blockdev.Device    { return in.table.dev }
