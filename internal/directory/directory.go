// Package directory implements spec component C: directory entries packed
// into an inode's byte content, with lookup/add/remove/readdir and the
// `.`/`..` semantics described in spec §3-§4.C.
package directory

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/inode"
)

// MaxNameLen is the longest name a directory entry can hold, per spec §3
// ("name: ≤14 bytes").
const MaxNameLen = 14

// entrySize is sizeof({in_use, name[15], inode_sector}) packed, per spec
// §6: name is NUL-terminated in a 15-byte field (14 usable bytes + NUL).
const entrySize = 1 + 15 + 4

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrExists       = errors.New("directory: entry already exists")
	ErrNameTooLong  = errors.New("directory: name too long")
	ErrNotEmpty     = errors.New("directory: not empty")
	ErrInUse        = errors.New("directory: in use")
	ErrInvalidEntry = errors.New("directory: refusing to touch . or ..")
)

type entry struct {
	inUse  bool
	name   string
	sector blockdev.Sector
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entrySize)
	if e.inUse {
		buf[0] = 1
	}
	copy(buf[1:16], e.name)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(e.sector))
	return buf
}

func decodeEntry(buf []byte) entry {
	nameBuf := buf[1:16]
	nul := bytes.IndexByte(nameBuf, 0)
	if nul < 0 {
		nul = len(nameBuf)
	}
	return entry{
		inUse:  buf[0] != 0,
		name:   string(nameBuf[:nul]),
		sector: blockdev.Sector(binary.LittleEndian.Uint32(buf[16:20])),
	}
}

// Dir wraps a directory's backing inode with directory-entry operations.
// Every mutating operation takes the inode's dir lock; Lookup/ReadEntries
// take it for read-like serialization too (REDESIGN, see SPEC_FULL.md: the
// original pintos code does not uniformly acquire this lock).
type Dir struct {
	in *inode.Inode
}

func New(in *inode.Inode) *Dir {
	return &Dir{in: in}
}

func (d *Dir) Inode() *inode.Inode { return d.in }

func (d *Dir) numSlots() int {
	return int(d.in.Length() / entrySize)
}

func (d *Dir) readSlot(i int) (entry, error) {
	buf := make([]byte, entrySize)
	if _, err := d.in.ReadAt(buf, int64(i)*entrySize); err != nil {
		return entry{}, err
	}
	return decodeEntry(buf), nil
}

func (d *Dir) writeSlot(i int, e entry) error {
	_, err := d.in.WriteAt(encodeEntry(e), int64(i)*entrySize)
	return err
}

// Lookup scans linearly for name, returning its backing sector.
func (d *Dir) Lookup(name string) (blockdev.Sector, error) {
	d.in.DirLock()
	defer d.in.DirUnlock()
	return d.lookupLocked(name)
}

func (d *Dir) lookupLocked(name string) (blockdev.Sector, error) {
	n := d.numSlots()
	for i := 0; i < n; i++ {
		e, err := d.readSlot(i)
		if err != nil {
			return 0, err
		}
		if e.inUse && e.name == name {
			return e.sector, nil
		}
	}
	return 0, ErrNotFound
}

// Add inserts name→sector, reusing a free slot if one exists, otherwise
// extending the directory's backing file.
func (d *Dir) Add(name string, sector blockdev.Sector) error {
	if len(name) == 0 || len(name) > MaxNameLen {
		return ErrNameTooLong
	}

	d.in.DirLock()
	defer d.in.DirUnlock()

	if _, err := d.lookupLocked(name); err == nil {
		return ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	n := d.numSlots()
	for i := 0; i < n; i++ {
		e, err := d.readSlot(i)
		if err != nil {
			return err
		}
		if !e.inUse {
			return d.writeSlot(i, entry{inUse: true, name: name, sector: sector})
		}
	}
	return d.writeSlot(n, entry{inUse: true, name: name, sector: sector})
}

// Remove clears name's slot. It refuses to remove "." or "..".
func (d *Dir) Remove(name string) error {
	if name == "." || name == ".." {
		return ErrInvalidEntry
	}

	d.in.DirLock()
	defer d.in.DirUnlock()

	n := d.numSlots()
	for i := 0; i < n; i++ {
		e, err := d.readSlot(i)
		if err != nil {
			return err
		}
		if e.inUse && e.name == name {
			return d.writeSlot(i, entry{})
		}
	}
	return ErrNotFound
}

// IsEmpty reports whether every slot other than "." and ".." is free.
func (d *Dir) IsEmpty() (bool, error) {
	d.in.DirLock()
	defer d.in.DirUnlock()

	n := d.numSlots()
	for i := 0; i < n; i++ {
		e, err := d.readSlot(i)
		if err != nil {
			return false, err
		}
		if e.inUse && e.name != "." && e.name != ".." {
			return false, nil
		}
	}
	return true, nil
}

// ReadEntries returns, in slot order starting at dirPos, the next in-use
// entry name and the dirPos to resume from, or ok=false at end of
// directory. "." is synthesized by the caller (the resolver), never stored
// on disk, per spec §3.
func (d *Dir) ReadEntries(dirPos int) (name string, nextPos int, ok bool, err error) {
	d.in.DirLock()
	defer d.in.DirUnlock()

	n := d.numSlots()
	for i := dirPos; i < n; i++ {
		e, err := d.readSlot(i)
		if err != nil {
			return "", 0, false, err
		}
		if e.inUse {
			return e.name, i + 1, true, nil
		}
	}
	return "", n, false, nil
}
