package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/gocorefs/corefs/internal/blockdev"
)

// sectorRefSize is sizeof(sector_ref) on disk.
const sectorRefSize = 4

// P is the number of sector references that fit in one index sector.
const P = blockdev.SectorSize / sectorRefSize

// fixedHeaderSize is the byte cost of every field in onDiskInode besides
// the direct array: is_directory, length, single_indirect, double_indirect,
// magic, each stored as a 4-byte word.
const fixedHeaderSize = 5 * 4

// NDirect is however many direct sector pointers fit in the rest of the
// sector after the fixed header, per spec §3.
const NDirect = (blockdev.SectorSize - fixedHeaderSize) / sectorRefSize

// MaxFileSize is (N_direct + P + P^2) * SECTOR_SIZE.
const MaxFileSize = int64(NDirect+P+P*P) * blockdev.SectorSize

// magic sanity-checks that a sector actually holds an inode.
const magic uint32 = 0x494e4f44 // "INOD"

var unallocated = uint32(blockdev.SectorUnallocated)

// onDiskInode is the exact one-sector layout described in spec §3 and §6.
type onDiskInode struct {
	isDirectory    uint32
	length         uint32
	direct         [NDirect]uint32
	singleIndirect uint32
	doubleIndirect uint32
	magic          uint32
}

func newEmptyOnDisk(isDir bool) onDiskInode {
	var d onDiskInode
	if isDir {
		d.isDirectory = 1
	}
	d.singleIndirect = unallocated
	d.doubleIndirect = unallocated
	d.magic = magic
	for i := range d.direct {
		d.direct[i] = unallocated
	}
	return d
}

func (d *onDiskInode) encode() []byte {
	buf := make([]byte, blockdev.SectorSize)
	off := 0
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
		off += 4
	}
	putU32(d.isDirectory)
	putU32(d.length)
	for _, s := range d.direct {
		putU32(s)
	}
	putU32(d.singleIndirect)
	putU32(d.doubleIndirect)
	putU32(d.magic)
	return buf
}

func decodeOnDisk(buf []byte) (onDiskInode, error) {
	if len(buf) != blockdev.SectorSize {
		return onDiskInode{}, fmt.Errorf("inode: bad sector size %d", len(buf))
	}
	var d onDiskInode
	off := 0
	getU32 := func() uint32 {
		v := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		return v
	}
	d.isDirectory = getU32()
	d.length = getU32()
	for i := range d.direct {
		d.direct[i] = getU32()
	}
	d.singleIndirect = getU32()
	d.doubleIndirect = getU32()
	d.magic = getU32()
	if d.magic != magic {
		return onDiskInode{}, fmt.Errorf("inode: %w", ErrCorrupt)
	}
	return d, nil
}

// indexBlock is P packed sector references, the content of any
// single/double-indirect sector.
type indexBlock [P]uint32

func newEmptyIndexBlock() indexBlock {
	var b indexBlock
	for i := range b {
		b[i] = unallocated
	}
	return b
}

func (b *indexBlock) encode() []byte {
	buf := make([]byte, blockdev.SectorSize)
	for i, v := range b {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func decodeIndexBlock(buf []byte) indexBlock {
	var b indexBlock
	for i := range b {
		b[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return b
}
