// Package swap implements spec component F: a free list of page-sized runs
// on the swap device.
package swap

import (
	"errors"
	"sync"

	"github.com/gocorefs/corefs/common"
	"github.com/gocorefs/corefs/internal/blockdev"
)

// PageSize is the virtual-memory page size the frame engine and swap pool
// both work in.
const PageSize = 4096

// SectorsPerPage is how many device sectors one page-sized swap slot spans.
const SectorsPerPage = PageSize / blockdev.SectorSize

// Slot identifies a page-sized run on the swap device by its first sector.
type Slot blockdev.Sector

// ErrExhausted is returned by Acquire when the free list is empty. Per
// spec §4.F this is fatal to the requesting eviction, not a recoverable
// error — callers in internal/vm/frame turn it into a panic.
var ErrExhausted = errors.New("swap: pool exhausted")

// Pool is the swap device's free list of page-sized slots.
type Pool struct {
	dev blockdev.Device

	mu   sync.Mutex
	free common.Queue[Slot]
}

// New builds a free list from dev's full capacity, one slot per
// SectorsPerPage-sized run.
func New(dev blockdev.Device) *Pool {
	q := common.NewLinkedListQueue[Slot]()
	total := dev.SectorCount()
	for s := blockdev.Sector(0); s+SectorsPerPage <= total; s += SectorsPerPage {
		q.Push(Slot(s))
	}
	return &Pool{dev: dev, free: q}
}

// Acquire pops a free slot.
func (p *Pool) Acquire() (Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free.IsEmpty() {
		return 0, ErrExhausted
	}
	return p.free.Pop(), nil
}

// Release returns slot to the pool.
func (p *Pool) Release(slot Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free.Push(slot)
}

// Len reports the number of free slots, used by tests asserting the
// free list is non-empty after an eviction round trip.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.Len()
}

// WritePage writes a full page's worth of bytes to slot.
func (p *Pool) WritePage(slot Slot, data []byte) error {
	for i := 0; i < SectorsPerPage; i++ {
		off := i * blockdev.SectorSize
		if err := p.dev.WriteSector(blockdev.Sector(slot)+blockdev.Sector(i), data[off:off+blockdev.SectorSize]); err != nil {
			return err
		}
	}
	return nil
}

// ReadPage reads a full page's worth of bytes from slot into dst.
func (p *Pool) ReadPage(slot Slot, dst []byte) error {
	for i := 0; i < SectorsPerPage; i++ {
		off := i * blockdev.SectorSize
		if err := p.dev.ReadSector(blockdev.Sector(slot)+blockdev.Sector(i), dst[off:off+blockdev.SectorSize]); err != nil {
			return err
		}
	}
	return nil
}
