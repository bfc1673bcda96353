// Package frame implements spec component H: the global frame list,
// clock-algorithm eviction, and loading pages from swap or the executable
// file on fault.
package frame

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/gocorefs/corefs/common"
	"github.com/gocorefs/corefs/internal/metrics"
	"github.com/gocorefs/corefs/internal/mmu"
	"github.com/gocorefs/corefs/internal/swap"
	"github.com/gocorefs/corefs/internal/telemetry"
	"github.com/gocorefs/corefs/internal/vm/page"
)

var tracer = telemetry.Tracer("github.com/gocorefs/corefs/internal/vm/frame")

// ExecutableReader is the narrow slice of the inode layer's read path the
// frame engine needs to load a page's initial contents from a process
// executable. internal/inode.Inode satisfies it.
type ExecutableReader interface {
	ReadAt(dst []byte, offset int64) (int, error)
}

// Frame is one physical-memory frame record. The back-pointer to its
// supplemental entry is non-owning — the entry is the owning side of the
// relationship (spec §9).
type Frame struct {
	id    int
	kaddr mmu.KernelAddr
	owner int
	page  *page.Entry
	data  []byte
}

func (f *Frame) KernelAddr() mmu.KernelAddr { return f.kaddr }
func (f *Frame) Owner() int                 { return f.owner }

// Engine owns a fixed pool of numFrames physical frames and the global
// clock queue used to choose an eviction victim.
type Engine struct {
	mmu  mmu.MMU
	swap *swap.Pool
	exec ExecutableReader

	mu        sync.Mutex // frame-queue mutex
	queue     common.Queue[*Frame]
	freeSlots []int
	slots     []*Frame

	available *semaphore.Weighted // signalled whenever a page is installed
}

// NewEngine creates a frame engine backed by numFrames physical frames.
func NewEngine(numFrames int, m mmu.MMU, swapPool *swap.Pool, exec ExecutableReader) *Engine {
	free := make([]int, numFrames)
	for i := range free {
		free[i] = i
	}
	const availableCap = 1 << 20
	available := semaphore.NewWeighted(availableCap)
	// Drain it to zero: Acquire only succeeds once a Release has actually
	// signalled progress, turning the weighted semaphore into a counting
	// wakeup rather than a resource pool that starts full.
	_ = available.Acquire(context.Background(), availableCap)

	return &Engine{
		mmu:       m,
		swap:      swapPool,
		exec:      exec,
		queue:     common.NewLinkedListQueue[*Frame](),
		freeSlots: free,
		slots:     make([]*Frame, numFrames),
		available: available,
	}
}

// GetFrame transitions entry into the in_frame state, per spec §4.H: it
// obtains a physical frame (evicting if necessary), loads the page's
// contents from its current backing location, installs the mapping, and
// appends the frame to the clock queue.
func (e *Engine) GetFrame(entry *page.Entry, owner int) error {
	_, span := tracer.Start(context.Background(), "page_fault")
	defer span.End()

	idx, err := e.obtainFreeSlot()
	if err != nil {
		return err
	}

	buf := make([]byte, swap.PageSize)

	entry.Lock()
	loc := entry.LocationLocked()
	switch loc {
	case page.LocationSwap:
		entry.Unlock()
		slot := entry.SwapSlot()
		if err := e.swap.ReadPage(slot, buf); err != nil {
			return err
		}
		e.swap.Release(slot)
		entry.Lock()
	case page.LocationFilesys:
		entry.Unlock()
		off, n := entry.FileInfo()
		if n > 0 {
			if _, err := e.exec.ReadAt(buf[:n], off); err != nil {
				return err
			}
		}
		entry.Lock()
	case page.LocationZero, page.LocationFrame:
		// leave buf zeroed; LocationFrame only reachable if a caller
		// re-faults a resident page, which is a caller bug but harmless.
	}

	fr := &Frame{id: idx, kaddr: e.kaddrOf(idx), owner: owner, page: entry, data: buf}
	e.mu.Lock()
	e.slots[idx] = fr
	e.mu.Unlock()

	if err := e.mmu.Install(entry.Addr, fr.kaddr, entry.Writable); err != nil {
		entry.Unlock()
		return fmt.Errorf("frame: install: %w", err)
	}
	entry.SetFrameLocked(idx)
	entry.Unlock()

	e.mu.Lock()
	e.queue.Push(fr)
	e.mu.Unlock()

	e.available.Release(1)
	metrics.PageFaults.Inc()
	metrics.FramesInUse.Inc()
	return nil
}

func (e *Engine) kaddrOf(idx int) mmu.KernelAddr { return mmu.KernelAddr(idx) }

// obtainFreeSlot returns a free frame arena index, evicting a victim via
// the clock algorithm if the pool is fully allocated.
func (e *Engine) obtainFreeSlot() (int, error) {
	for {
		e.mu.Lock()
		if n := len(e.freeSlots); n > 0 {
			idx := e.freeSlots[n-1]
			e.freeSlots = e.freeSlots[:n-1]
			e.mu.Unlock()
			return idx, nil
		}
		e.mu.Unlock()

		idx, ok, err := e.tryEvict()
		if err != nil {
			return 0, err
		}
		if ok {
			return idx, nil
		}

		if err := e.available.Acquire(context.Background(), 1); err != nil {
			return 0, err
		}
	}
}

// tryEvict scans the clock queue at most 2x its length looking for an
// unpinned victim, per spec §4.H.
func (e *Engine) tryEvict() (idx int, ok bool, err error) {
	e.mu.Lock()
	limit := 2 * e.queue.Len()
	e.mu.Unlock()

	for i := 0; i < limit; i++ {
		e.mu.Lock()
		if e.queue.IsEmpty() {
			e.mu.Unlock()
			return 0, false, nil
		}
		fr := e.queue.Pop()
		e.mu.Unlock()

		entry := fr.page
		entry.Lock()

		if entry.IsPinnedLocked() {
			entry.Unlock()
			e.requeue(fr)
			continue
		}
		if e.mmu.Accessed(entry.Addr) {
			e.mmu.ClearAccessed(entry.Addr)
			entry.Unlock()
			e.requeue(fr)
			continue
		}
		// Re-check locked: the owning thread may have pinned the page
		// between the pop above and this point (spec §9).
		if entry.IsPinnedLocked() {
			entry.Unlock()
			e.requeue(fr)
			continue
		}

		if err := e.evictVictim(fr, entry); err != nil {
			entry.Unlock()
			return 0, false, err
		}
		entry.Unlock()

		e.mu.Lock()
		e.slots[fr.id] = nil
		e.mu.Unlock()
		metrics.Evictions.Inc()
		metrics.FramesInUse.Dec()
		return fr.id, true, nil
	}
	return 0, false, nil
}

func (e *Engine) requeue(fr *Frame) {
	e.mu.Lock()
	e.queue.Push(fr)
	e.mu.Unlock()
}

// evictVictim clears the mapping and writes the frame's contents to swap.
// The caller must hold entry's lock. GetFrame sets every installed page to
// LocationFrame, so the LocationFilesys branch below is not taken for a
// resident page: pages loaded from the executable are written to swap like
// any other, clean or not.
func (e *Engine) evictVictim(fr *Frame, entry *page.Entry) error {
	e.mmu.Clear(entry.Addr)

	if entry.LocationLocked() == page.LocationFilesys && !e.mmu.Dirty(entry.Addr) {
		entry.ClearFrameLocked()
		return nil
	}

	slot, err := e.swap.Acquire()
	if err != nil {
		panic(fmt.Sprintf("frame: swap exhausted during eviction: %v", err))
	}
	if err := e.swap.WritePage(slot, fr.data); err != nil {
		e.swap.Release(slot)
		return err
	}
	entry.TransitionToSwapLocked(slot)
	metrics.SwapWrites.Inc()
	return nil
}

// BufferAt returns the raw bytes of a resident frame backing entry. The
// caller must have pinned entry first (via Pin) and faulted it in (via
// GetFrame) so the slice cannot be evicted or reused out from under it.
func (e *Engine) BufferAt(entry *page.Entry) ([]byte, error) {
	entry.Lock()
	loc := entry.LocationLocked()
	id, hasFrame := entry.FrameIDLocked()
	entry.Unlock()

	if loc != page.LocationFrame || !hasFrame {
		return nil, fmt.Errorf("frame: entry not resident")
	}

	e.mu.Lock()
	fr := e.slots[id]
	e.mu.Unlock()
	if fr == nil {
		return nil, fmt.Errorf("frame: frame slot empty")
	}
	return fr.data, nil
}

// Pin marks entry non-evictable.
func (e *Engine) Pin(entry *page.Entry) { entry.Pin() }

// Unpin clears entry's pin and wakes any evictor blocked because every
// frame was pinned.
func (e *Engine) Unpin(entry *page.Entry) {
	entry.Unpin()
	e.available.Release(1)
}

// FreeEntry releases the resources owned by entry — its frame slot (if
// resident) or swap slot (if swapped out) — called during process exit as
// the supplemental page table is destroyed.
func (e *Engine) FreeEntry(entry *page.Entry) {
	entry.Lock()
	defer entry.Unlock()

	switch entry.LocationLocked() {
	case page.LocationFrame:
		id, ok := entry.FrameIDLocked()
		if !ok {
			return
		}
		e.mmu.Clear(entry.Addr)
		e.mu.Lock()
		e.slots[id] = nil
		e.freeSlots = append(e.freeSlots, id)
		e.removeFromQueueLocked(id)
		e.mu.Unlock()
		e.available.Release(1)
		metrics.FramesInUse.Dec()
	case page.LocationSwap:
		e.swap.Release(entry.SwapSlot())
	}
}

// removeFromQueueLocked drains and rebuilds the queue without frame id.
// Called with e.mu held. Eviction victims are rare relative to reads, and
// the queue is bounded by numFrames, so a linear rebuild is acceptable.
func (e *Engine) removeFromQueueLocked(id int) {
	n := e.queue.Len()
	for i := 0; i < n; i++ {
		fr := e.queue.Pop()
		if fr.id != id {
			e.queue.Push(fr)
		}
	}
}
