package frame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/mmu"
	"github.com/gocorefs/corefs/internal/swap"
	"github.com/gocorefs/corefs/internal/vm/frame"
	"github.com/gocorefs/corefs/internal/vm/page"
)

type noExec struct{}

func (noExec) ReadAt(dst []byte, offset int64) (int, error) { return 0, nil }

func TestGetFrame_ZeroFillThenPinUnpin(t *testing.T) {
	m := mmu.NewFake()
	dev := blockdev.NewMemory(swap.SectorsPerPage * 8)
	pool := swap.New(dev)
	e := frame.NewEngine(2, m, pool, noExec{})

	entry := page.NewZeroFill(0x1000, true)
	require.NoError(t, e.GetFrame(entry, 1))
	assert.Equal(t, page.LocationFrame, entry.Location())

	e.Pin(entry)
	assert.True(t, entry.IsPinned())
	e.Unpin(entry)
	assert.False(t, entry.IsPinned())
}

func TestEviction_RoundTripPreservesContents(t *testing.T) {
	m := mmu.NewFake()
	dev := blockdev.NewMemory(swap.SectorsPerPage * 16)
	pool := swap.New(dev)
	const numFrames = 2
	e := frame.NewEngine(numFrames, m, pool, noExec{})

	entries := make([]*page.Entry, numFrames+1)
	for i := range entries {
		entries[i] = page.NewZeroFill(mmu.Addr(i*0x1000), true)
		require.NoError(t, e.GetFrame(entries[i], 1))
		buf, err := e.BufferAt(entries[i])
		require.NoError(t, err)
		buf[0] = byte(i + 1)
		// Mark dirty and accessed=false so the clock algorithm can evict
		// the earliest pages as later ones arrive.
		m.Touch(entries[i].Addr, true)
		m.ClearAccessed(entries[i].Addr)
	}

	for _, en := range entries {
		assert.Contains(t, []page.Location{page.LocationFrame, page.LocationSwap}, en.Location())
	}

	evictedCount := 0
	for _, en := range entries {
		if en.Location() == page.LocationSwap {
			evictedCount++
		}
	}
	assert.Greater(t, evictedCount, 0, "with numFrames+1 touched pages, at least one must have been evicted")
	assert.Greater(t, pool.Len(), 0)

	// Fault every page back in, newest first, and check its contents
	// survived the trip through swap.
	for i := len(entries) - 1; i >= 0; i-- {
		en := entries[i]
		if en.Location() != page.LocationFrame {
			require.NoError(t, e.GetFrame(en, 1))
		}
		buf, err := e.BufferAt(en)
		require.NoError(t, err)
		assert.Equal(t, byte(i+1), buf[0])
	}
}

func TestBufferAt_ReturnsBackingSliceForResidentEntry(t *testing.T) {
	m := mmu.NewFake()
	dev := blockdev.NewMemory(swap.SectorsPerPage * 8)
	pool := swap.New(dev)
	e := frame.NewEngine(2, m, pool, noExec{})

	entry := page.NewZeroFill(0x1000, true)
	require.NoError(t, e.GetFrame(entry, 1))
	e.Pin(entry)
	defer e.Unpin(entry)

	buf, err := e.BufferAt(entry)
	require.NoError(t, err)
	assert.Len(t, buf, swap.SectorsPerPage*blockdev.SectorSize)

	buf[0] = 0x42
	buf2, err := e.BufferAt(entry)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), buf2[0], "BufferAt must return the same backing slice, not a copy")
}

func TestBufferAt_RejectsNonResidentEntry(t *testing.T) {
	m := mmu.NewFake()
	dev := blockdev.NewMemory(swap.SectorsPerPage * 8)
	pool := swap.New(dev)
	e := frame.NewEngine(2, m, pool, noExec{})

	entry := page.NewZeroFill(0x1000, true)
	_, err := e.BufferAt(entry)
	assert.Error(t, err)
}

func TestPin_PreventsEviction(t *testing.T) {
	m := mmu.NewFake()
	dev := blockdev.NewMemory(swap.SectorsPerPage * 8)
	pool := swap.New(dev)
	e := frame.NewEngine(1, m, pool, noExec{})

	pinned := page.NewZeroFill(0x1000, true)
	require.NoError(t, e.GetFrame(pinned, 1))
	e.Pin(pinned)

	other := page.NewZeroFill(0x2000, true)
	done := make(chan error, 1)
	go func() { done <- e.GetFrame(other, 1) }()

	select {
	case <-done:
		t.Fatal("GetFrame should block while the only frame is pinned")
	default:
	}

	e.Unpin(pinned)
	m.ClearAccessed(pinned.Addr)
	require.NoError(t, <-done)
	assert.Equal(t, page.LocationFrame, other.Location())
}
