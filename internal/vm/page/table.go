package page

import (
	"sync"

	"github.com/gocorefs/corefs/internal/mmu"
)

// Table is a process's supplemental page table: a hash map from
// page-aligned user virtual address to its Entry.
type Table struct {
	mu      sync.Mutex
	entries map[mmu.Addr]*Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[mmu.Addr]*Entry)}
}

// Get returns the entry for addr, or nil if none exists.
func (t *Table) Get(addr mmu.Addr) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[addr]
}

// GetOrInsert returns the existing entry for addr, or inserts and returns a
// fresh writable, unlocked zero-fill entry.
func (t *Table) GetOrInsert(addr mmu.Addr) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[addr]; ok {
		return e
	}
	e := NewZeroFill(addr, true)
	t.entries[addr] = e
	return e
}

// Insert records an already-constructed entry (used for file-backed
// mappings set up at process load time).
func (t *Table) Insert(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[e.Addr] = e
}

// Remove deletes addr's entry and returns it, or nil if none existed.
func (t *Table) Remove(addr mmu.Addr) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[addr]
	delete(t.entries, addr)
	return e
}

// All returns every entry currently tracked, used by process exit to drain
// the table (spec §5's "destroying the supplemental page table").
func (t *Table) All() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
