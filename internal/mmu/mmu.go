// Package mmu models the out-of-scope page-table/MMU collaborator: install
// a mapping, clear it, and query/clear the accessed and dirty bits, per
// spec §1 and §4.H.
package mmu

// Addr is a page-aligned virtual address.
type Addr uint64

// KernelAddr is a kernel-accessible address of a physical page frame.
type KernelAddr uint64

// MMU is the page-table interface the frame engine drives during
// get_frame, eviction, and pinning.
type MMU interface {
	// Install maps vaddr to kaddr for the owning thread, with the given
	// writable flag.
	Install(vaddr Addr, kaddr KernelAddr, writable bool) error

	// Clear removes any mapping for vaddr.
	Clear(vaddr Addr)

	// Accessed reports the hardware-maintained accessed bit for vaddr.
	Accessed(vaddr Addr) bool

	// ClearAccessed clears the accessed bit for vaddr.
	ClearAccessed(vaddr Addr)

	// Dirty reports the hardware-maintained dirty bit for vaddr.
	Dirty(vaddr Addr) bool
}
