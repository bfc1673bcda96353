package page

import "github.com/gocorefs/corefs/internal/mmu"

// StackGrowthPushAhead bounds how far below the saved stack pointer a fault
// may land and still count as legitimate stack growth (e.g. the PUSHA
// instruction touches up to 32 bytes below %esp before decrementing it).
const StackGrowthPushAhead = 32

// MaxStackSize bounds how far below the top of user space the stack may
// grow, per spec §4.H's "bounded distance from the top of user space."
const MaxStackSize = 8 * 1024 * 1024

// MaybeGrowStack reports whether a fault at faultAddr, with the thread's
// saved stack pointer at stackPtr and the top of user space at
// userSpaceTop, should be treated as legitimate stack growth rather than a
// segmentation violation.
func MaybeGrowStack(faultAddr, stackPtr, userSpaceTop mmu.Addr) bool {
	if faultAddr > userSpaceTop {
		return false
	}
	if faultAddr+StackGrowthPushAhead < stackPtr {
		return false
	}
	return userSpaceTop-faultAddr <= MaxStackSize
}
