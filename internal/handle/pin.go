package handle

import (
	"fmt"

	"github.com/gocorefs/corefs/internal/mmu"
	"github.com/gocorefs/corefs/internal/swap"
	"github.com/gocorefs/corefs/internal/vm/frame"
	"github.com/gocorefs/corefs/internal/vm/page"
)

// ReadUser reads n bytes from f at its current position into the user
// buffer [dest, dest+n), pinning each page it touches for the duration of
// the transfer rather than relying on an incidental access fault to bring
// it in (REDESIGN, see SPEC_FULL.md §4: the original syscall path faults
// pages in by touching them before pinning; here the handle layer calls
// frame.Pin/GetFrame directly).
func (f *File) ReadUser(pt *page.Table, engine *frame.Engine, dest mmu.Addr, n int, owner int) (int, error) {
	return f.transferUser(pt, engine, dest, n, owner, true)
}

// WriteUser writes n bytes from the user buffer [src, src+n) into f at its
// current position, with the same per-page pinning as ReadUser.
func (f *File) WriteUser(pt *page.Table, engine *frame.Engine, src mmu.Addr, n int, owner int) (int, error) {
	return f.transferUser(pt, engine, src, n, owner, false)
}

func (f *File) transferUser(pt *page.Table, engine *frame.Engine, addr mmu.Addr, n int, owner int, isRead bool) (int, error) {
	const pageSize = swap.PageSize
	transferred := 0

	for transferred < n {
		pageAddr := addr - mmu.Addr(uint64(addr)%pageSize)
		entry := pt.Get(pageAddr)
		if entry == nil {
			return transferred, fmt.Errorf("handle: no page table entry for user address %#x", pageAddr)
		}

		engine.Pin(entry)
		got, err := f.transferOnePage(engine, entry, addr, n-transferred, isRead)
		engine.Unpin(entry)
		if err != nil {
			return transferred + got, err
		}

		transferred += got
		addr += mmu.Addr(got)
	}
	return transferred, nil
}

func (f *File) transferOnePage(engine *frame.Engine, entry *page.Entry, addr mmu.Addr, remaining int, isRead bool) (int, error) {
	const pageSize = swap.PageSize

	if entry.Location() != page.LocationFrame {
		if err := engine.GetFrame(entry, 0); err != nil {
			return 0, err
		}
	}
	buf, err := engine.BufferAt(entry)
	if err != nil {
		return 0, err
	}

	pageOff := int(uint64(addr) % pageSize)
	chunk := int(pageSize) - pageOff
	if chunk > remaining {
		chunk = remaining
	}

	if isRead {
		return f.Read(buf[pageOff : pageOff+chunk])
	}
	return f.Write(buf[pageOff : pageOff+chunk])
}
