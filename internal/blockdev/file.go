package blockdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileDevice is a Device backed by a regular file, addressed with
// positional pread/pwrite so that concurrent sector I/O from multiple
// goroutines never races on a shared file offset.
type fileDevice struct {
	f       *os.File
	sectors Sector
}

// NewFile opens (or creates) path as a block device of exactly sectorCount
// sectors, truncating or extending the backing file to match.
func NewFile(path string, sectorCount Sector) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}

	size := int64(sectorCount) * SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: truncate %s: %w", path, err)
	}

	return &fileDevice{f: f, sectors: sectorCount}, nil
}

func (d *fileDevice) ReadSector(s Sector, dst []byte) error {
	if err := checkBounds(s, d.sectors, dst); err != nil {
		return err
	}
	n, err := unix.Pread(int(d.f.Fd()), dst, int64(s)*SectorSize)
	if err != nil {
		return fmt.Errorf("blockdev: pread sector %d: %w", s, err)
	}
	if n != SectorSize {
		return fmt.Errorf("blockdev: short pread on sector %d: got %d bytes", s, n)
	}
	return nil
}

func (d *fileDevice) WriteSector(s Sector, src []byte) error {
	if err := checkBounds(s, d.sectors, src); err != nil {
		return err
	}
	n, err := unix.Pwrite(int(d.f.Fd()), src, int64(s)*SectorSize)
	if err != nil {
		return fmt.Errorf("blockdev: pwrite sector %d: %w", s, err)
	}
	if n != SectorSize {
		return fmt.Errorf("blockdev: short pwrite on sector %d: wrote %d bytes", s, n)
	}
	return nil
}

func (d *fileDevice) SectorCount() Sector {
	return d.sectors
}

// Close releases the underlying file descriptor.
func (d *fileDevice) Close() error {
	return d.f.Close()
}
