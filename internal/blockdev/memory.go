package blockdev

import "sync"

// memoryDevice is an in-memory fake Device, grounded on the teacher's
// in-memory GCS bucket fake: a plain byte slice guarded by a mutex, useful
// for tests that want a device without a filesystem underneath them.
type memoryDevice struct {
	mu      sync.Mutex
	data    []byte
	sectors Sector
}

// NewMemory returns a Device backed by a zeroed in-memory buffer of
// sectorCount sectors.
func NewMemory(sectorCount Sector) Device {
	return &memoryDevice{
		data:    make([]byte, int(sectorCount)*SectorSize),
		sectors: sectorCount,
	}
}

func (d *memoryDevice) ReadSector(s Sector, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkBounds(s, d.sectors, dst); err != nil {
		return err
	}
	off := int(s) * SectorSize
	copy(dst, d.data[off:off+SectorSize])
	return nil
}

func (d *memoryDevice) WriteSector(s Sector, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkBounds(s, d.sectors, src); err != nil {
		return err
	}
	off := int(s) * SectorSize
	copy(d.data[off:off+SectorSize], src)
	return nil
}

func (d *memoryDevice) SectorCount() Sector {
	return d.sectors
}
