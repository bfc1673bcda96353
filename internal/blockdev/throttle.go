package blockdev

import (
	"context"
	"io"

	"github.com/gocorefs/corefs/internal/ratelimit"
)

// throttledDevice wraps a Device, gating each sector read and write behind
// a ratelimit.Throttle the way the teacher gates GCS object reads with a
// throttled reader. Device has no context.Context of its own (sector I/O is
// synchronous by design), so throttling uses context.Background internally.
type throttledDevice struct {
	wrapped  Device
	throttle ratelimit.Throttle
}

// NewThrottled wraps dev so that every sector read and write first waits on
// throttle for SectorSize tokens.
func NewThrottled(dev Device, throttle ratelimit.Throttle) Device {
	return &throttledDevice{wrapped: dev, throttle: throttle}
}

func (d *throttledDevice) ReadSector(s Sector, dst []byte) error {
	if err := d.throttle.Wait(context.Background(), SectorSize); err != nil {
		return err
	}
	return d.wrapped.ReadSector(s, dst)
}

func (d *throttledDevice) WriteSector(s Sector, src []byte) error {
	if err := d.throttle.Wait(context.Background(), SectorSize); err != nil {
		return err
	}
	return d.wrapped.WriteSector(s, src)
}

func (d *throttledDevice) SectorCount() Sector {
	return d.wrapped.SectorCount()
}

// Close releases the wrapped device if it is an io.Closer, so callers that
// type-assert for Close (as cmd does after blockdev.NewFile) keep working
// whether or not the device is throttled.
func (d *throttledDevice) Close() error {
	if c, ok := d.wrapped.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
