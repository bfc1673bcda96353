package cmd

import (
	"fmt"
	"time"

	"github.com/gocorefs/corefs/cfg"
	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/ratelimit"
)

// throttleWindow is the averaging window ratelimit.ChooseLimiterCapacity
// uses to size the token bucket backing a rate-limited device.
const throttleWindow = 10 * time.Second

// openDevice opens the configured file-system image, wrapping it in a
// ratelimit.Throttle when the operator has set a positive Device.IORateHz,
// the way the teacher throttles GCS object reads with a token bucket sized
// by ratelimit.ChooseLimiterCapacity.
func openDevice(deviceCfg cfg.DeviceConfig) (blockdev.Device, error) {
	dev, err := blockdev.NewFile(deviceCfg.FileSystemImage, blockdev.Sector(deviceCfg.ImageSectors))
	if err != nil {
		return nil, err
	}

	if deviceCfg.IORateHz <= 0 {
		return dev, nil
	}

	// The throttled device charges SectorSize tokens per sector, so the
	// configured sector rate becomes a byte rate, and the bucket must hold
	// at least one sector's worth of tokens.
	byteRate := deviceCfg.IORateHz * blockdev.SectorSize
	capacity, err := ratelimit.ChooseLimiterCapacity(byteRate, throttleWindow)
	if err != nil {
		return nil, fmt.Errorf("device throttle: %w", err)
	}
	if capacity < blockdev.SectorSize {
		capacity = blockdev.SectorSize
	}
	throttle := ratelimit.NewThrottle(byteRate, capacity)
	return blockdev.NewThrottled(dev, throttle), nil
}
