package blockdev_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
)

type fakeThrottle struct {
	waited uint64
	err    error
}

func (f *fakeThrottle) Capacity() uint64 { return blockdev.SectorSize }

func (f *fakeThrottle) Wait(ctx context.Context, tokens uint64) error {
	f.waited += tokens
	return f.err
}

func TestThrottledDevice_WaitsOncePerSector(t *testing.T) {
	dev := blockdev.NewMemory(2)
	throttle := &fakeThrottle{}
	throttled := blockdev.NewThrottled(dev, throttle)

	want := make([]byte, blockdev.SectorSize)
	for i := range want {
		want[i] = byte(i)
	}

	require.NoError(t, throttled.WriteSector(0, want))
	require.NoError(t, throttled.ReadSector(0, make([]byte, blockdev.SectorSize)))

	assert.EqualValues(t, 2*blockdev.SectorSize, throttle.waited)
}

func TestThrottledDevice_ThrottleErrorShortCircuits(t *testing.T) {
	dev := blockdev.NewMemory(1)
	expectedErr := errors.New("rate limited")
	throttled := blockdev.NewThrottled(dev, &fakeThrottle{err: expectedErr})

	err := throttled.ReadSector(0, make([]byte, blockdev.SectorSize))

	assert.ErrorIs(t, err, expectedErr)
}

func TestThrottledDevice_DelegatesSectorCount(t *testing.T) {
	dev := blockdev.NewMemory(7)
	throttled := blockdev.NewThrottled(dev, &fakeThrottle{})

	assert.EqualValues(t, 7, throttled.SectorCount())
}
