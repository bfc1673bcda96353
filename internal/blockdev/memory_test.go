package blockdev_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
)

func TestMemoryDevice_ReadWriteRoundTrip(t *testing.T) {
	dev := blockdev.NewMemory(4)
	require.EqualValues(t, 4, dev.SectorCount())

	want := make([]byte, blockdev.SectorSize)
	for i := range want {
		want[i] = byte(i)
	}

	require.NoError(t, dev.WriteSector(2, want))

	got := make([]byte, blockdev.SectorSize)
	require.NoError(t, dev.ReadSector(2, got))
	assert.Equal(t, want, got)
}

func TestMemoryDevice_ReadIsZeroedInitially(t *testing.T) {
	dev := blockdev.NewMemory(2)
	buf := make([]byte, blockdev.SectorSize)
	for i := range buf {
		buf[i] = 0xFF
	}

	require.NoError(t, dev.ReadSector(0, buf))

	for _, b := range buf {
		require.EqualValues(t, 0, b)
	}
}

func TestMemoryDevice_OutOfRange(t *testing.T) {
	dev := blockdev.NewMemory(1)
	buf := make([]byte, blockdev.SectorSize)

	err := dev.ReadSector(1, buf)

	var oor *blockdev.ErrOutOfRange
	assert.ErrorAs(t, err, &oor)
}

func TestMemoryDevice_BadBufferSize(t *testing.T) {
	dev := blockdev.NewMemory(1)

	err := dev.WriteSector(0, make([]byte, 10))

	var bad *blockdev.ErrBadBufferSize
	assert.ErrorAs(t, err, &bad)
}
