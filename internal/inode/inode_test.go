package inode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/inode"
)

func newTestTable(t *testing.T, sectors blockdev.Sector) (*inode.Table, *freemap.Map) {
	t.Helper()
	dev := blockdev.NewMemory(sectors)
	fm := freemap.Create(sectors)
	return inode.NewTable(dev, fm), fm
}

func TestCreateAndOpen_ObservesLength(t *testing.T) {
	table, _ := newTestTable(t, 256)
	const sector = blockdev.Sector(10)
	require.NoError(t, table.CreateAt(sector, 5000, false))

	in, err := table.Open(sector)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, in.Length())
	assert.False(t, in.IsDir())
}

func TestWriteThenRead_RoundTrips(t *testing.T) {
	table, _ := newTestTable(t, 256)
	const sector = blockdev.Sector(10)
	require.NoError(t, table.CreateAt(sector, 0, false))
	in, err := table.Open(sector)
	require.NoError(t, err)

	want := []byte("hello, corefs inode layer")
	n, err := in.WriteAt(want, 100)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make([]byte, len(want))
	n, err = in.ReadAt(got, 100)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)
}

func TestSparseRead_ReturnsZeros(t *testing.T) {
	table, _ := newTestTable(t, 512)
	const sector = blockdev.Sector(10)
	require.NoError(t, table.CreateAt(sector, 0, false))
	in, err := table.Open(sector)
	require.NoError(t, err)

	_, err = in.WriteAt([]byte{1}, 0x1_0000)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1_0001, in.Length())

	buf := make([]byte, 0x1_0000)
	n, err := in.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	for _, b := range buf {
		require.EqualValues(t, 0, b)
	}
}

func TestDenyWrite_BlocksWrites(t *testing.T) {
	table, _ := newTestTable(t, 256)
	const sector = blockdev.Sector(10)
	require.NoError(t, table.CreateAt(sector, 0, false))
	in, err := table.Open(sector)
	require.NoError(t, err)

	in.DenyWrite()
	n, err := in.WriteAt([]byte("nope"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	in.AllowWrite()
	n, err = in.WriteAt([]byte("now"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOpen_RefcountsAndCloseFreesOnRemove(t *testing.T) {
	table, fm := newTestTable(t, 256)
	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, table.CreateAt(sector, 4096, false))
	before := fm.InUse()

	in1, err := table.Open(sector)
	require.NoError(t, err)
	in2, err := table.Open(sector)
	require.NoError(t, err)
	assert.Same(t, in1, in2)

	in1.Remove()
	require.NoError(t, table.Close(in1))
	assert.Equal(t, before, fm.InUse(), "sectors should not be freed until the last close")

	require.NoError(t, table.Close(in2))
	assert.Less(t, fm.InUse(), before, "sectors should be freed once the last handle closes a removed inode")
}

func TestDoubleIndirectSpan_RoundTrips(t *testing.T) {
	table, _ := newTestTable(t, blockdev.Sector(inode.NDirect+2*inode.P+20))
	const sector = blockdev.Sector(0)
	length := int64(inode.NDirect+inode.P+5) * blockdev.SectorSize
	require.NoError(t, table.CreateAt(sector+1, length, false))
	in, err := table.Open(sector + 1)
	require.NoError(t, err)

	offset := int64(inode.NDirect+inode.P+2) * blockdev.SectorSize
	pattern := []byte("double-indirect leaf")
	_, err = in.WriteAt(pattern, offset)
	require.NoError(t, err)

	got := make([]byte, len(pattern))
	_, err = in.ReadAt(got, offset)
	require.NoError(t, err)
	assert.Equal(t, pattern, got)
}
