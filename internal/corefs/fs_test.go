package corefs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/corefs"
	"github.com/gocorefs/corefs/internal/directory"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/sched"
)

func newTestFS(t *testing.T) (*corefs.FS, context.Context) {
	t.Helper()
	dev := blockdev.NewMemory(1024)
	fs, err := corefs.Mkfs(dev)
	require.NoError(t, err)

	th := sched.NewThread(1, freemap.RootDirSector)
	ctx := sched.WithThread(context.Background(), th)
	return fs, ctx
}

func TestMkfs_RootDirectoryExistsAndIsEmpty(t *testing.T) {
	fs, ctx := newTestFS(t)

	in, err := fs.Open(ctx, "/")
	require.NoError(t, err)
	defer fs.Table().Close(in)
	assert.True(t, in.IsDir())

	empty, err := directory.New(in).IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestCreateThenOpen(t *testing.T) {
	fs, ctx := newTestFS(t)

	require.NoError(t, fs.Create(ctx, "/foo", 100, false))

	in, err := fs.Open(ctx, "/foo")
	require.NoError(t, err)
	defer fs.Table().Close(in)
	assert.EqualValues(t, 100, in.Length())
	assert.False(t, in.IsDir())
}

func TestCreate_DuplicateNameFails(t *testing.T) {
	fs, ctx := newTestFS(t)
	require.NoError(t, fs.Create(ctx, "/foo", 0, false))

	err := fs.Create(ctx, "/foo", 0, false)

	assert.ErrorIs(t, err, corefs.ErrExists)
}

func TestDirectoryRecursion(t *testing.T) {
	fs, ctx := newTestFS(t)

	require.NoError(t, fs.Mkdir(ctx, "/a"))
	require.NoError(t, fs.Mkdir(ctx, "/a/b"))
	require.NoError(t, fs.Chdir(ctx, "/a"))
	require.NoError(t, fs.Mkdir(ctx, "c"))

	bIn, err := fs.Open(ctx, "/a/b")
	require.NoError(t, err)
	cIn, err := fs.Open(ctx, "/a/c")
	require.NoError(t, err)

	aIn, err := fs.Open(ctx, "/a")
	require.NoError(t, err)
	assert.EqualValues(t, aIn.Sector(), mustReadDotDot(t, fs, bIn))
	assert.EqualValues(t, aIn.Sector(), mustReadDotDot(t, fs, cIn))
	fs.Table().Close(aIn)
	fs.Table().Close(bIn)
	fs.Table().Close(cIn)

	err = fs.Remove(ctx, "/a")
	assert.ErrorIs(t, err, corefs.ErrDirNotEmpty)

	require.NoError(t, fs.Chdir(ctx, "/"))
	require.NoError(t, fs.Remove(ctx, "/a/b"))
	require.NoError(t, fs.Remove(ctx, "/a/c"))
	require.NoError(t, fs.Remove(ctx, "/a"))

	_, err = fs.Open(ctx, "/a")
	assert.ErrorIs(t, err, corefs.ErrNotFound)
}

func mustReadDotDot(t *testing.T, fs *corefs.FS, in interface {
	ReadAt([]byte, int64) (int, error)
}) blockdev.Sector {
	t.Helper()
	buf := make([]byte, 20)
	_, err := in.ReadAt(buf, 0)
	require.NoError(t, err)
	// entry layout: [in_use(1)][name(15)][sector(4)] — ".." is the first
	// entry inserted by Create(is_dir=true).
	return blockdev.Sector(uint32(buf[16]) | uint32(buf[17])<<8 | uint32(buf[18])<<16 | uint32(buf[19])<<24)
}

func TestRemove_RefusesDotAndDotDot(t *testing.T) {
	fs, ctx := newTestFS(t)
	require.NoError(t, fs.Mkdir(ctx, "/a"))

	err := fs.Remove(ctx, "/a/.")
	assert.ErrorIs(t, err, corefs.ErrInvalidArgument)
}
