package directory_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/directory"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/inode"
)

func newTestDir(t *testing.T) *directory.Dir {
	t.Helper()
	dev := blockdev.NewMemory(256)
	fm := freemap.Create(256)
	table := inode.NewTable(dev, fm)
	require.NoError(t, table.CreateAt(10, 0, true))
	in, err := table.Open(10)
	require.NoError(t, err)
	return directory.New(in)
}

func TestAddLookup(t *testing.T) {
	d := newTestDir(t)

	require.NoError(t, d.Add("foo", 42))

	got, err := d.Lookup("foo")
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)
}

func TestAdd_DuplicateNameFails(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("foo", 42))

	err := d.Add("foo", 43)

	assert.ErrorIs(t, err, directory.ErrExists)
}

func TestRemove_ReusesSlot(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("foo", 42))
	require.NoError(t, d.Remove("foo"))

	require.NoError(t, d.Add("bar", 43))

	_, err := d.Lookup("foo")
	assert.ErrorIs(t, err, directory.ErrNotFound)
	got, err := d.Lookup("bar")
	require.NoError(t, err)
	assert.EqualValues(t, 43, got)
}

func TestRemove_RefusesDotAndDotDot(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("..", 1))

	err := d.Remove("..")
	assert.ErrorIs(t, err, directory.ErrInvalidEntry)

	err = d.Remove(".")
	assert.ErrorIs(t, err, directory.ErrInvalidEntry)
}

func TestIsEmpty(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("..", 1))

	empty, err := d.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty, "only .. is present, directory should read as empty")

	require.NoError(t, d.Add("child", 2))
	empty, err = d.IsEmpty()
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestReadEntries_IteratesInUseSlotsOnly(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("a", 2))
	require.NoError(t, d.Add("b", 3))
	require.NoError(t, d.Remove("a"))
	require.NoError(t, d.Add("c", 4))

	var names []string
	pos := 0
	for {
		name, next, ok, err := d.ReadEntries(pos)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, name)
		pos = next
	}

	assert.ElementsMatch(t, []string{"b", "c"}, names)

	sort.Strings(names)
	if diff := cmp.Diff([]string{"b", "c"}, names); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}
