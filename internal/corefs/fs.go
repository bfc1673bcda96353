// Package corefs implements spec component D: the path resolver and the
// file-system facade (create/open/remove/chdir/mkdir/readdir) that drives
// the directory and inode layers.
package corefs

import (
	"context"
	"time"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/directory"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/inode"
	"github.com/gocorefs/corefs/internal/sched"
	"github.com/gocorefs/corefs/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/gocorefs/corefs/internal/corefs")

// FS is the file-system facade. It owns no per-thread state; current
// directory and open-file tables live on sched.Thread, reached via the
// context passed to every operation.
type FS struct {
	dev   blockdev.Device
	fm    *freemap.Map
	table *inode.Table

	// freeMapInode is held open for the lifetime of the mount: the free
	// map persists through it, so it must stay the one canonical in-memory
	// inode for FreeMapSector rather than being closed and reopened.
	freeMapInode *inode.Inode
}

func New(dev blockdev.Device, fm *freemap.Map, table *inode.Table, freeMapInode *inode.Inode) *FS {
	return &FS{dev: dev, fm: fm, table: table, freeMapInode: freeMapInode}
}

// Table exposes the open-inode table for the handle layer.
func (fs *FS) Table() *inode.Table { return fs.table }

// FreeMap exposes the free-sector map, used by fsck-style diagnostics.
func (fs *FS) FreeMap() *freemap.Map { return fs.fm }

// Unmount releases the free map's backing inode reference. Call once, when
// shutting the filesystem down.
func (fs *FS) Unmount() error {
	return fs.table.Close(fs.freeMapInode)
}

// resolve implements spec §4.D's get_dir: it walks every component but the
// last, returning the containing directory (owned by the caller — it must
// be closed via fs.table.Close) and the final component as a string, not
// looked up.
func (fs *FS) resolve(ctx context.Context, path string) (*directory.Dir, string, error) {
	ctx, span := tracer.Start(ctx, "resolve")
	defer span.End()

	if path == "" {
		return nil, "", ErrInvalidArgument
	}

	var start blockdev.Sector
	if path[0] == '/' {
		start = freemap.RootDirSector
	} else {
		start = sched.Current(ctx).Cwd()
	}

	comps := splitComponents(path)
	if len(comps) == 0 {
		in, err := fs.table.Open(start)
		if err != nil {
			return nil, "", err
		}
		return directory.New(in), ".", nil
	}

	curIn, err := fs.table.Open(start)
	if err != nil {
		return nil, "", err
	}
	curSector := start
	curDir := directory.New(curIn)

	for i := 0; i < len(comps)-1; i++ {
		name := comps[i]
		nextSector, err := fs.lookupComponent(curDir, curSector, name)
		if err != nil {
			fs.table.Close(curIn)
			return nil, "", err
		}

		nextIn, err := fs.table.Open(nextSector)
		if err != nil {
			fs.table.Close(curIn)
			return nil, "", err
		}
		if !nextIn.IsDir() {
			fs.table.Close(curIn)
			fs.table.Close(nextIn)
			return nil, "", ErrNotADirectory
		}

		fs.table.Close(curIn)
		curIn = nextIn
		curSector = nextSector
		curDir = directory.New(curIn)
	}

	return curDir, comps[len(comps)-1], nil
}

func (fs *FS) lookupComponent(dir *directory.Dir, dirSector blockdev.Sector, name string) (blockdev.Sector, error) {
	switch name {
	case ".":
		return dirSector, nil
	default:
		s, err := dir.Lookup(name)
		if err != nil {
			return 0, ErrNotFound
		}
		return s, nil
	}
}

// Create creates a file (or, with isDir, a directory) named by the final
// component of path, sized size bytes. A new directory's ".." entry is
// inserted before the entry is linked into its parent, and both are
// unwound on failure (spec §4.D).
func (fs *FS) Create(ctx context.Context, path string, size int64, isDir bool) (err error) {
	start := time.Now()
	defer func() { telemetry.RecordOp(ctx, "create", start, err) }()

	dir, name, err := fs.resolve(ctx, path)
	if err != nil {
		return err
	}
	defer fs.table.Close(dir.Inode())

	if name == "." || name == ".." {
		return ErrInvalidArgument
	}
	if _, err := dir.Lookup(name); err == nil {
		return ErrExists
	}

	sector, err := fs.fm.Allocate(1)
	if err != nil {
		return ErrNoSpace
	}
	if err := fs.table.CreateAt(sector, size, isDir); err != nil {
		fs.fm.Release(sector, 1)
		return err
	}

	if isDir {
		childIn, err := fs.table.Open(sector)
		if err != nil {
			fs.fm.Release(sector, 1)
			return err
		}
		childDir := directory.New(childIn)
		if err := childDir.Add("..", dir.Inode().Sector()); err != nil {
			childIn.Remove()
			fs.table.Close(childIn)
			return err
		}
		if err := dir.Add(name, sector); err != nil {
			childIn.Remove()
			fs.table.Close(childIn)
			return err
		}
		return fs.table.Close(childIn)
	}

	if err := dir.Add(name, sector); err != nil {
		if childIn, openErr := fs.table.Open(sector); openErr == nil {
			childIn.Remove()
			fs.table.Close(childIn)
		}
		return err
	}
	return nil
}

// Open resolves path and returns the caller-owned in-memory inode backing
// it. The caller must eventually close it through fs.Table().Close.
func (fs *FS) Open(ctx context.Context, path string) (in *inode.Inode, err error) {
	start := time.Now()
	defer func() { telemetry.RecordOp(ctx, "open", start, err) }()

	dir, name, err := fs.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	defer fs.table.Close(dir.Inode())

	if name == "." {
		return fs.table.Open(dir.Inode().Sector())
	}
	sector, err := dir.Lookup(name)
	if err != nil {
		return nil, ErrNotFound
	}
	return fs.table.Open(sector)
}

// Remove unlinks the final component of path. It refuses "." and "..", a
// non-empty directory, and a directory with any other open handle.
func (fs *FS) Remove(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { telemetry.RecordOp(ctx, "remove", start, err) }()

	dir, name, err := fs.resolve(ctx, path)
	if err != nil {
		return err
	}
	defer fs.table.Close(dir.Inode())

	if name == "." || name == ".." {
		return ErrInvalidArgument
	}

	sector, err := dir.Lookup(name)
	if err != nil {
		return ErrNotFound
	}

	in, err := fs.table.Open(sector)
	if err != nil {
		return err
	}

	if in.IsDir() {
		sub := directory.New(in)
		empty, err := sub.IsEmpty()
		if err != nil {
			fs.table.Close(in)
			return err
		}
		if !empty {
			fs.table.Close(in)
			return ErrDirNotEmpty
		}
		if in.OpenCount() > 1 {
			fs.table.Close(in)
			return ErrDirInUse
		}
	}

	if err := dir.Remove(name); err != nil {
		fs.table.Close(in)
		return err
	}
	in.Remove()
	return fs.table.Close(in)
}

// Mkdir creates an empty directory at path.
func (fs *FS) Mkdir(ctx context.Context, path string) error {
	return fs.Create(ctx, path, 0, true)
}

// Chdir resolves path to a directory and installs it as the calling
// thread's current directory.
func (fs *FS) Chdir(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { telemetry.RecordOp(ctx, "chdir", start, err) }()

	dir, name, err := fs.resolve(ctx, path)
	if err != nil {
		return err
	}
	defer fs.table.Close(dir.Inode())

	targetSector := dir.Inode().Sector()
	if name != "." {
		s, err := dir.Lookup(name)
		if err != nil {
			return ErrNotFound
		}
		targetSector = s
	}

	targetIn, err := fs.table.Open(targetSector)
	if err != nil {
		return err
	}
	defer fs.table.Close(targetIn)
	if !targetIn.IsDir() {
		return ErrNotADirectory
	}

	sched.Current(ctx).SetCwd(targetSector)
	return nil
}
