// Package handle implements spec component E: a thin wrapper around an
// in-memory inode carrying an independent byte cursor and directory
// iteration cursor.
package handle

import (
	"github.com/gocorefs/corefs/internal/directory"
	"github.com/gocorefs/corefs/internal/inode"
)

// File wraps a file inode with the seek position used by read/write/seek/
// tell/length.
type File struct {
	in  *inode.Inode
	pos int64
}

func NewFile(in *inode.Inode) *File {
	return &File{in: in}
}

func (f *File) Inode() *inode.Inode { return f.in }

// Read reads into dst starting at the current position, advancing it.
func (f *File) Read(dst []byte) (int, error) {
	n, err := f.in.ReadAt(dst, f.pos)
	f.pos += int64(n)
	return n, err
}

// Write writes src at the current position, advancing it.
func (f *File) Write(src []byte) (int, error) {
	n, err := f.in.WriteAt(src, f.pos)
	f.pos += int64(n)
	return n, err
}

// Seek sets the byte cursor.
func (f *File) Seek(off int64) { f.pos = off }

// Tell returns the current byte cursor.
func (f *File) Tell() int64 { return f.pos }

// Length returns the backing inode's current length.
func (f *File) Length() int64 { return f.in.Length() }

// Close decrements the backing inode's refcount.
func (f *File) Close(table *inode.Table) error {
	return table.Close(f.in)
}

// Dir wraps a directory inode with an independent iteration cursor
// (dir_pos), separate from any byte cursor (spec §9's "directory iteration
// cursor independence").
type Dir struct {
	dir    *directory.Dir
	dirPos int
}

func NewDir(dir *directory.Dir) *Dir {
	return &Dir{dir: dir}
}

func (d *Dir) Inode() *inode.Inode { return d.dir.Inode() }

// ReadDir returns the next entry name, advancing dir_pos, or ok=false at
// end of directory.
func (d *Dir) ReadDir() (name string, ok bool, err error) {
	name, next, ok, err := d.dir.ReadEntries(d.dirPos)
	if err != nil {
		return "", false, err
	}
	if ok {
		d.dirPos = next
	}
	return name, ok, nil
}

// Close decrements the backing inode's refcount.
func (d *Dir) Close(table *inode.Table) error {
	return table.Close(d.dir.Inode())
}
