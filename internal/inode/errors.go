package inode

import "errors"

var (
	// ErrNoSpace is returned when the free map cannot satisfy an allocation.
	ErrNoSpace = errors.New("inode: no space")
	// ErrTooLarge is returned for an offset beyond MaxFileSize.
	ErrTooLarge = errors.New("inode: file too large")
	// ErrCorrupt is returned when an inode sector's magic value doesn't match.
	ErrCorrupt = errors.New("inode: corrupt on-disk structure")
)
