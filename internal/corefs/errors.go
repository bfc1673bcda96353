package corefs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("corefs: not found")
	ErrExists          = errors.New("corefs: already exists")
	ErrNoSpace         = errors.New("corefs: no space")
	ErrInvalidArgument = errors.New("corefs: invalid argument")
	ErrDirNotEmpty     = errors.New("corefs: directory not empty")
	ErrDirInUse        = errors.New("corefs: directory in use")
	ErrNotADirectory   = errors.New("corefs: not a directory")
	ErrIsADirectory    = errors.New("corefs: is a directory")
)

// Fatal logs msg at error severity and panics, modeling the kernel's
// response to corruption of an on-disk structure expected to hold (bitmap,
// inode magic) or swap exhaustion during eviction (spec §7).
func Fatal(logf func(format string, args ...any), format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if logf != nil {
		logf("%s", msg)
	}
	panic("corefs: fatal: " + msg)
}
