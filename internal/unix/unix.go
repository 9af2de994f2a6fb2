//go:build unix

// Package unix provides platform-specific constants and errno
// classification for channel I/O.
package unix

import (
	"errors"
	"io/fs"
	"syscall"
)

// ONonblock is the non-blocking I/O open flag.
const ONonblock = syscall.O_NONBLOCK

// IsNotReady reports whether err indicates an input channel that is absent
// or has no reader attached, as opposed to a genuine I/O failure.
//
// ENOENT: the socket unit has not created the channel (or already removed
// it). ENXIO: a FIFO opened O_WRONLY|O_NONBLOCK with no reader on the other
// end. ECONNREFUSED: a socket file exists but nothing is accepting.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ENOENT,
		syscall.ENXIO,
		syscall.ENODEV,
		syscall.ECONNREFUSED,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
