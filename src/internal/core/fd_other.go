//go:build !(linux || freebsd || dragonfly || darwin || solaris)

package core

import (
	"errors"
	"syscall"
)

func descriptorNonblocking(syscall.RawConn) (bool, error) {
	return false, nil
}

// WaitWritable is unsupported where no zero-copy primitive exists.
func WaitWritable(dst Destination) error {
	if dst == nil {
		return ioFailure("wait", syscall.EBADF)
	}

	return ioFailure("wait", errors.ErrUnsupported)
}
