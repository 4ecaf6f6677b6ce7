//go:build linux || freebsd || dragonfly || darwin || solaris

package core

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// classify turns a raw sendfile result into an Outcome. n is the number of
// bytes the kernel reports as moved, already normalized to be non-negative.
func classify(n int64, err error) Outcome {
	if n < 0 {
		n = 0
	}

	switch {
	case err == nil && n == 0:
		return Outcome{Status: StatusEOF}
	case err == nil:
		return Outcome{N: n, Status: StatusSent}
	case errors.Is(err, unix.EINTR):
		return Outcome{N: n, Status: StatusSent}
	case errors.Is(err, unix.EAGAIN):
		return Outcome{N: n, Status: StatusWouldBlock}
	default:
		return Outcome{N: n, Status: StatusFailed, Err: os.NewSyscallError("sendfile", err)}
	}
}
