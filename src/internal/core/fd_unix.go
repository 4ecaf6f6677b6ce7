//go:build linux || freebsd || dragonfly || darwin || solaris

package core

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// FD adapts a raw descriptor that the Go runtime does not manage, such as one
// half of a socketpair, into a Destination. Waits are done with poll(2).
type FD struct {
	fd     int
	closed atomic.Bool
}

// NewFD wraps fd. The caller keeps ownership until Close is called.
func NewFD(fd int) *FD {
	return &FD{fd: fd}
}

// Fd returns the wrapped descriptor.
func (f *FD) Fd() int {
	return f.fd
}

// SyscallConn implements syscall.Conn.
func (f *FD) SyscallConn() (syscall.RawConn, error) {
	if f.closed.Load() {
		return nil, os.ErrClosed
	}

	return fdConn{f}, nil
}

// SetNonblock switches the descriptor's O_NONBLOCK flag.
func (f *FD) SetNonblock(nonblocking bool) error {
	return os.NewSyscallError("fcntl", unix.SetNonblock(f.fd, nonblocking))
}

// Nonblocking reports the descriptor's O_NONBLOCK flag.
func (f *FD) Nonblocking() (bool, error) {
	return fdNonblocking(f.fd)
}

// Close closes the descriptor once.
func (f *FD) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return os.ErrClosed
	}

	return os.NewSyscallError("close", unix.Close(f.fd))
}

type fdConn struct {
	f *FD
}

func (c fdConn) Control(fn func(fd uintptr)) error {
	if c.f.closed.Load() {
		return os.ErrClosed
	}

	fn(uintptr(c.f.fd))

	return nil
}

func (c fdConn) Read(fn func(fd uintptr) bool) error {
	return c.wait(fn, unix.POLLIN)
}

func (c fdConn) Write(fn func(fd uintptr) bool) error {
	return c.wait(fn, unix.POLLOUT)
}

func (c fdConn) wait(fn func(fd uintptr) bool, events int16) error {
	for {
		if c.f.closed.Load() {
			return os.ErrClosed
		}

		if fn(uintptr(c.f.fd)) {
			return nil
		}

		if err := pollFD(c.f.fd, events, -1); err != nil {
			return err
		}
	}
}

// pollFD waits until fd reports one of events, an error, or hangup.
func pollFD(fd int, events int16, timeout int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}

	for {
		_, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return os.NewSyscallError("poll", err)
		}

		if fds[0].Revents&unix.POLLNVAL != 0 {
			return os.NewSyscallError("poll", unix.EBADF)
		}

		return nil
	}
}

// writableNow reports whether fd has room for output without waiting.
// Errors and hangups count as writable: the next write will report them.
func writableNow(fd int) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}

	n, err := unix.Poll(fds, 0)
	if err != nil {
		return !errors.Is(err, unix.EINTR)
	}

	return n > 0 && fds[0].Revents != 0
}

func fdNonblocking(fd int) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return false, os.NewSyscallError("fcntl", err)
	}

	return flags&unix.O_NONBLOCK != 0, nil
}

// descriptorNonblocking reads O_NONBLOCK through raw without taking the
// descriptor away from its owner.
func descriptorNonblocking(raw syscall.RawConn) (bool, error) {
	var (
		nonblocking bool
		ferr        error
	)

	if err := raw.Control(func(fd uintptr) {
		nonblocking, ferr = fdNonblocking(int(fd))
	}); err != nil {
		return false, err
	}

	return nonblocking, ferr
}

// WaitWritable blocks until dst can accept output, the wait fails, or a
// write deadline on dst expires. It is meant for callers driving
// TransferOnce in their own loop.
func WaitWritable(dst Destination) error {
	if dst == nil {
		return ioFailure("wait", syscall.EBADF)
	}

	raw, err := dst.SyscallConn()
	if err != nil {
		return ioFailure("wait", err)
	}

	// The first callback runs before the poller is armed, so a descriptor
	// that is already writable returns at once. Later callbacks run after a
	// readiness edge.
	if err := raw.Write(func(fd uintptr) bool {
		return writableNow(int(fd))
	}); err != nil {
		return ioFailure("wait", err)
	}

	return nil
}
