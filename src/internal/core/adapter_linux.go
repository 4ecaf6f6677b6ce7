//go:build linux

package core

import "golang.org/x/sys/unix"

const platformCapability = CapabilityLinux

// Send calls sendfile(out, in, &off, count). Passing an explicit offset
// pointer keeps the kernel from moving the source's file position, so the
// cursor stays owned by the caller.
func (platformAdapter) Send(dst, src int, offset, count int64) Outcome {
	if count <= 0 {
		return Outcome{Status: StatusSent}
	}

	off := offset

	n, err := unix.Sendfile(dst, src, &off, clampCount(count, maxSendfileSize))

	return classify(int64(n), err)
}
