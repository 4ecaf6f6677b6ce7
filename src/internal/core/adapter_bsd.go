//go:build freebsd || dragonfly

package core

import "golang.org/x/sys/unix"

const platformCapability = CapabilityFreeBSD

// Send calls sendfile(in, out, off, count, NULL, &sbytes, 0). The offset is
// passed by value and the kernel reports progress through sbytes, including
// on EAGAIN. A zero count means "until end of file" to FreeBSD, so it is
// never forwarded.
func (platformAdapter) Send(dst, src int, offset, count int64) Outcome {
	if count <= 0 {
		return Outcome{Status: StatusSent}
	}

	off := offset

	written, err := unix.Sendfile(dst, src, &off, clampCount(count, maxSendfileSize))

	return classify(int64(written), err)
}
