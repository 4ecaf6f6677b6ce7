//go:build darwin

package core

import "golang.org/x/sys/unix"

const platformCapability = CapabilityDarwin

// Send calls sendfile(in, out, off, &len, NULL, 0); len is in/out and holds
// the bytes moved even when the call fails with EAGAIN. Like FreeBSD, a zero
// length asks for the whole file and is never forwarded.
func (platformAdapter) Send(dst, src int, offset, count int64) Outcome {
	if count <= 0 {
		return Outcome{Status: StatusSent}
	}

	off := offset

	written, err := unix.Sendfile(dst, src, &off, clampCount(count, maxSendfileSize))

	return classify(int64(written), err)
}
