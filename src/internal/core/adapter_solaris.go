//go:build solaris

package core

import "golang.org/x/sys/unix"

const platformCapability = CapabilitySolaris

// Send calls libsendfile's sendfile(out, in, &off, len). The return value is
// -1 on EAGAIN even after partial progress, so bytes moved are taken from how
// far the kernel advanced off.
func (platformAdapter) Send(dst, src int, offset, count int64) Outcome {
	if count <= 0 {
		return Outcome{Status: StatusSent}
	}

	off := offset

	n, err := unix.Sendfile(dst, src, &off, clampCount(count, maxSendfileSize))

	sent := off - offset
	if sent == 0 && n > 0 {
		sent = int64(n)
	}

	return classify(sent, err)
}
