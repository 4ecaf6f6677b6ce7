//go:build !linux && !freebsd && !dragonfly && !darwin && !solaris

package core

import (
	"errors"
	"os"
)

const platformCapability = CapabilityNone

// Send always fails: there is no zero-copy primitive on this platform and
// the package does not fall back to a user-space copy.
func (platformAdapter) Send(_, _ int, _, _ int64) Outcome {
	return Outcome{
		Status: StatusFailed,
		Err:    os.NewSyscallError("sendfile", errors.ErrUnsupported),
	}
}
