// Package core moves bytes from a file descriptor to a socket descriptor with the
// platform's sendfile(2) primitive. It normalizes the optional offset and count,
// selects the adapter compiled for the running platform, drives it either in a
// blocking retry loop or as a single non-blocking attempt, and maps every kernel
// outcome onto a small error taxonomy.
package core

// Capability names the zero-copy primitive compiled into the binary.
type Capability int

// Capabilities, one per adapter variant.
const (
	CapabilityNone Capability = iota
	CapabilityLinux
	CapabilityFreeBSD
	CapabilitySolaris
	CapabilityDarwin
)

func (c Capability) String() string {
	switch c {
	case CapabilityLinux:
		return "linux"
	case CapabilityFreeBSD:
		return "freebsd"
	case CapabilitySolaris:
		return "solaris"
	case CapabilityDarwin:
		return "darwin"
	default:
		return "none"
	}
}

// Supported reports whether the capability can move any bytes at all.
func (c Capability) Supported() bool {
	return c != CapabilityNone
}

// Platform returns the capability of the adapter built for this platform.
// The value is a compile-time constant, so every call in a process agrees.
func Platform() Capability {
	return platformCapability
}
