// Package sendfile is the public API for zero-copy transfers from files to
// sockets. It re-exports the transfer core and the configuration loader.
//
//	conn, _ := net.Dial("tcp", "10.0.0.2:9009")
//	f, _ := os.Open("disk.img")
//	n, err := sendfile.Transfer(conn.(*net.TCPConn), f, sendfile.WithCount(1<<20))
package sendfile

import (
	"io"

	"github.com/codeslinger/sendfile/src/internal/config"
	"github.com/codeslinger/sendfile/src/internal/core"
)

// Core types are re-exported for public API access.
type (
	Destination = core.Destination
	// File re-exports core.File, the source shape transfers accept.
	File = core.File
	// Option re-exports core.Option.
	Option = core.Option
	// Transferer re-exports core.Transferer.
	Transferer = core.Transferer
	// TransfererOption re-exports core.TransfererOption.
	TransfererOption = core.TransfererOption
	// Adapter re-exports core.Adapter for callers supplying their own primitive.
	Adapter = core.Adapter
	// Outcome re-exports core.Outcome.
	Outcome = core.Outcome
	// Status re-exports core.Status.
	Status = core.Status
	// Capability re-exports core.Capability.
	Capability = core.Capability
	// ErrorKind re-exports core.ErrorKind.
	ErrorKind = core.ErrorKind
	// TransferError re-exports core.TransferError.
	TransferError = core.TransferError
)

// Config types are re-exported for public API access.
type (
	Config = config.Config
	// Profile re-exports config.Profile.
	Profile = config.Profile
	// RetryConfig re-exports config.RetryConfig.
	RetryConfig = config.RetryConfig
	// ServerConfig re-exports config.ServerConfig.
	ServerConfig = config.ServerConfig
	// LogConfig re-exports config.LogConfig.
	LogConfig = config.LogConfig
)

// Re-export constants
const (
	CapabilityNone    = core.CapabilityNone
	CapabilityLinux   = core.CapabilityLinux
	CapabilityFreeBSD = core.CapabilityFreeBSD
	CapabilitySolaris = core.CapabilitySolaris
	CapabilityDarwin  = core.CapabilityDarwin

	KindIO           = core.KindIO
	KindTypeMismatch = core.KindTypeMismatch
	KindEOF          = core.KindEOF
	KindWouldBlock   = core.KindWouldBlock
)

// Sentinel errors for use with errors.Is.
var (
	ErrTypeMismatch = core.ErrTypeMismatch
	ErrEOF          = core.ErrEOF
	ErrWouldBlock   = core.ErrWouldBlock
	ErrIO           = core.ErrIO
)

// Transfer sends src to dst until the requested range is exhausted. src is a
// File, an *io.LimitedReader over one, or an *io.SectionReader over one.
func Transfer(dst Destination, src io.Reader, opts ...Option) (int64, error) {
	return core.Transfer(dst, src, opts...)
}

// TransferOnce makes a single attempt and reports partial progress.
func TransferOnce(dst Destination, src io.Reader, opts ...Option) (int64, error) {
	return core.TransferOnce(dst, src, opts...)
}

// WithOffset starts the transfer at offset without touching the file position.
func WithOffset(offset int64) Option {
	return core.WithOffset(offset)
}

// WithCount bounds the transfer to count bytes.
func WithCount(count int64) Option {
	return core.WithCount(count)
}

// New returns a Transferer bound to the platform adapter unless overridden.
func New(opts ...TransfererOption) *Transferer {
	return core.New(opts...)
}

// WithAdapter replaces the platform adapter.
func WithAdapter(a Adapter) TransfererOption {
	return core.WithAdapter(a)
}

// WithMaxChunk caps the bytes requested per kernel call.
func WithMaxChunk(n int64) TransfererOption {
	return core.WithMaxChunk(n)
}

// Platform reports the zero-copy primitive compiled into the binary.
func Platform() Capability {
	return core.Platform()
}

// WaitWritable blocks until dst can take more bytes. Call it after
// ErrWouldBlock when driving TransferOnce by hand.
func WaitWritable(dst Destination) error {
	return core.WaitWritable(dst)
}

// KindOf returns the kind of a transfer error.
func KindOf(err error) ErrorKind {
	return core.KindOf(err)
}

// LoadConfig loads and validates a configuration file from the specified path.
// An empty path searches the default locations.
func LoadConfig(configPath string) (*Config, error) {
	return config.NewLoader().Load(configPath)
}
