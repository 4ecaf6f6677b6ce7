package core

import (
	"io"
	"syscall"
)

const (
	opTransfer     = "sendfile"
	opTransferOnce = "sendfile_nonblock"
)

// Destination is a writable socket-like value. *net.TCPConn, *net.UnixConn,
// *os.File and *FD all qualify.
type Destination interface {
	syscall.Conn
}

// ModeReporter is implemented by destinations that know their blocking mode
// without asking the kernel.
type ModeReporter interface {
	Nonblocking() (bool, error)
}

// Transferer dispatches transfers to a single Adapter.
type Transferer struct {
	adapter  Adapter
	maxChunk int64
}

// TransfererOption configures a Transferer.
type TransfererOption func(*Transferer)

// WithAdapter replaces the platform adapter.
func WithAdapter(a Adapter) TransfererOption {
	return func(t *Transferer) {
		if a != nil {
			t.adapter = a
		}
	}
}

// WithMaxChunk caps the bytes requested from the adapter per call.
// Values <= 0 keep the default.
func WithMaxChunk(n int64) TransfererOption {
	return func(t *Transferer) {
		if n > 0 {
			t.maxChunk = n
		}
	}
}

// New returns a Transferer bound to the platform adapter unless overridden.
func New(opts ...TransfererOption) *Transferer {
	t := &Transferer{
		adapter:  platformAdapter{},
		maxChunk: maxSendfileSize,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

var defaultTransferer = New()

// Transfer sends src to dst with the process-wide default Transferer.
func Transfer(dst Destination, src io.Reader, opts ...Option) (int64, error) {
	return defaultTransferer.Transfer(dst, src, opts...)
}

// TransferOnce makes one attempt with the process-wide default Transferer.
func TransferOnce(dst Destination, src io.Reader, opts ...Option) (int64, error) {
	return defaultTransferer.TransferOnce(dst, src, opts...)
}

// Capability reports the capability of the bound adapter.
func (t *Transferer) Capability() Capability {
	return t.adapter.Capability()
}

// MaxChunk reports the most bytes requested from the adapter in one call.
func (t *Transferer) MaxChunk() int64 {
	return t.maxChunk
}

// Transfer sends the requested range and retries partial transfers until the
// range is exhausted or the source hits end of file. When dst is
// non-blocking, Transfer waits for writability between attempts; that wait
// honours any write deadline set on dst.
//
// Transfer returns the exact number of bytes sent. On failure it returns 0,
// even if some bytes had already left; use TransferOnce for partial accounting.
func (t *Transferer) Transfer(dst Destination, src io.Reader, opts ...Option) (int64, error) {
	req, err := normalize(src, opts)
	if err != nil {
		return 0, err
	}

	if empty, err := req.empty(opTransfer); empty {
		return 0, err
	}

	raw, nonblocking, err := resolveDestination(dst, true)
	if err != nil {
		return 0, err
	}

	loop := newTransferLoop(opTransfer, req.cursor, req.count)

	err = withSource(req.file, func(sfd int) error {
		return raw.Write(func(dfd uintptr) bool {
			return loop.run(func(cursor, remaining int64) Outcome {
				return t.send(int(dfd), sfd, cursor, remaining)
			}, !nonblocking)
		})
	})

	switch {
	case loop.state == stateFailed:
		return 0, loop.err
	case err != nil:
		return 0, asTransferError(opTransfer, err)
	}

	if err := req.commit(loop.sent); err != nil {
		return 0, err
	}

	return loop.sent, nil
}

// TransferOnce makes exactly one adapter call and never waits. It returns the
// bytes sent, which may be fewer than requested or zero. ErrWouldBlock is
// returned only when nothing at all could be sent.
//
// dst must be non-blocking; against a blocking descriptor the kernel call
// itself may block, which is the caller's concern.
func (t *Transferer) TransferOnce(dst Destination, src io.Reader, opts ...Option) (int64, error) {
	req, err := normalize(src, opts)
	if err != nil {
		return 0, err
	}

	if empty, err := req.empty(opTransferOnce); empty {
		return 0, err
	}

	raw, _, err := resolveDestination(dst, false)
	if err != nil {
		return 0, err
	}

	var out Outcome

	err = withSource(req.file, func(sfd int) error {
		return raw.Write(func(dfd uintptr) bool {
			out = t.send(int(dfd), sfd, req.cursor, req.count)
			return true
		})
	})
	if err != nil {
		return 0, asTransferError(opTransferOnce, err)
	}

	n := out.N
	if n > req.count {
		n = req.count
	}

	switch {
	case out.Status == StatusSent, out.Status == StatusWouldBlock && n > 0:
	default:
		return 0, mapOutcome(opTransferOnce, out)
	}

	if err := req.commit(n); err != nil {
		return 0, err
	}

	return n, nil
}

func (t *Transferer) send(dst, src int, cursor, remaining int64) Outcome {
	if remaining > t.maxChunk {
		remaining = t.maxChunk
	}

	return t.adapter.Send(dst, src, cursor, remaining)
}

// resolveDestination returns dst's raw connection and, when asked, whether
// it is in non-blocking mode.
func resolveDestination(dst Destination, wantMode bool) (syscall.RawConn, bool, error) {
	if dst == nil {
		return nil, false, ioFailure(opTransfer, syscall.EBADF)
	}

	raw, err := dst.SyscallConn()
	if err != nil {
		return nil, false, ioFailure(opTransfer, err)
	}

	if !wantMode {
		return raw, true, nil
	}

	var nonblocking bool
	if mr, ok := dst.(ModeReporter); ok {
		nonblocking, err = mr.Nonblocking()
	} else {
		nonblocking, err = descriptorNonblocking(raw)
	}

	if err != nil {
		return nil, false, ioFailure("fcntl", err)
	}

	return raw, nonblocking, nil
}

// withSource runs fn with the source descriptor held open for its duration.
func withSource(f File, fn func(fd int) error) error {
	sc, err := f.SyscallConn()
	if err != nil {
		return typeMismatch("source descriptor: %w", err)
	}

	var ferr error

	cerr := sc.Control(func(fd uintptr) {
		ferr = fn(int(fd))
	})
	if cerr != nil {
		return typeMismatch("source descriptor: %w", cerr)
	}

	return ferr
}
