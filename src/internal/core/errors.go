package core

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// ErrorKind is the taxonomy every transfer failure is mapped into.
type ErrorKind int

// Error kinds.
const (
	// KindIO covers every system failure that is not one of the others.
	KindIO ErrorKind = iota
	// KindTypeMismatch means the source is not a regular, open file.
	KindTypeMismatch
	// KindEOF means nothing was transferable at the starting offset.
	KindEOF
	// KindWouldBlock means a non-blocking destination has no room right now.
	KindWouldBlock
)

func (k ErrorKind) String() string {
	switch k {
	case KindTypeMismatch:
		return "type mismatch"
	case KindEOF:
		return "end of file"
	case KindWouldBlock:
		return "would block"
	default:
		return "i/o failure"
	}
}

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrTypeMismatch = errors.New("sendfile: source is not a file")
	ErrEOF          = errors.New("sendfile: end of file reached")
	ErrWouldBlock   = errors.New("sendfile: destination would block")
	ErrIO           = errors.New("sendfile: i/o failure")
)

// TransferError is the only error type returned by transfers.
type TransferError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind. EOF errors also match io.EOF.
func (e *TransferError) Is(target error) bool {
	switch target {
	case ErrTypeMismatch:
		return e.Kind == KindTypeMismatch
	case ErrEOF, io.EOF:
		return e.Kind == KindEOF
	case ErrWouldBlock:
		return e.Kind == KindWouldBlock
	case ErrIO:
		return e.Kind == KindIO
	default:
		return false
	}
}

// KindOf returns the kind of a transfer error, or KindIO for foreign errors.
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}

	return KindIO
}

// Errno extracts the originating system error code, if there is one.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}

	return 0, false
}

func typeMismatch(format string, args ...any) error {
	return &TransferError{Kind: KindTypeMismatch, Op: "sendfile", Err: fmt.Errorf(format, args...)}
}

func endOfFile(op string) error {
	return &TransferError{Kind: KindEOF, Op: op}
}

func wouldBlock(op string) error {
	return &TransferError{Kind: KindWouldBlock, Op: op, Err: syscall.EAGAIN}
}

func ioFailure(op string, err error) error {
	return &TransferError{Kind: KindIO, Op: op, Err: err}
}

// asTransferError keeps an error that already carries a kind and files any
// other error as an i/o failure.
func asTransferError(op string, err error) error {
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}

	return ioFailure(op, err)
}

// mapOutcome converts an adapter outcome with no prior progress into the
// public taxonomy. StatusSent is not an error and yields nil.
func mapOutcome(op string, out Outcome) error {
	switch out.Status {
	case StatusSent:
		return nil
	case StatusEOF:
		return endOfFile(op)
	case StatusWouldBlock:
		return wouldBlock(op)
	default:
		err := out.Err
		if err == nil {
			err = syscall.EIO
		}

		return ioFailure(op, err)
	}
}
