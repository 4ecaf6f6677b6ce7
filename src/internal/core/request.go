package core

import (
	"fmt"
	"io"
	"io/fs"
	"syscall"
)

// File is a readable, seekable source backed by a descriptor. *os.File
// satisfies it.
type File interface {
	syscall.Conn
	Stat() (fs.FileInfo, error)
	Seek(offset int64, whence int) (int64, error)
}

// Option adjusts a single transfer request.
type Option func(*options)

type options struct {
	offset    int64
	hasOffset bool
	count     int64
	hasCount  bool
}

// WithOffset starts the transfer at an absolute offset. The source's own
// position is neither read nor moved.
func WithOffset(offset int64) Option {
	return func(o *options) {
		o.offset = offset
		o.hasOffset = true
	}
}

// WithCount bounds the number of bytes sent. Without it the transfer runs to
// the end of the file as measured when the call starts.
func WithCount(count int64) Option {
	return func(o *options) {
		o.count = count
		o.hasCount = true
	}
}

// request is a normalized transfer. It lives for one call and owns nothing.
type request struct {
	file   File
	cursor int64
	count  int64
	// exhausted marks a defaulted count that came out as zero because the
	// cursor sits at or past end of file.
	exhausted bool
	commits   []func(sent int64) error
}

// commit records sent bytes on the source: it moves the file position for
// implicit offsets and shrinks wrapping readers.
func (r *request) commit(sent int64) error {
	for _, fn := range r.commits {
		if err := fn(sent); err != nil {
			return err
		}
	}

	return nil
}

// empty reports whether there is nothing to send, and the error to return if so.
func (r *request) empty(op string) (bool, error) {
	if r.count > 0 {
		return false, nil
	}

	if r.exhausted {
		return true, endOfFile(op)
	}

	return true, nil
}

func normalize(src io.Reader, opts []Option) (*request, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.hasOffset && o.offset < 0 {
		return nil, ioFailure("sendfile", fmt.Errorf("negative offset %d: %w", o.offset, syscall.EINVAL))
	}

	if o.hasCount && o.count < 0 {
		return nil, ioFailure("sendfile", fmt.Errorf("negative count %d: %w", o.count, syscall.EINVAL))
	}

	switch s := src.(type) {
	case *io.LimitedReader:
		return normalizeLimited(s, o)
	case *io.SectionReader:
		return normalizeSection(s, o)
	case File:
		return normalizeFile(s, o)
	case nil:
		return nil, typeMismatch("source is nil")
	default:
		return nil, typeMismatch("%T is not a file", src)
	}
}

func normalizeFile(f File, o options) (*request, error) {
	size, err := regularSize(f)
	if err != nil {
		return nil, err
	}

	req := &request{file: f, cursor: o.offset}

	if !o.hasOffset {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, ioFailure("seek", err)
		}

		req.cursor = pos
		req.commits = append(req.commits, func(sent int64) error {
			if _, err := f.Seek(pos+sent, io.SeekStart); err != nil {
				return ioFailure("seek", err)
			}

			return nil
		})
	}

	if o.hasCount {
		req.count = o.count
	} else {
		req.count = size - req.cursor
		if req.count <= 0 {
			req.count = 0
			req.exhausted = true
		}
	}

	return req, nil
}

func normalizeLimited(lr *io.LimitedReader, o options) (*request, error) {
	f, ok := lr.R.(File)
	if !ok {
		return nil, typeMismatch("%T does not wrap a file", lr.R)
	}

	req, err := normalizeFile(f, o)
	if err != nil {
		return nil, err
	}

	limit := lr.N
	if limit < 0 {
		limit = 0
	}

	if req.count > limit {
		req.count = limit
		req.exhausted = false
	}

	req.commits = append(req.commits, func(sent int64) error {
		lr.N -= sent
		return nil
	})

	return req, nil
}

func normalizeSection(sr *io.SectionReader, o options) (*request, error) {
	outer, base, n := sr.Outer()

	f, ok := outer.(File)
	if !ok {
		return nil, typeMismatch("%T does not wrap a file", outer)
	}

	if _, err := regularSize(f); err != nil {
		return nil, err
	}

	rel := o.offset
	req := &request{file: f}

	if !o.hasOffset {
		pos, err := sr.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, ioFailure("seek", err)
		}

		rel = pos
		req.commits = append(req.commits, func(sent int64) error {
			if _, err := sr.Seek(sent, io.SeekCurrent); err != nil {
				return ioFailure("seek", err)
			}

			return nil
		})
	}

	req.cursor = base + rel

	avail := n - rel
	if avail < 0 {
		avail = 0
	}

	switch {
	case !o.hasCount:
		req.count = avail
		req.exhausted = avail == 0
	case o.count > avail:
		req.count = avail
		req.exhausted = avail == 0
	default:
		req.count = o.count
	}

	return req, nil
}

func regularSize(f File) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, typeMismatch("stat source: %w", err)
	}

	if !st.Mode().IsRegular() {
		return 0, typeMismatch("%s is not a regular file (%s)", st.Name(), st.Mode().Type())
	}

	return st.Size(), nil
}
