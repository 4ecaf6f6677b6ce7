// Package verify computes digests of file ranges and byte streams so both ends
// of a transfer can check they saw the same bytes.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported digest.
type Algorithm string

// Supported algorithms.
const (
	None   Algorithm = "none"
	Blake3 Algorithm = "blake3"
	SHA256 Algorithm = "sha256"
)

// ParseAlgorithm maps a config value onto an Algorithm. "" means none.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", None:
		return None, nil
	case Blake3, SHA256:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm: %s", s)
	}
}

// Enabled reports whether a makes any digest at all.
func (a Algorithm) Enabled() bool {
	return a != "" && a != None
}

// NewHash returns a fresh hash for a.
func NewHash(a Algorithm) (hash.Hash, error) {
	switch a {
	case Blake3:
		return blake3.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", a)
	}
}

// Reader digests everything read from r.
func Reader(a Algorithm, r io.Reader) (string, int64, error) {
	h, err := NewHash(a)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Range digests count bytes of r starting at offset. It reads through
// ReadAt, so a shared file's position is left alone.
func Range(a Algorithm, r io.ReaderAt, offset, count int64) (string, error) {
	sum, n, err := Reader(a, io.NewSectionReader(r, offset, count))
	if err != nil {
		return "", fmt.Errorf("failed to digest range %d+%d: %w", offset, count, err)
	}

	if n != count {
		return "", fmt.Errorf("short range: read %d of %d bytes at %d", n, count, offset)
	}

	return sum, nil
}

// Writer forwards writes to an optional destination while hashing and
// counting them.
type Writer struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewWriter returns a Writer for algorithm a. w may be nil to only hash.
// With None it only counts.
func NewWriter(a Algorithm, w io.Writer) (*Writer, error) {
	dw := &Writer{w: w}

	if a.Enabled() {
		h, err := NewHash(a)
		if err != nil {
			return nil, err
		}

		dw.h = h
	}

	return dw, nil
}

func (dw *Writer) Write(p []byte) (int, error) {
	if dw.w != nil {
		n, err := dw.w.Write(p)
		dw.record(p[:n])

		return n, err
	}

	dw.record(p)

	return len(p), nil
}

func (dw *Writer) record(p []byte) {
	if dw.h != nil {
		_, _ = dw.h.Write(p)
	}

	dw.n += int64(len(p))
}

// N returns the bytes written so far.
func (dw *Writer) N() int64 {
	return dw.n
}

// Sum returns the hex digest so far, or "" when hashing is off.
func (dw *Writer) Sum() string {
	if dw.h == nil {
		return ""
	}

	return hex.EncodeToString(dw.h.Sum(nil))
}
