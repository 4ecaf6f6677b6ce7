//go:build linux || freebsd || dragonfly || darwin || solaris

package core

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

// loopback returns the client half of a TCP connection and a channel that
// yields everything the server half reads until the client closes.
func loopback(t *testing.T) (*net.TCPConn, <-chan []byte) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan []byte, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			got <- nil
			return
		}
		defer conn.Close()

		data, _ := io.ReadAll(conn)
		got <- data
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn.(*net.TCPConn), got
}

func received(t *testing.T, conn *net.TCPConn, got <-chan []byte) []byte {
	t.Helper()

	if err := conn.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite failed: %v", err)
	}

	select {
	case data := <-got:
		return data
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for receiver")
		return nil
	}
}

func contents(t *testing.T, f *os.File) []byte {
	t.Helper()

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	return data
}

func TestPlatformSupported(t *testing.T) {
	t.Parallel()

	if !Platform().Supported() {
		t.Fatalf("Platform() = %v, want a supported capability", Platform())
	}
}

func TestTransferLoopbackRoundTrip(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 3<<20)
	conn, got := loopback(t)

	n, err := Transfer(conn, f)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if n != 3<<20 {
		t.Fatalf("Transfer() = %d, want %d", n, 3<<20)
	}

	if !bytes.Equal(received(t, conn, got), contents(t, f)) {
		t.Fatal("received bytes differ from the file")
	}

	if pos := position(t, f); pos != n {
		t.Errorf("file position = %d, want %d", pos, n)
	}
}

func TestTransferLoopbackRange(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 100)
	conn, got := loopback(t)

	n, err := Transfer(conn, f, WithOffset(10), WithCount(20))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if n != 20 {
		t.Fatalf("Transfer() = %d, want 20", n)
	}

	if want := contents(t, f)[10:30]; !bytes.Equal(received(t, conn, got), want) {
		t.Fatal("received bytes differ from the requested range")
	}

	if pos := position(t, f); pos != 0 {
		t.Errorf("file position = %d, want 0", pos)
	}
}

func TestTransferLoopbackCountPastEnd(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 100)
	conn, got := loopback(t)

	n, err := Transfer(conn, f, WithCount(200))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if n != 100 {
		t.Fatalf("Transfer() = %d, want 100", n)
	}

	if data := received(t, conn, got); len(data) != 100 {
		t.Fatalf("received %d bytes, want 100", len(data))
	}
}

func TestTransferLoopbackImplicitPosition(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 100)
	conn, got := loopback(t)

	if _, err := f.Seek(40, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}

	n, err := Transfer(conn, f, WithCount(25))
	if err != nil || n != 25 {
		t.Fatalf("Transfer() = %d, %v, want 25, nil", n, err)
	}

	if pos := position(t, f); pos != 65 {
		t.Errorf("file position = %d, want 65", pos)
	}

	n, err = Transfer(conn, f)
	if err != nil || n != 35 {
		t.Fatalf("second Transfer() = %d, %v, want 35, nil", n, err)
	}

	if _, err := Transfer(conn, f); !errors.Is(err, ErrEOF) {
		t.Fatalf("Transfer() at end of file error = %v, want ErrEOF", err)
	}

	if want := contents(t, f)[40:]; !bytes.Equal(received(t, conn, got), want) {
		t.Fatal("received bytes differ from the file tail")
	}
}

func TestTransferLoopbackEOFAtSize(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 64)
	conn, got := loopback(t)

	if _, err := Transfer(conn, f, WithOffset(64)); !errors.Is(err, ErrEOF) {
		t.Errorf("Transfer() error = %v, want ErrEOF", err)
	}

	if _, err := TransferOnce(conn, f, WithOffset(64)); !errors.Is(err, ErrEOF) {
		t.Errorf("TransferOnce() error = %v, want ErrEOF", err)
	}

	if data := received(t, conn, got); len(data) != 0 {
		t.Errorf("received %d bytes, want 0", len(data))
	}
}

func TestTransferLoopbackLimitedReader(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 100)
	conn, got := loopback(t)
	lr := &io.LimitedReader{R: f, N: 30}

	n, err := Transfer(conn, lr)
	if err != nil || n != 30 {
		t.Fatalf("Transfer() = %d, %v, want 30, nil", n, err)
	}

	if lr.N != 0 {
		t.Errorf("N = %d, want 0", lr.N)
	}

	if want := contents(t, f)[:30]; !bytes.Equal(received(t, conn, got), want) {
		t.Fatal("received bytes differ from the limited prefix")
	}
}

func TestTransferRejectsPipe(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})

	conn, _ := loopback(t)

	if _, err := Transfer(conn, r); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Transfer() error = %v, want ErrTypeMismatch", err)
	}
}

// TestTransferOnceDrivenLoop fills the socket until it refuses more data,
// then drains it and finishes the file with explicit offsets, the way a
// readiness-driven caller would.
func TestTransferOnceDrivenLoop(t *testing.T) {
	t.Parallel()

	const size = 16 << 20

	f := writeTemp(t, size)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = dialed.Close() })

	conn := dialed.(*net.TCPConn)
	_ = conn.SetWriteBuffer(16 << 10)

	peer := <-accepted
	if peer == nil {
		t.Fatal("Accept failed")
	}
	t.Cleanup(func() { _ = peer.Close() })

	var off int64

	blocked := false
	for off < size {
		n, err := TransferOnce(conn, f, WithOffset(off), WithCount(size-off))
		if errors.Is(err, ErrWouldBlock) {
			if n != 0 {
				t.Fatalf("would-block reported %d bytes", n)
			}

			blocked = true

			break
		}

		if err != nil {
			t.Fatalf("TransferOnce failed at %d: %v", off, err)
		}

		off += n
	}

	if !blocked {
		t.Skip("socket buffer swallowed the whole file")
	}

	// A would-block retry with the same offset replays from the same place.
	if n, err := TransferOnce(conn, f, WithOffset(off), WithCount(size-off)); err == nil {
		off += n
	} else if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("retry failed: %v", err)
	}

	got := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(peer)
		got <- data
	}()

	for off < size {
		if err := WaitWritable(conn); err != nil {
			t.Fatalf("WaitWritable failed: %v", err)
		}

		n, err := TransferOnce(conn, f, WithOffset(off), WithCount(size-off))
		if errors.Is(err, ErrWouldBlock) {
			continue
		}

		if err != nil {
			t.Fatalf("TransferOnce failed at %d: %v", off, err)
		}

		off += n
	}

	if pos := position(t, f); pos != 0 {
		t.Errorf("file position = %d, want 0", pos)
	}

	if !bytes.Equal(received(t, conn, got), contents(t, f)) {
		t.Fatal("received bytes differ from the file")
	}
}

func TestTransferDeadline(t *testing.T) {
	t.Parallel()

	f := writeTemp(t, 32<<20)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = dialed.Close() })

	// The peer stays open and never reads.
	if peer := <-accepted; peer != nil {
		t.Cleanup(func() { _ = peer.Close() })
	}

	conn := dialed.(*net.TCPConn)
	_ = conn.SetWriteBuffer(16 << 10)
	_ = conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))

	n, err := Transfer(conn, f)
	if err == nil {
		t.Skipf("socket buffer swallowed %d bytes", n)
	}

	if n != 0 {
		t.Errorf("Transfer() = %d on failure, want 0", n)
	}

	if KindOf(err) != KindIO || !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Transfer() error = %v, want i/o failure wrapping deadline", err)
	}

	if pos := position(t, f); pos != 0 {
		t.Errorf("file position = %d, want 0", pos)
	}
}
