//go:build linux || freebsd || dragonfly || darwin || solaris

package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeslinger/sendfile/src/internal/core"
	"github.com/codeslinger/sendfile/src/internal/server"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

func sourceFile(t *testing.T, size int) (*os.File, []byte) {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to create source file: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open source file: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	return f, data
}

// sink accepts one connection and returns everything it reads.
func sink(t *testing.T) (string, <-chan []byte) {
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

	return ln.Addr().String(), got
}

func TestSenderModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		nonblock bool
		r        Range
	}{
		{name: "blocking whole file", r: Range{}},
		{name: "blocking range", r: Range{Offset: 1000, Count: 5000}},
		{name: "stepped whole file", nonblock: true, r: Range{}},
		{name: "stepped range", nonblock: true, r: Range{Offset: 123, Count: 1 << 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, data := sourceFile(t, 2<<20)
			addr, got := sink(t)

			conn, err := NewDialer("tcp", nil, nil).Dial(context.Background(), addr)
			if err != nil {
				t.Fatalf("Dial failed: %v", err)
			}
			defer conn.Close()

			s := NewSender(nil, nil)
			s.Nonblock = tt.nonblock
			s.Verify = verify.Blake3

			report, err := s.Send(context.Background(), conn.(core.Destination), f, tt.r)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}

			end := int64(len(data))
			if tt.r.Count > 0 {
				end = tt.r.Offset + tt.r.Count
			}

			want := data[tt.r.Offset:end]

			if report.Bytes != int64(len(want)) {
				t.Errorf("Bytes = %d, want %d", report.Bytes, len(want))
			}

			if report.Nonblock != tt.nonblock || report.Calls == 0 {
				t.Errorf("report = %+v", report)
			}

			wantDigest, _, _ := verify.Reader(verify.Blake3, bytes.NewReader(want))
			if report.Digest != wantDigest {
				t.Errorf("Digest = %s, want %s", report.Digest, wantDigest)
			}

			_ = conn.(*net.TCPConn).CloseWrite()

			select {
			case data := <-got:
				if !bytes.Equal(data, want) {
					t.Errorf("peer received %d bytes that differ from the range", len(data))
				}
			case <-time.After(10 * time.Second):
				t.Fatal("timed out waiting for peer")
			}
		})
	}
}

func TestSenderEOF(t *testing.T) {
	t.Parallel()

	for _, nonblock := range []bool{false, true} {
		f, data := sourceFile(t, 100)
		addr, _ := sink(t)

		conn, err := NewDialer("tcp", nil, nil).Dial(context.Background(), addr)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}

		s := NewSender(nil, nil)
		s.Nonblock = nonblock

		_, err = s.Send(context.Background(), conn.(core.Destination), f, Range{Offset: int64(len(data))})
		if !errors.Is(err, core.ErrEOF) {
			t.Errorf("nonblock=%v: Send() error = %v, want ErrEOF", nonblock, err)
		}

		_ = conn.Close()
	}
}

func TestDialerGivesUp(t *testing.T) {
	t.Parallel()

	// Reserve a port, then free it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	addr := ln.Addr().String()
	_ = ln.Close()

	r, _ := newTestRetrier(2)

	_, err = NewDialer("tcp", r, nil).Dial(context.Background(), addr)
	if err == nil {
		t.Fatal("Dial to a closed port succeeded")
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	content := bytes.Repeat([]byte("fetch me "), 10000)

	if err := os.WriteFile(filepath.Join(root, "doc.txt"), content, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	catalog, err := server.NewCatalog(root, nil, nil)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- server.New(nil, catalog, nil, nil).Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	fetch := func(req server.Request) ([]byte, *FetchResult, error) {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()

		var buf bytes.Buffer

		res, err := Fetch(context.Background(), conn, req, &buf, verify.SHA256)

		return buf.Bytes(), res, err
	}

	body, res, err := fetch(server.Request{Name: "doc.txt"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !bytes.Equal(body, content) {
		t.Errorf("fetched %d bytes that differ from the file", len(body))
	}

	wantDigest, _, _ := verify.Reader(verify.SHA256, bytes.NewReader(content))
	if res.Digest != wantDigest || res.Bytes != int64(len(content)) {
		t.Errorf("result = %+v, want %d bytes with digest %s", res, len(content), wantDigest)
	}

	body, _, err = fetch(server.Request{Name: "doc.txt", Offset: 6, Count: 2, HasOffset: true, HasCount: true})
	if err != nil || string(body) != "me" {
		t.Errorf("range fetch = %q, %v, want \"me\"", body, err)
	}

	_, _, err = fetch(server.Request{Name: "absent.txt"})

	var remote *server.RemoteError
	if !errors.As(err, &remote) {
		t.Errorf("Fetch(absent) error = %v, want a remote error", err)
	}
}
