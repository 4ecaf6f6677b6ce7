package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		want    Request
		wantErr bool
	}{
		{line: "a.txt", want: Request{Name: "a.txt"}},
		{line: "  dir/b.bin 10 ", want: Request{Name: "dir/b.bin", Offset: 10, HasOffset: true}},
		{line: "c 5 20", want: Request{Name: "c", Offset: 5, Count: 20, HasOffset: true, HasCount: true}},
		{line: "c 0 0", want: Request{Name: "c", HasOffset: true, HasCount: true}},
		{line: "", wantErr: true},
		{line: "c -1", wantErr: true},
		{line: "c 1 -1", wantErr: true},
		{line: "c x", wantErr: true},
		{line: "c 1 2 3", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRequest(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRequest(%q) = %+v, want error", tt.line, got)
			}

			continue
		}

		if err != nil {
			t.Errorf("ParseRequest(%q) failed: %v", tt.line, err)
			continue
		}

		if got != tt.want {
			t.Errorf("ParseRequest(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestRequestWireForm(t *testing.T) {
	t.Parallel()

	for _, req := range []Request{
		{Name: "a"},
		{Name: "a", Offset: 7, HasOffset: true},
		{Name: "a", Offset: 7, Count: 9, HasOffset: true, HasCount: true},
	} {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, req); err != nil {
			t.Fatalf("WriteRequest failed: %v", err)
		}

		got, err := ReadRequest(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("ReadRequest failed: %v", err)
		}

		if got != req {
			t.Errorf("wire form of %+v came back as %+v", req, got)
		}
	}

	// A count without an offset goes out with offset 0.
	var buf bytes.Buffer
	_ = WriteRequest(&buf, Request{Name: "a", Count: 3, HasCount: true})

	if buf.String() != "a 0 3\n" {
		t.Errorf("wire form = %q, want %q", buf.String(), "a 0 3\n")
	}

	if err := WriteRequest(io.Discard, Request{Name: "two words"}); err == nil {
		t.Error("WriteRequest accepted a name with a space")
	}
}

func TestReadHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		want       int64
		wantRemote string
		wantErr    bool
	}{
		{in: "OK 42\nbody", want: 42},
		{in: "OK 0\n", want: 0},
		{in: "ERR not found: x\n", wantRemote: "not found: x"},
		{in: "OK -1\n", wantErr: true},
		{in: "OK lots\n", wantErr: true},
		{in: "HELLO\n", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ReadHeader(bufio.NewReader(strings.NewReader(tt.in)))

		var remote *RemoteError

		switch {
		case tt.wantRemote != "":
			if !errors.As(err, &remote) || remote.Message != tt.wantRemote {
				t.Errorf("ReadHeader(%q) error = %v, want remote %q", tt.in, err, tt.wantRemote)
			}
		case tt.wantErr:
			if err == nil {
				t.Errorf("ReadHeader(%q) = %d, want error", tt.in, got)
			}
		default:
			if err != nil || got != tt.want {
				t.Errorf("ReadHeader(%q) = %d, %v, want %d", tt.in, got, err, tt.want)
			}
		}
	}
}

func TestReadRequestTooLong(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("x", MaxRequestLine+10) + "\n"

	_, err := ReadRequest(bufio.NewReaderSize(strings.NewReader(line), 64))
	if !errors.Is(err, ErrRequestTooLong) {
		t.Fatalf("ReadRequest() error = %v, want ErrRequestTooLong", err)
	}
}

func TestWriteErrorSingleLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_ = WriteError(&buf, "two\nlines")

	if buf.String() != "ERR two lines\n" {
		t.Errorf("WriteError wrote %q", buf.String())
	}
}
