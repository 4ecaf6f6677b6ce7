package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxRequestLine bounds a request line, newline included.
const MaxRequestLine = 4096

// ErrRequestTooLong is returned for request lines over MaxRequestLine.
var ErrRequestTooLong = errors.New("request line too long")

// Request asks for a catalog file, optionally a range of it. The wire form
// is one line: "<name> [offset [count]]\n".
type Request struct {
	Name      string
	Offset    int64
	Count     int64
	HasOffset bool
	HasCount  bool
}

func (r Request) String() string {
	var b strings.Builder

	b.WriteString(r.Name)

	if r.HasOffset || r.HasCount {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(r.Offset, 10))
	}

	if r.HasCount {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(r.Count, 10))
	}

	return b.String()
}

// ParseRequest parses a request line without its trailing newline.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, errors.New("empty request")
	}

	if len(fields) > 3 {
		return Request{}, fmt.Errorf("malformed request: %d fields", len(fields))
	}

	req := Request{Name: fields[0]}

	if len(fields) > 1 {
		off, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || off < 0 {
			return Request{}, fmt.Errorf("invalid offset %q", fields[1])
		}

		req.Offset, req.HasOffset = off, true
	}

	if len(fields) > 2 {
		count, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || count < 0 {
			return Request{}, fmt.Errorf("invalid count %q", fields[2])
		}

		req.Count, req.HasCount = count, true
	}

	return req, nil
}

// ReadRequest reads and parses one request line from br.
func ReadRequest(br *bufio.Reader) (Request, error) {
	line, err := readLine(br)
	if err != nil {
		return Request{}, err
	}

	return ParseRequest(line)
}

// WriteRequest writes r as a request line.
func WriteRequest(w io.Writer, r Request) error {
	if r.Name == "" || strings.ContainsAny(r.Name, " \t\r\n") {
		return fmt.Errorf("invalid name %q", r.Name)
	}

	_, err := io.WriteString(w, r.String()+"\n")

	return err
}

// The response is a header line, then exactly the announced bytes.
//
//	OK <length>\n
//	ERR <message>\n
const (
	headerOK  = "OK"
	headerErr = "ERR"
)

// RemoteError is a failure reported by the server in its header line.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "server: " + e.Message
}

// WriteOK announces that length bytes follow.
func WriteOK(w io.Writer, length int64) error {
	_, err := fmt.Fprintf(w, "%s %d\n", headerOK, length)
	return err
}

// WriteError reports a failure; no body follows.
func WriteError(w io.Writer, msg string) error {
	msg = strings.ReplaceAll(msg, "\n", " ")
	_, err := fmt.Fprintf(w, "%s %s\n", headerErr, msg)

	return err
}

// ReadHeader reads a response header and returns the announced length.
// A server-side failure comes back as *RemoteError.
func ReadHeader(br *bufio.Reader) (int64, error) {
	line, err := readLine(br)
	if err != nil {
		return 0, err
	}

	status, rest, _ := strings.Cut(line, " ")

	switch status {
	case headerOK:
		n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed length %q", rest)
		}

		return n, nil
	case headerErr:
		return 0, &RemoteError{Message: rest}
	default:
		return 0, fmt.Errorf("malformed response header %q", line)
	}
}

func readLine(br *bufio.Reader) (string, error) {
	var line []byte

	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return "", io.ErrUnexpectedEOF
			}

			return "", err
		}

		line = append(line, chunk...)
		if len(line) >= MaxRequestLine {
			return "", ErrRequestTooLong
		}

		if !isPrefix {
			return string(line), nil
		}
	}
}
