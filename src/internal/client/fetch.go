package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/codeslinger/sendfile/src/internal/server"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

// FetchResult describes a finished fetch.
type FetchResult struct {
	Bytes    int64
	Digest   string
	Duration time.Duration
}

// Fetch asks the server on conn for req and copies the answer to w.
func Fetch(ctx context.Context, conn net.Conn, req server.Request, w io.Writer, algo verify.Algorithm) (*FetchResult, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	start := time.Now()

	if err := server.WriteRequest(conn, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	br := bufio.NewReader(conn)

	length, err := server.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	dw, err := verify.NewWriter(algo, w)
	if err != nil {
		return nil, err
	}

	n, err := io.CopyN(dw, br, length)
	if err != nil {
		return &FetchResult{Bytes: n}, fmt.Errorf("short body, %d of %d bytes: %w", n, length, err)
	}

	return &FetchResult{
		Bytes:    n,
		Digest:   dw.Sum(),
		Duration: time.Since(start),
	}, nil
}
