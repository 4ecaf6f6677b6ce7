package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codeslinger/sendfile/src/internal/verify"
)

// Receipt describes one stream taken in by a Receiver.
type Receipt struct {
	Remote   string
	Bytes    int64
	Digest   string
	Duration time.Duration
	Err      error
}

// Receiver accepts connections and drains each one to a sink, hashing what
// arrives. It is the far end of "sendfile send".
type Receiver struct {
	Algo   verify.Algorithm
	Logger *zap.Logger
	// Open returns the sink for a connection; nil discards the bytes.
	Open func(remote string) (io.WriteCloser, error)
	// Limit stops the receiver after that many connections; 0 means no limit.
	Limit int

	stats Stats
}

// Stats returns the live counters.
func (r *Receiver) Stats() *Stats {
	return &r.stats
}

// Serve accepts until ctx is done or Limit connections were drained, calling
// report for each finished stream. Connections are drained concurrently.
func (r *Receiver) Serve(ctx context.Context, ln net.Listener, report func(Receipt)) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.stats.start(time.Now())

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	defer wg.Wait()

	for n := 0; r.Limit == 0 || n < r.Limit; n++ {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("accept failed: %w", err)
		}

		r.stats.accepted.Add(1)
		r.stats.active.Add(1)

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer r.stats.active.Add(-1)

			receipt := r.drain(conn)
			if receipt.Err != nil {
				r.stats.failed.Add(1)
				logger.Warn("receive failed", zap.String("remote", receipt.Remote), zap.Error(receipt.Err))
			} else {
				r.stats.served.Add(1)
				logger.Debug("received",
					zap.String("remote", receipt.Remote),
					zap.Int64("bytes", receipt.Bytes),
					zap.String("digest", receipt.Digest))
			}

			r.stats.bytes.Add(receipt.Bytes)

			if report != nil {
				mu.Lock()
				report(receipt)
				mu.Unlock()
			}
		}()
	}

	return nil
}

func (r *Receiver) drain(conn net.Conn) Receipt {
	defer conn.Close()

	receipt := Receipt{Remote: conn.RemoteAddr().String()}
	start := time.Now()

	var sink io.WriteCloser

	if r.Open != nil {
		s, err := r.Open(receipt.Remote)
		if err != nil {
			receipt.Err = fmt.Errorf("failed to open sink: %w", err)
			return receipt
		}

		sink = s
	}

	var w io.Writer
	if sink != nil {
		w = sink
	}

	dw, err := verify.NewWriter(r.Algo, w)
	if err != nil {
		receipt.Err = err
		return receipt
	}

	_, err = io.Copy(dw, conn)

	if sink != nil {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close sink: %w", cerr)
		}
	}

	receipt.Bytes = dw.N()
	receipt.Digest = dw.Sum()
	receipt.Duration = time.Since(start)
	receipt.Err = err

	return receipt
}
