package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/codeslinger/sendfile/src/internal/core"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

// Range selects the bytes of a file to send. Count 0 means "to end of file".
type Range struct {
	Offset int64
	Count  int64
}

// Report summarizes one finished send.
type Report struct {
	Bytes      int64
	Calls      int
	Waits      int
	Duration   time.Duration
	Digest     string
	Algo       verify.Algorithm
	Capability core.Capability
	Nonblock   bool
}

// Speed returns the average throughput in bytes per second.
func (r *Report) Speed() float64 {
	if r.Duration <= 0 {
		return 0
	}

	return float64(r.Bytes) / r.Duration.Seconds()
}

// Sender pushes file ranges to connected destinations.
type Sender struct {
	Transferer *core.Transferer
	// Nonblock drives single attempts and explicit waits instead of the
	// blocking loop.
	Nonblock bool
	Verify   verify.Algorithm
	Logger   *zap.Logger
}

// NewSender returns a Sender using t, or the platform default when t is nil.
func NewSender(t *core.Transferer, logger *zap.Logger) *Sender {
	if t == nil {
		t = core.New()
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sender{Transferer: t, Verify: verify.None, Logger: logger}
}

type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Send transfers r of f to dst. Cancelling ctx aborts a transfer in
// progress when dst supports write deadlines.
func (s *Sender) Send(ctx context.Context, dst core.Destination, f *os.File, r Range) (*Report, error) {
	if d, ok := dst.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetWriteDeadline(deadline)
		}

		stop := context.AfterFunc(ctx, func() {
			_ = d.SetWriteDeadline(time.Now())
		})
		defer stop()
	}

	report := &Report{
		Algo:       s.Verify,
		Capability: s.Transferer.Capability(),
		Nonblock:   s.Nonblock,
	}

	start := time.Now()

	var err error
	if s.Nonblock {
		err = s.sendSteps(dst, f, r, report)
	} else {
		err = s.sendBlocking(dst, f, r, report)
	}

	report.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}

		s.Logger.Warn("transfer failed",
			zap.String("file", f.Name()),
			zap.Int64("offset", r.Offset),
			zap.Int64("sent", report.Bytes),
			zap.Stringer("kind", core.KindOf(err)),
			zap.Error(err))

		return report, err
	}

	if s.Verify.Enabled() && report.Bytes > 0 {
		digest, err := verify.Range(s.Verify, f, r.Offset, report.Bytes)
		if err != nil {
			return report, fmt.Errorf("failed to digest sent range: %w", err)
		}

		report.Digest = digest
	}

	s.Logger.Info("transfer complete",
		zap.String("file", f.Name()),
		zap.Int64("offset", r.Offset),
		zap.Int64("bytes", report.Bytes),
		zap.Duration("duration", report.Duration),
		zap.Int("calls", report.Calls),
		zap.Int("waits", report.Waits),
		zap.Stringer("capability", report.Capability))

	return report, nil
}

func (s *Sender) sendBlocking(dst core.Destination, f *os.File, r Range, report *Report) error {
	opts := []core.Option{core.WithOffset(r.Offset)}
	if r.Count > 0 {
		opts = append(opts, core.WithCount(r.Count))
	}

	n, err := s.Transferer.Transfer(dst, f, opts...)
	report.Calls = 1
	report.Bytes = n

	return err
}

// sendSteps accumulates single attempts, waiting for writability whenever
// the destination is full. Each attempt restarts from the last good offset.
func (s *Sender) sendSteps(dst core.Destination, f *os.File, r Range, report *Report) error {
	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.Name(), err)
	}

	end := stat.Size()
	if r.Count > 0 && r.Offset+r.Count < end {
		end = r.Offset + r.Count
	}

	off := r.Offset

	for {
		opts := []core.Option{core.WithOffset(off)}
		if rem := end - off; rem > 0 {
			opts = append(opts, core.WithCount(rem))
		}

		n, err := s.Transferer.TransferOnce(dst, f, opts...)
		report.Calls++

		switch {
		case errors.Is(err, core.ErrWouldBlock):
			report.Waits++

			if err := core.WaitWritable(dst); err != nil {
				return err
			}

			continue
		case errors.Is(err, core.ErrEOF) && off > r.Offset:
			// The file shrank under us; what went out is the answer.
			return nil
		case err != nil:
			return err
		}

		off += n
		report.Bytes = off - r.Offset

		if off >= end {
			return nil
		}
	}
}
