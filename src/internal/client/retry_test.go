package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/codeslinger/sendfile/src/internal/config"
)

func retryConfig(backoff config.BackoffStrategy, attempts int) *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: config.Duration(100 * time.Millisecond),
		MaxDelay:     config.Duration(time.Second),
		Multiplier:   2.0,
		Backoff:      string(backoff),
	}
}

func TestRetrierDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backoff config.BackoffStrategy
		attempt int
		want    time.Duration
	}{
		{config.BackoffFixed, 1, 100 * time.Millisecond},
		{config.BackoffFixed, 5, 100 * time.Millisecond},
		{config.BackoffLinear, 1, 100 * time.Millisecond},
		{config.BackoffLinear, 3, 300 * time.Millisecond},
		{config.BackoffLinear, 50, time.Second},
		{config.BackoffExponential, 1, 100 * time.Millisecond},
		{config.BackoffExponential, 3, 400 * time.Millisecond},
		{config.BackoffExponential, 10, time.Second},
		{config.BackoffExponential, 2000, time.Second},
	}

	for _, tt := range tests {
		r := NewRetrier(retryConfig(tt.backoff, 3))
		if got := r.Delay(tt.attempt); got != tt.want {
			t.Errorf("%s Delay(%d) = %v, want %v", tt.backoff, tt.attempt, got, tt.want)
		}
	}
}

func newTestRetrier(attempts int) (*Retrier, *[]time.Duration) {
	var slept []time.Duration

	r := NewRetrier(retryConfig(config.BackoffExponential, attempts))
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}

	return r, &slept
}

func TestRetrierDo(t *testing.T) {
	t.Parallel()

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		r, slept := newTestRetrier(5)

		calls := 0
		err := r.Do(context.Background(), func(attempt int) error {
			calls++
			if attempt < 3 {
				return refused
			}

			return nil
		})
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}

		if calls != 3 || len(*slept) != 2 {
			t.Errorf("calls = %d sleeps = %v, want 3 calls and 2 sleeps", calls, *slept)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()

		r, slept := newTestRetrier(3)

		err := r.Do(context.Background(), func(int) error { return refused })
		if !errors.Is(err, syscall.ECONNREFUSED) {
			t.Fatalf("Do() error = %v, want ECONNREFUSED in chain", err)
		}

		if len(*slept) != 2 {
			t.Errorf("sleeps = %v, want 2", *slept)
		}
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestRetrier(5)

		calls := 0
		err := r.Do(context.Background(), func(int) error {
			calls++
			return os.ErrPermission
		})

		if err == nil || calls != 1 {
			t.Fatalf("Do() = %v after %d calls, want an error after 1", err, calls)
		}
	})

	t.Run("stops on fatal error", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestRetrier(5)

		calls := 0
		err := r.Do(context.Background(), func(int) error {
			calls++
			return NewFatalError(errors.New("boom"))
		})

		if err == nil || calls != 1 {
			t.Fatalf("Do() = %v after %d calls, want an error after 1", err, calls)
		}
	})

	t.Run("honours cancellation between attempts", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestRetrier(5)

		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := r.Do(ctx, func(int) error {
			calls++
			cancel()

			return refused
		})

		if !errors.Is(err, context.Canceled) || calls != 1 {
			t.Fatalf("Do() = %v after %d calls, want context.Canceled after 1", err, calls)
		}
	})
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantFatal     bool
	}{
		{name: "connection refused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), wantRetryable: true},
		{name: "connection reset", err: syscall.ECONNRESET, wantRetryable: true},
		{name: "host unreachable", err: syscall.EHOSTUNREACH, wantRetryable: true},
		{name: "timeout", err: os.ErrDeadlineExceeded, wantRetryable: true},
		{name: "permission", err: os.ErrPermission},
		{name: "missing socket", err: syscall.ENOENT},
		{name: "bad address", err: &net.AddrError{Err: "missing port", Addr: "x"}},
		{name: "unknown host", err: &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}},
		{name: "temporary dns", err: &net.DNSError{Err: "try again", Name: "x", IsTemporary: true}, wantRetryable: true},
		{name: "cancelled", err: context.Canceled, wantFatal: true},
		{name: "pre-classified", err: NewRetryableError(errors.New("x"), true), wantRetryable: true},
		{name: "unknown", err: errors.New("mystery")},
	}

	for _, tt := range tests {
		got := ClassifyError(tt.err)
		if got.Retryable != tt.wantRetryable || got.Fatal != tt.wantFatal {
			t.Errorf("%s: ClassifyError() = retryable %v fatal %v, want %v %v",
				tt.name, got.Retryable, got.Fatal, tt.wantRetryable, tt.wantFatal)
		}
	}

	if ClassifyError(nil) != nil {
		t.Error("ClassifyError(nil) != nil")
	}
}
