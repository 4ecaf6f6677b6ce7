package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/codeslinger/sendfile/src/internal/config"
)

// Retrier runs an operation with backoff between failed attempts.
type Retrier struct {
	config *config.RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// RetryableError wraps an error with retry information.
type RetryableError struct {
	Err       error
	Retryable bool
	Fatal     bool
}

func (re *RetryableError) Error() string {
	return re.Err.Error()
}

func (re *RetryableError) Unwrap() error {
	return re.Err
}

// NewRetrier creates a retrier; a nil config retries three times with
// exponential backoff.
func NewRetrier(cfg *config.RetryConfig) *Retrier {
	if cfg == nil {
		cfg = &config.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: config.Duration(100 * time.Millisecond),
			MaxDelay:     config.Duration(10 * time.Second),
			Multiplier:   2.0,
			Backoff:      string(config.BackoffExponential),
		}
	}

	return &Retrier{
		config: cfg,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs operation until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done. operation receives the 1-based attempt.
func (r *Retrier) Do(ctx context.Context, operation func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := operation(attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		classified := ClassifyError(err)
		if classified.Fatal {
			return fmt.Errorf("fatal error on attempt %d: %w", attempt, err)
		}

		if !classified.Retryable {
			return fmt.Errorf("non-retryable error on attempt %d: %w", attempt, err)
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		if err := r.sleep(ctx, r.Delay(attempt)); err != nil {
			return fmt.Errorf("operation cancelled after %d attempts: %w", attempt, err)
		}
	}

	return fmt.Errorf("operation failed after %d attempts, last error: %w", r.config.MaxAttempts, lastErr)
}

// Delay returns the pause after the given failed attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	initial := r.config.InitialDelay.Std()
	limit := r.config.MaxDelay.Std()

	var delay time.Duration

	switch config.BackoffStrategy(r.config.Backoff) {
	case config.BackoffFixed:
		return initial
	case config.BackoffLinear:
		delay = time.Duration(int64(initial) * int64(attempt))
	default:
		delay = time.Duration(float64(initial) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	}

	if delay > limit || delay < 0 {
		return limit
	}

	return delay
}

// NewRetryableError wraps an error indicating whether it's retryable.
func NewRetryableError(err error, retryable bool) *RetryableError {
	return &RetryableError{
		Err:       err,
		Retryable: retryable,
	}
}

// NewFatalError wraps an error as fatal and stops further retries.
func NewFatalError(err error) *RetryableError {
	return &RetryableError{
		Err:   err,
		Fatal: true,
	}
}

// ClassifyError decides whether a failed dial or transfer is worth retrying.
// Errors already wrapped in a RetryableError keep their classification.
func ClassifyError(err error) *RetryableError {
	if err == nil {
		return nil
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return re
	}

	switch {
	case isContextError(err):
		return NewFatalError(err)
	case isPermissionError(err), isNotFoundError(err), isAddressError(err):
		return NewRetryableError(err, false)
	case isNetworkError(err):
		return NewRetryableError(err, true)
	default:
		return NewRetryableError(err, false)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isNetworkError(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.ENETUNREACH,
		syscall.EHOSTUNREACH,
		syscall.ETIMEDOUT,
		syscall.EAGAIN,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	return false
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func isAddressError(err error) bool {
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return true
	}

	var dnsErr *net.DNSError

	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
