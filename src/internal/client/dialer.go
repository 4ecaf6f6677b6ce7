// Package client dials sendfile peers with retry and pushes file ranges to
// them through the zero-copy core.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Dialer connects to a peer, retrying transient failures.
type Dialer struct {
	Network string
	Timeout time.Duration
	Retrier *Retrier
	Logger  *zap.Logger
}

// NewDialer returns a dialer for network with the given retrier and logger.
// Nil values fall back to defaults.
func NewDialer(network string, retrier *Retrier, logger *zap.Logger) *Dialer {
	if retrier == nil {
		retrier = NewRetrier(nil)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dialer{
		Network: network,
		Timeout: 10 * time.Second,
		Retrier: retrier,
		Logger:  logger,
	}
}

// Dial connects to address.
func (d *Dialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	var (
		conn   net.Conn
		dialer = net.Dialer{Timeout: d.Timeout}
	)

	err := d.Retrier.Do(ctx, func(attempt int) error {
		c, err := dialer.DialContext(ctx, d.Network, address)
		if err != nil {
			d.Logger.Debug("dial failed",
				zap.String("network", d.Network),
				zap.String("address", address),
				zap.Int("attempt", attempt),
				zap.Error(err))

			return err
		}

		conn = c

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s %s: %w", d.Network, address, err)
	}

	d.Logger.Debug("connected",
		zap.String("network", d.Network),
		zap.String("local", conn.LocalAddr().String()),
		zap.String("remote", conn.RemoteAddr().String()))

	return conn, nil
}
