// Package server serves catalog files over stream sockets with zero-copy
// transfers, and collects streams sent by the client.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/codeslinger/sendfile/src/internal/config"
	"github.com/codeslinger/sendfile/src/internal/core"
)

const requestTimeout = 10 * time.Second

// Server answers one request per connection with bytes from the catalog.
type Server struct {
	catalog      *Catalog
	transferer   *core.Transferer
	logger       *zap.Logger
	maxConns     int64
	writeTimeout time.Duration
	stats        Stats
}

// New creates a server for catalog. cfg supplies the connection limit and
// write timeout; a nil transferer uses the platform default.
func New(cfg *config.ServerConfig, catalog *Catalog, transferer *core.Transferer, logger *zap.Logger) *Server {
	if transferer == nil {
		transferer = core.New()
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		catalog:    catalog,
		transferer: transferer,
		logger:     logger,
		maxConns:   64,
	}

	if cfg != nil {
		if cfg.MaxConns > 0 {
			s.maxConns = int64(cfg.MaxConns)
		}

		s.writeTimeout = cfg.WriteTimeout.Std()
	}

	return s
}

// Stats returns the live counters.
func (s *Server) Stats() *Stats {
	return &s.stats
}

// Serve accepts connections on ln until ctx is done, then closes ln and
// waits for in-flight transfers. It returns nil on cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.stats.start(time.Now())

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	sem := semaphore.NewWeighted(s.maxConns)

	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("serving",
		zap.String("addr", ln.Addr().String()),
		zap.String("root", s.catalog.Root()),
		zap.Int64("max_conns", s.maxConns),
		zap.Stringer("capability", s.transferer.Capability()))

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			sem.Release(1)

			if ctx.Err() != nil {
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}

			return fmt.Errorf("accept failed: %w", err)
		}

		s.stats.accepted.Add(1)
		s.stats.active.Add(1)

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer s.stats.active.Add(-1)

			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	log := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))

	n, err := s.respond(conn, log)
	if err != nil {
		s.stats.failed.Add(1)
		log.Warn("request failed", zap.Int64("sent", n), zap.Error(err))

		return
	}

	s.stats.served.Add(1)
	s.stats.bytes.Add(n)
}

func (s *Server) respond(conn net.Conn, log *zap.Logger) (int64, error) {
	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))

	req, err := ReadRequest(bufio.NewReaderSize(conn, MaxRequestLine))
	if err != nil {
		_ = WriteError(conn, err.Error())
		return 0, fmt.Errorf("bad request: %w", err)
	}

	if s.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	entry, ok := s.catalog.Lookup(req.Name)
	if !ok {
		_ = WriteError(conn, "not found: "+req.Name)
		return 0, fmt.Errorf("%s: %w", req.Name, os.ErrNotExist)
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		_ = WriteError(conn, "unavailable: "+req.Name)
		return 0, fmt.Errorf("failed to open %s: %w", entry.Path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		_ = WriteError(conn, "unavailable: "+req.Name)
		return 0, fmt.Errorf("failed to stat %s: %w", entry.Path, err)
	}

	offset := req.Offset
	if offset > st.Size() {
		_ = WriteError(conn, "offset beyond end of file")
		return 0, fmt.Errorf("%s: offset %d beyond size %d", req.Name, offset, st.Size())
	}

	length := st.Size() - offset
	if req.HasCount && req.Count < length {
		length = req.Count
	}

	dst, ok := conn.(core.Destination)
	if !ok {
		_ = WriteError(conn, "internal error")
		return 0, fmt.Errorf("%T has no descriptor", conn)
	}

	if err := WriteOK(conn, length); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	if length == 0 {
		return 0, nil
	}

	start := time.Now()

	n, err := s.transferer.Transfer(dst, f, core.WithOffset(offset), core.WithCount(length))
	if err != nil {
		return n, err
	}

	if n != length {
		return n, fmt.Errorf("%s: short transfer, %d of %d bytes", req.Name, n, length)
	}

	log.Debug("served",
		zap.String("name", req.Name),
		zap.Int64("offset", offset),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)))

	return n, nil
}
