package server

import (
	"sync/atomic"
	"time"
)

// Stats holds live server counters. The zero value is ready to use.
type Stats struct {
	started  atomic.Int64
	active   atomic.Int64
	accepted atomic.Int64
	served   atomic.Int64
	failed   atomic.Int64
	bytes    atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Uptime   time.Duration
	Active   int64
	Accepted int64
	Served   int64
	Failed   int64
	Bytes    int64
}

func (s *Stats) start(now time.Time) {
	s.started.CompareAndSwap(0, now.UnixNano())
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Active:   s.active.Load(),
		Accepted: s.accepted.Load(),
		Served:   s.served.Load(),
		Failed:   s.failed.Load(),
		Bytes:    s.bytes.Load(),
	}

	if started := s.started.Load(); started != 0 {
		snap.Uptime = time.Since(time.Unix(0, started))
	}

	return snap
}
