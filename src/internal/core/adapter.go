package core

// Status classifies a single adapter invocation.
type Status int

// Adapter outcomes.
const (
	// StatusSent means N bytes (possibly zero) moved and the caller may try again.
	StatusSent Status = iota
	// StatusEOF means the source has no bytes at or beyond the offset.
	StatusEOF
	// StatusWouldBlock means the destination is full; N holds any partial progress.
	StatusWouldBlock
	// StatusFailed means the call failed; Err carries the system error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusEOF:
		return "eof"
	case StatusWouldBlock:
		return "would-block"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of exactly one native zero-copy call.
type Outcome struct {
	N      int64
	Status Status
	Err    error
}

// Adapter performs one native transfer attempt of at most count bytes from
// src at offset into dst. It never loops and never waits.
type Adapter interface {
	Capability() Capability
	Send(dst, src int, offset, count int64) Outcome
}

// maxSendfileSize caps a single call so one transfer does not monopolize
// the descriptor; the transfer loop issues as many calls as it needs.
const maxSendfileSize int64 = 4 << 20

// platformAdapter is the adapter compiled for this GOOS. Each adapter_*.go
// file provides its Send and the matching platformCapability constant.
type platformAdapter struct{}

func (platformAdapter) Capability() Capability {
	return platformCapability
}

func clampCount(count, limit int64) int {
	if count > limit {
		count = limit
	}

	return int(count)
}
