package core

// loopState is the state of the blocking transfer machine.
type loopState int

const (
	stateRunning loopState = iota
	stateDone
	stateFailed
)

func (s loopState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

// transferLoop tracks one blocking transfer. Its cursor is private: it is
// never written back to the source while the loop runs.
type transferLoop struct {
	op        string
	state     loopState
	sent      int64
	cursor    int64
	remaining int64
	err       error
}

func newTransferLoop(op string, cursor, count int64) *transferLoop {
	l := &transferLoop{op: op, cursor: cursor, remaining: count}
	if count == 0 {
		l.state = stateDone
	}

	return l
}

// advance books n transferred bytes, clamped so that a misbehaving adapter
// cannot push the cursor past the request.
func (l *transferLoop) advance(n int64) {
	if n <= 0 {
		return
	}

	if n > l.remaining {
		n = l.remaining
	}

	l.sent += n
	l.cursor += n
	l.remaining -= n

	if l.remaining == 0 {
		l.state = stateDone
	}
}

func (l *transferLoop) fail(err error) {
	l.state = stateFailed
	l.err = err
}

// step applies one adapter outcome. It returns true when the caller must wait
// for the destination to become writable before the next attempt.
func (l *transferLoop) step(out Outcome, blocking bool) (wait bool) {
	switch out.Status {
	case StatusSent:
		l.advance(out.N)
	case StatusEOF:
		if l.sent > 0 {
			l.state = stateDone
		} else {
			l.fail(endOfFile(l.op))
		}
	case StatusWouldBlock:
		l.advance(out.N)
		// A blocking descriptor should never report EAGAIN; if one does,
		// retry at once rather than wait on a descriptor the poller may not know.
		return l.state == stateRunning && !blocking
	default:
		l.fail(mapOutcome(l.op, out))
	}

	return false
}

// run drives the machine until it leaves stateRunning or must wait. It is
// shaped as a syscall.RawConn.Write callback: false means "wait for
// writability, then call again".
func (l *transferLoop) run(send func(cursor, remaining int64) Outcome, blocking bool) bool {
	for l.state == stateRunning {
		if l.step(send(l.cursor, l.remaining), blocking) {
			return false
		}
	}

	return true
}
