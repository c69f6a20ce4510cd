package session

import "sync/atomic"

// latch is a one-shot guard: exactly one Trip call ever returns true.
type latch struct {
	tripped atomic.Bool
}

func (l *latch) Trip() bool {
	return l.tripped.CompareAndSwap(false, true)
}

func (l *latch) Tripped() bool {
	return l.tripped.Load()
}
