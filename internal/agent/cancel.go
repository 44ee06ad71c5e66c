package agent

import "sync/atomic"

// CancelToken is the cooperative cancellation flag for a session. The
// signal side (interrupt handler) sets it; the controller polls it at
// phase boundaries and between commands, clearing it when observed.
type CancelToken struct {
	pending atomic.Bool
}

// NewCancelToken returns a cleared token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Signal requests cancellation. It returns false when a previous signal
// is still pending, which the caller treats as a force-exit request.
func (t *CancelToken) Signal() bool {
	return t.pending.CompareAndSwap(false, true)
}

// Pending reports whether a cancellation is waiting to be observed.
func (t *CancelToken) Pending() bool {
	return t.pending.Load()
}

// Observe consumes a pending cancellation. It returns true exactly once
// per signal.
func (t *CancelToken) Observe() bool {
	return t.pending.CompareAndSwap(true, false)
}
