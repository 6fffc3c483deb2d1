package jq6500

import "sync/atomic"

// txState is the driver's transaction-slot state.
type txState uint32

const (
	txIdle txState = iota
	txBusy
	txClosed
)

// atomicTxState is a lock-free holder for the transaction slot. The CAS
// transitions are what enforce the at-most-one-in-flight rule: a second
// sender finds the slot busy and is rejected before touching the link.
type atomicTxState struct {
	state atomic.Uint32
}

func (st *atomicTxState) String() string {
	switch st.Get() {
	case txIdle:
		return "Idle"
	case txBusy:
		return "Busy"
	case txClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Get returns the current state.
func (st *atomicTxState) Get() txState {
	return txState(st.state.Load())
}

// IsClosed reports whether the driver has been closed.
func (st *atomicTxState) IsClosed() bool {
	return st.Get() == txClosed
}

// IsBusy reports whether a transaction is in flight.
func (st *atomicTxState) IsBusy() bool {
	return st.Get() == txBusy
}

// Acquire attempts to take the transaction slot. It returns false when a
// transaction is already in flight or the driver is closed.
func (st *atomicTxState) Acquire() bool {
	return st.state.CompareAndSwap(uint32(txIdle), uint32(txBusy))
}

// Release frees the transaction slot after a transaction completes. It keeps
// a Closed state intact when Close raced the in-flight transaction.
func (st *atomicTxState) Release() bool {
	return st.state.CompareAndSwap(uint32(txBusy), uint32(txIdle))
}

// Close marks the driver closed, whatever state it was in. It reports
// whether this call performed the transition, so only one closer runs the
// teardown sequence.
func (st *atomicTxState) Close() bool {
	for {
		cur := st.state.Load()
		if txState(cur) == txClosed {
			return false
		}

		if st.state.CompareAndSwap(cur, uint32(txClosed)) {
			return true
		}
	}
}
