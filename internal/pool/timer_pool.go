// Package pool provides shared object pools for hot-path allocations,
// primarily timers used for response deadlines and settle delays.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer from the pool, reset to fire after d.
//
// Return the timer to the pool with PutTimer once it is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // only *time.Timer values are ever pooled
	if t.Reset(d) {
		// The timer was still active; drain a pending tick so the caller
		// never observes a stale expiry.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool.
//
// t must not be accessed after being returned to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if the tick wasn't consumed by the caller.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
