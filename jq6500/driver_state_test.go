package jq6500

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicTxState_ZeroValue(t *testing.T) {
	st := &atomicTxState{}

	assert.Equal(t, txIdle, st.Get())
	assert.False(t, st.IsBusy())
	assert.False(t, st.IsClosed())
}

func TestAtomicTxState_String(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(st *atomicTxState)
		expected string
	}{
		{
			name:     "Idle",
			setup:    func(st *atomicTxState) {},
			expected: "Idle",
		},
		{
			name:     "Busy",
			setup:    func(st *atomicTxState) { st.Acquire() },
			expected: "Busy",
		},
		{
			name:     "Closed",
			setup:    func(st *atomicTxState) { st.Close() },
			expected: "Closed",
		},
		{
			name:     "Unknown",
			setup:    func(st *atomicTxState) { st.state.Store(99) },
			expected: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &atomicTxState{}
			tt.setup(st)
			assert.Equal(t, tt.expected, st.String())
		})
	}
}

func TestAtomicTxState_IsStates(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(st *atomicTxState)
		isBusy   bool
		isClosed bool
	}{
		{
			name:     "Idle",
			setup:    func(st *atomicTxState) {},
			isBusy:   false,
			isClosed: false,
		},
		{
			name:     "Busy",
			setup:    func(st *atomicTxState) { st.Acquire() },
			isBusy:   true,
			isClosed: false,
		},
		{
			name:     "Closed",
			setup:    func(st *atomicTxState) { st.Close() },
			isBusy:   false,
			isClosed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &atomicTxState{}
			tt.setup(st)
			assert.Equal(t, tt.isBusy, st.IsBusy())
			assert.Equal(t, tt.isClosed, st.IsClosed())
		})
	}
}

func TestAtomicTxState_Acquire(t *testing.T) {
	t.Run("FromIdle", func(t *testing.T) {
		st := &atomicTxState{}
		assert.True(t, st.Acquire())
		assert.Equal(t, txBusy, st.Get())
	})

	t.Run("FromBusy", func(t *testing.T) {
		st := &atomicTxState{}
		st.Acquire()
		assert.False(t, st.Acquire())
		assert.Equal(t, txBusy, st.Get())
	})

	t.Run("FromClosed", func(t *testing.T) {
		st := &atomicTxState{}
		st.Close()
		assert.False(t, st.Acquire())
		assert.Equal(t, txClosed, st.Get())
	})
}

func TestAtomicTxState_Release(t *testing.T) {
	t.Run("FromBusy", func(t *testing.T) {
		st := &atomicTxState{}
		st.Acquire()
		assert.True(t, st.Release())
		assert.Equal(t, txIdle, st.Get())
	})

	t.Run("FromIdle", func(t *testing.T) {
		st := &atomicTxState{}
		assert.False(t, st.Release())
		assert.Equal(t, txIdle, st.Get())
	})

	t.Run("FromClosed", func(t *testing.T) {
		// Release after Close raced an in-flight transaction must leave the
		// slot closed, or a new send could sneak past the teardown.
		st := &atomicTxState{}
		st.Acquire()
		st.Close()
		assert.False(t, st.Release())
		assert.Equal(t, txClosed, st.Get())
	})
}

func TestAtomicTxState_Close(t *testing.T) {
	t.Run("FromIdle", func(t *testing.T) {
		st := &atomicTxState{}
		assert.True(t, st.Close())
		assert.Equal(t, txClosed, st.Get())
	})

	t.Run("FromBusy", func(t *testing.T) {
		st := &atomicTxState{}
		st.Acquire()
		assert.True(t, st.Close())
		assert.Equal(t, txClosed, st.Get())
	})

	t.Run("FromClosed", func(t *testing.T) {
		// Only the first closer reports the transition and runs teardown.
		st := &atomicTxState{}
		st.Close()
		assert.False(t, st.Close())
		assert.Equal(t, txClosed, st.Get())
	})
}

func TestAtomicTxState_AcquireReleaseCycle(t *testing.T) {
	st := &atomicTxState{}

	for i := 0; i < 10; i++ {
		assert.True(t, st.Acquire())
		assert.True(t, st.Release())
	}

	assert.Equal(t, txIdle, st.Get())
}

func TestAtomicTxState_ConcurrentAcquire(t *testing.T) {
	// Many goroutines race for the slot; the CAS admits exactly one.
	st := &atomicTxState{}

	const goroutines = 16

	var (
		wg   sync.WaitGroup
		wins int32
	)

	start := make(chan struct{})
	results := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start
			results <- st.Acquire()
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	for won := range results {
		if won {
			wins++
		}
	}

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, txBusy, st.Get())
}
