package jq6500

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayerState_Defaults(t *testing.T) {
	ps := newPlayerState()
	state := ps.snapshot()

	assert.Equal(t, StatusStopped, state.Status)
	assert.Equal(t, uint8(DefaultInitialVolume), state.Volume)
	assert.Equal(t, EQNormal, state.Equalizer)
	assert.Equal(t, LoopAll, state.Loop)
	assert.Equal(t, SourceSDCard, state.Source)
}

func TestPlayerState_Update(t *testing.T) {
	ps := newPlayerState()

	ps.update(func(s *PlayerState) {
		s.Status = StatusPlaying
		s.Volume = 7
	})

	state := ps.snapshot()
	assert.Equal(t, StatusPlaying, state.Status)
	assert.Equal(t, uint8(7), state.Volume)

	// Fields the update didn't touch keep their values.
	assert.Equal(t, EQNormal, state.Equalizer)
	assert.Equal(t, SourceSDCard, state.Source)
}

func TestPlayerState_SnapshotIsCopy(t *testing.T) {
	ps := newPlayerState()

	state := ps.snapshot()
	state.Volume = 3

	assert.Equal(t, uint8(DefaultInitialVolume), ps.snapshot().Volume)
}

func TestPlayerState_Reset(t *testing.T) {
	ps := newPlayerState()

	ps.update(func(s *PlayerState) {
		s.Status = StatusPlaying
		s.Volume = 30
		s.Equalizer = EQRock
		s.Loop = LoopOne
		s.Source = SourceBuiltin
	})

	ps.reset()

	assert.Equal(t, defaultPlayerState(), ps.snapshot())
}

func TestPlayerState_ConcurrentAccess(t *testing.T) {
	ps := newPlayerState()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func(v uint8) {
			defer wg.Done()

			ps.update(func(s *PlayerState) { s.Volume = v })
		}(uint8(i))

		go func() {
			defer wg.Done()

			state := ps.snapshot()
			assert.LessOrEqual(t, state.Volume, uint8(MaxVolume))
		}()
	}

	wg.Wait()
}
