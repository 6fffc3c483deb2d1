package jq6500

import "sync"

// PlayerState is the driver's local cache of the module's playback settings.
// The module has no unsolicited reporting, so the cache reflects the last
// values the driver set or read over the link.
type PlayerState struct {
	Status    PlayStatus
	Volume    uint8
	Equalizer EqualizerMode
	Loop      LoopMode
	Source    Source
}

// defaultPlayerState returns the power-on settings the module comes up with
// after a reset.
func defaultPlayerState() PlayerState {
	return PlayerState{
		Status:    StatusStopped,
		Volume:    DefaultInitialVolume,
		Equalizer: EQNormal,
		Loop:      LoopAll,
		Source:    SourceSDCard,
	}
}

// playerState guards the cached PlayerState. Readers are callers and the
// status monitor; writers are the high-level operations after a successful
// round-trip.
type playerState struct {
	mu    sync.RWMutex
	state PlayerState
}

func newPlayerState() *playerState {
	return &playerState{state: defaultPlayerState()}
}

// snapshot returns a copy of the cached state.
func (ps *playerState) snapshot() PlayerState {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return ps.state
}

// update applies fn to the cached state under the write lock.
func (ps *playerState) update(fn func(*PlayerState)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	fn(&ps.state)
}

// reset restores the power-on settings.
func (ps *playerState) reset() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.state = defaultPlayerState()
}
