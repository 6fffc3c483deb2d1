package jq6500

import "fmt"

// query builds a parameterless query command and returns its numeric reply.
func (d *Driver) query(op byte) (uint16, error) {
	cmd, err := NewCommand(op)
	if err != nil {
		return 0, err
	}

	return d.sendQuery(cmd)
}

// Status returns the module's live play status and refreshes the cache.
//
// Status reporting is unreliable with an SD card source; the built-in flash
// reports correctly.
func (d *Driver) Status() (PlayStatus, error) {
	v, err := d.query(CmdQueryStatus)
	if err != nil {
		return StatusStopped, err
	}

	status := PlayStatus(v)
	d.state.update(func(s *PlayerState) { s.Status = status })

	return status, nil
}

// Volume returns the module's current volume level (0-30).
func (d *Driver) Volume() (uint8, error) {
	v, err := d.query(CmdQueryVolume)
	if err != nil {
		return 0, err
	}

	level := uint8(v)
	d.state.update(func(s *PlayerState) { s.Volume = level })

	return level, nil
}

// Equalizer returns the module's current equalizer preset.
func (d *Driver) Equalizer() (EqualizerMode, error) {
	v, err := d.query(CmdQueryEqualizer)
	if err != nil {
		return EQNormal, err
	}

	mode := EqualizerMode(v)
	d.state.update(func(s *PlayerState) { s.Equalizer = mode })

	return mode, nil
}

// LoopMode returns the module's current loop mode.
func (d *Driver) LoopMode() (LoopMode, error) {
	v, err := d.query(CmdQueryLoopMode)
	if err != nil {
		return LoopAll, err
	}

	mode := LoopMode(v)
	d.state.update(func(s *PlayerState) { s.Loop = mode })

	return mode, nil
}

// Version returns the module's firmware version number.
func (d *Driver) Version() (uint16, error) {
	return d.query(CmdQueryVersion)
}

// TrackCount returns the number of tracks on the given source.
func (d *Driver) TrackCount(src Source) (uint16, error) {
	switch src {
	case SourceSDCard:
		return d.query(CmdCountSDTracks)
	case SourceBuiltin:
		return d.query(CmdCountFlashTracks)
	default:
		return 0, fmt.Errorf("%w: source %d", ErrInvalidParameter, src)
	}
}

// TrackIndex returns the FAT table index of the current track. It refers to
// the playing or paused track; when stopped, to the next track to play.
//
// The built-in flash reports its index off by one; the driver corrects it.
func (d *Driver) TrackIndex(src Source) (uint16, error) {
	switch src {
	case SourceSDCard:
		return d.query(CmdIndexSDTrack)
	case SourceBuiltin:
		index, err := d.query(CmdIndexFlashTrack)
		if err != nil {
			return 0, err
		}

		return index + 1, nil
	default:
		return 0, fmt.Errorf("%w: source %d", ErrInvalidParameter, src)
	}
}

// FolderCount returns the number of folders on the given source. Only an SD
// card can have folders; any other source reports zero without a link
// round-trip.
func (d *Driver) FolderCount(src Source) (uint16, error) {
	if src != SourceSDCard {
		return 0, nil
	}

	return d.query(CmdCountSDFolders)
}

// Position returns the playback position of the current track in seconds.
func (d *Driver) Position() (uint16, error) {
	return d.query(CmdQueryPosition)
}

// Length returns the total length of the current track in seconds.
func (d *Driver) Length() (uint16, error) {
	return d.query(CmdQueryLength)
}

// TrackName returns the filename of the current track. The SD card must be
// the active source.
func (d *Driver) TrackName() (string, error) {
	cmd, err := NewCommand(CmdQueryTrackName)
	if err != nil {
		return "", err
	}

	resp, err := d.Send(cmd)
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}
