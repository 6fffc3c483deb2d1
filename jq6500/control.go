package jq6500

import (
	"time"

	"github.com/audiokit/go-jq6500/internal/pool"
)

// resetSettleDelay is how long the module needs after a soft reset before
// it accepts the next command.
const resetSettleDelay = 500 * time.Millisecond

// Folder-change directions for CmdChangeFolder.
const (
	folderPrev byte = 0x00
	folderNext byte = 0x01
)

// control builds a command and runs it as an acknowledged transaction.
func (d *Driver) control(op byte, params ...byte) error {
	cmd, err := NewCommand(op, params...)
	if err != nil {
		return err
	}

	return d.sendControl(cmd)
}

// settle blocks for the given delay or until the driver context ends.
func (d *Driver) settle(delay time.Duration) {
	timer := pool.GetTimer(delay)
	defer pool.PutTimer(timer)

	select {
	case <-timer.C:
	case <-d.pctx.Done():
	}
}

// --- Playback ---

// Play starts or resumes playback of the current track.
func (d *Driver) Play() error {
	if err := d.control(CmdPlay); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// Pause pauses the current track. Use Play to resume.
func (d *Driver) Pause() error {
	if err := d.control(CmdPause); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPaused })

	return nil
}

// PlayPause toggles between playing and paused. It queries the module for
// the live status first, so it stays correct even when the track ran out on
// its own.
func (d *Driver) PlayPause() error {
	status, err := d.Status()
	if err != nil {
		return err
	}

	if status == StatusPlaying {
		return d.Pause()
	}

	return d.Play()
}

// Next skips to the next track.
func (d *Driver) Next() error {
	if err := d.control(CmdNext); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// Prev skips to the previous track.
func (d *Driver) Prev() error {
	if err := d.control(CmdPrev); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// PlayTrack plays a track by its FAT table index (1-based).
//
// The index follows FAT table order, which has nothing to do with the
// filename; re-sort the FAT table to control it.
func (d *Driver) PlayTrack(index uint16) error {
	if err := d.control(CmdPlayIndex, byte(index>>8), byte(index)); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// PlayFolderTrack plays a track by folder number and file number. SD card
// only: folders must be named 01-99 and files 001.mp3-999.mp3.
func (d *Driver) PlayFolderTrack(folder, track uint8) error {
	if err := d.control(CmdPlayFolderFile, folder, track); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// NextFolder jumps to the first track of the next folder.
func (d *Driver) NextFolder() error {
	if err := d.control(CmdChangeFolder, folderNext); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// PrevFolder jumps to the first track of the previous folder.
func (d *Driver) PrevFolder() error {
	if err := d.control(CmdChangeFolder, folderPrev); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusPlaying })

	return nil
}

// Restart replays the current track from the beginning.
//
// The module has no rewind command, so the driver mutes, skips forward,
// pauses, restores the volume, and skips back. The track ends up at its
// start with the original volume, playing.
func (d *Driver) Restart() error {
	volume, err := d.Volume()
	if err != nil {
		return err
	}

	if err := d.SetVolume(0); err != nil {
		return err
	}

	if err := d.Next(); err != nil {
		return err
	}

	if err := d.Pause(); err != nil {
		return err
	}

	if err := d.SetVolume(volume); err != nil {
		return err
	}

	return d.Prev()
}

// --- Volume and settings ---

// VolumeUp raises the volume by one step.
func (d *Driver) VolumeUp() error {
	if err := d.control(CmdVolumeUp); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) {
		if s.Volume < MaxVolume {
			s.Volume++
		}
	})

	return nil
}

// VolumeDown lowers the volume by one step.
func (d *Driver) VolumeDown() error {
	if err := d.control(CmdVolumeDown); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) {
		if s.Volume > 0 {
			s.Volume--
		}
	})

	return nil
}

// SetVolume sets the volume level. Range 0-30.
func (d *Driver) SetVolume(level uint8) error {
	if err := d.control(CmdSetVolume, level); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Volume = level })

	return nil
}

// SetEqualizer selects one of the six equalizer presets.
func (d *Driver) SetEqualizer(mode EqualizerMode) error {
	if err := d.control(CmdSetEqualizer, byte(mode)); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Equalizer = mode })

	return nil
}

// SetLoopMode selects the loop mode.
func (d *Driver) SetLoopMode(mode LoopMode) error {
	if err := d.control(CmdSetLoopMode, byte(mode)); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Loop = mode })

	return nil
}

// SetSource selects where tracks are read from. SourceSDCard requires the
// 28-pin module variant.
func (d *Driver) SetSource(src Source) error {
	if err := d.control(CmdSetSource, byte(src)); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Source = src })

	return nil
}

// --- Power ---

// Sleep puts the module into low-power sleep. Not recommended while an SD
// card is the active source.
func (d *Driver) Sleep() error {
	if err := d.control(CmdSleep); err != nil {
		return err
	}

	d.state.update(func(s *PlayerState) { s.Status = StatusStopped })

	return nil
}

// Reset soft-resets the module, blocks for the settle delay it needs before
// accepting the next command, and restores the cached settings to their
// power-on values.
//
// A soft reset is not fully reliable, especially with SD cards; power
// cycling is preferable when the hardware allows it.
func (d *Driver) Reset() error {
	if err := d.control(CmdReset); err != nil {
		return err
	}

	d.settle(resetSettleDelay)
	d.state.reset()

	return nil
}
