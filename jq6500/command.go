package jq6500

import "fmt"

// JQ6500 command opcodes.
// Control opcodes (0x01–0x12) change playback state and are acknowledged with
// an opcode echo; query opcodes (0x42–0x53) reply with a value payload.
const (
	// CmdNext advances to the next track.
	CmdNext byte = 0x01

	// CmdPrev steps back to the previous track.
	CmdPrev byte = 0x02

	// CmdPlayIndex plays a track by its absolute index (u16 big-endian, 1-based).
	CmdPlayIndex byte = 0x03

	// CmdVolumeUp raises the volume one step.
	CmdVolumeUp byte = 0x04

	// CmdVolumeDown lowers the volume one step.
	CmdVolumeDown byte = 0x05

	// CmdSetVolume sets the volume level (0–30).
	CmdSetVolume byte = 0x06

	// CmdSetEqualizer selects an equalizer preset (0–5).
	CmdSetEqualizer byte = 0x07

	// CmdSetSource selects the storage source (1=SD card, 4=built-in flash).
	CmdSetSource byte = 0x09

	// CmdSleep puts the module into low-power sleep.
	CmdSleep byte = 0x0A

	// CmdReset performs a soft reset of the module.
	CmdReset byte = 0x0C

	// CmdPlay starts or resumes playback.
	CmdPlay byte = 0x0D

	// CmdPause pauses playback.
	CmdPause byte = 0x0E

	// CmdChangeFolder changes folder (param 1=next, 0=previous).
	CmdChangeFolder byte = 0x0F

	// CmdSetLoopMode selects the looping mode (0–4).
	CmdSetLoopMode byte = 0x11

	// CmdPlayFolderFile plays a file by folder and file number.
	CmdPlayFolderFile byte = 0x12

	// CmdQueryStatus reports the play status (stopped/playing/paused).
	CmdQueryStatus byte = 0x42

	// CmdQueryVolume reports the current volume level.
	CmdQueryVolume byte = 0x43

	// CmdQueryEqualizer reports the current equalizer preset.
	CmdQueryEqualizer byte = 0x44

	// CmdQueryLoopMode reports the current looping mode.
	CmdQueryLoopMode byte = 0x45

	// CmdQueryVersion reports the firmware version.
	CmdQueryVersion byte = 0x46

	// CmdCountSDTracks reports the number of files on the SD card.
	CmdCountSDTracks byte = 0x47

	// CmdCountFlashTracks reports the number of files on built-in flash.
	CmdCountFlashTracks byte = 0x49

	// CmdIndexSDTrack reports the index of the current SD card file.
	CmdIndexSDTrack byte = 0x4B

	// CmdIndexFlashTrack reports the index of the current flash file.
	CmdIndexFlashTrack byte = 0x4D

	// CmdQueryPosition reports the position in the current track, in seconds.
	CmdQueryPosition byte = 0x50

	// CmdQueryLength reports the length of the current track, in seconds.
	CmdQueryLength byte = 0x51

	// CmdQueryTrackName reports the current file name (ASCII payload).
	CmdQueryTrackName byte = 0x52

	// CmdCountSDFolders reports the number of folders on the SD card.
	CmdCountSDFolders byte = 0x53
)

// MaxVolume is the highest volume level the module accepts.
const MaxVolume = 30

// EqualizerMode selects one of the module's equalizer presets.
type EqualizerMode byte

const (
	EQNormal EqualizerMode = iota
	EQPop
	EQRock
	EQJazz
	EQClassic
	EQBass
)

func (m EqualizerMode) String() string {
	switch m {
	case EQNormal:
		return "normal"
	case EQPop:
		return "pop"
	case EQRock:
		return "rock"
	case EQJazz:
		return "jazz"
	case EQClassic:
		return "classic"
	case EQBass:
		return "bass"
	default:
		return fmt.Sprintf("equalizer(%d)", byte(m))
	}
}

// Source selects which storage the module plays from.
type Source byte

const (
	SourceSDCard  Source = 1
	SourceBuiltin Source = 4
)

func (s Source) String() string {
	switch s {
	case SourceSDCard:
		return "sdcard"
	case SourceBuiltin:
		return "builtin"
	default:
		return fmt.Sprintf("source(%d)", byte(s))
	}
}

// LoopMode selects the module's looping behavior.
type LoopMode byte

const (
	LoopAll    LoopMode = 0 // repeat all tracks
	LoopFolder LoopMode = 1 // repeat the current folder
	LoopOne    LoopMode = 2 // repeat the current track
	LoopRAM    LoopMode = 3 // repeat from RAM
	LoopNone   LoopMode = 4 // play the current track once, then stop
)

func (m LoopMode) String() string {
	switch m {
	case LoopAll:
		return "all"
	case LoopFolder:
		return "folder"
	case LoopOne:
		return "one"
	case LoopRAM:
		return "ram"
	case LoopNone:
		return "none"
	default:
		return fmt.Sprintf("loop(%d)", byte(m))
	}
}

// PlayStatus reports the module's playback state.
type PlayStatus byte

const (
	StatusStopped PlayStatus = 0
	StatusPlaying PlayStatus = 1
	StatusPaused  PlayStatus = 2
)

func (s PlayStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// Command is one encodable instruction for the module: an opcode plus its
// parameter bytes. Build commands with NewCommand so parameter count and
// ranges are validated up front.
type Command struct {
	Op     byte
	Params []byte
}

// paramCounts maps each known opcode to its expected parameter byte count.
var paramCounts = map[byte]int{
	CmdNext:             0,
	CmdPrev:             0,
	CmdPlayIndex:        2,
	CmdVolumeUp:         0,
	CmdVolumeDown:       0,
	CmdSetVolume:        1,
	CmdSetEqualizer:     1,
	CmdSetSource:        1,
	CmdSleep:            0,
	CmdReset:            0,
	CmdPlay:             0,
	CmdPause:            0,
	CmdChangeFolder:     1,
	CmdSetLoopMode:      1,
	CmdPlayFolderFile:   2,
	CmdQueryStatus:      0,
	CmdQueryVolume:      0,
	CmdQueryEqualizer:   0,
	CmdQueryLoopMode:    0,
	CmdQueryVersion:     0,
	CmdCountSDTracks:    0,
	CmdCountFlashTracks: 0,
	CmdIndexSDTrack:     0,
	CmdIndexFlashTrack:  0,
	CmdQueryPosition:    0,
	CmdQueryLength:      0,
	CmdQueryTrackName:   0,
	CmdCountSDFolders:   0,
}

// cmdNames maps opcodes to short names for structured logging.
var cmdNames = map[byte]string{
	CmdNext:             "next",
	CmdPrev:             "prev",
	CmdPlayIndex:        "playIndex",
	CmdVolumeUp:         "volumeUp",
	CmdVolumeDown:       "volumeDown",
	CmdSetVolume:        "setVolume",
	CmdSetEqualizer:     "setEqualizer",
	CmdSetSource:        "setSource",
	CmdSleep:            "sleep",
	CmdReset:            "reset",
	CmdPlay:             "play",
	CmdPause:            "pause",
	CmdChangeFolder:     "changeFolder",
	CmdSetLoopMode:      "setLoopMode",
	CmdPlayFolderFile:   "playFolderFile",
	CmdQueryStatus:      "queryStatus",
	CmdQueryVolume:      "queryVolume",
	CmdQueryEqualizer:   "queryEqualizer",
	CmdQueryLoopMode:    "queryLoopMode",
	CmdQueryVersion:     "queryVersion",
	CmdCountSDTracks:    "countSDTracks",
	CmdCountFlashTracks: "countFlashTracks",
	CmdIndexSDTrack:     "indexSDTrack",
	CmdIndexFlashTrack:  "indexFlashTrack",
	CmdQueryPosition:    "queryPosition",
	CmdQueryLength:      "queryLength",
	CmdQueryTrackName:   "queryTrackName",
	CmdCountSDFolders:   "countSDFolders",
}

// CommandName returns a short human-readable name for op, or a hex rendering
// for opcodes outside the command table.
func CommandName(op byte) string {
	if name, ok := cmdNames[op]; ok {
		return name
	}

	return fmt.Sprintf("0x%02X", op)
}

// NewCommand builds a validated Command for op.
//
// It returns ErrInvalidParameter when op is not in the command table, when the
// parameter count doesn't match the opcode, or when a parameter value is out
// of the opcode's range.
func NewCommand(op byte, params ...byte) (Command, error) {
	want, ok := paramCounts[op]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown opcode 0x%02X", ErrInvalidParameter, op)
	}

	if len(params) != want {
		return Command{}, fmt.Errorf("%w: %s expects %d parameter bytes, got %d",
			ErrInvalidParameter, CommandName(op), want, len(params))
	}

	if err := validateRange(op, params); err != nil {
		return Command{}, err
	}

	return Command{Op: op, Params: params}, nil
}

// validateRange checks parameter value ranges for opcodes that constrain them.
func validateRange(op byte, params []byte) error {
	switch op {
	case CmdSetVolume:
		if params[0] > MaxVolume {
			return fmt.Errorf("%w: volume %d exceeds maximum %d", ErrInvalidParameter, params[0], MaxVolume)
		}

	case CmdSetEqualizer:
		if params[0] > byte(EQBass) {
			return fmt.Errorf("%w: equalizer mode %d out of range 0-%d", ErrInvalidParameter, params[0], byte(EQBass))
		}

	case CmdSetSource:
		if src := Source(params[0]); src != SourceSDCard && src != SourceBuiltin {
			return fmt.Errorf("%w: source %d is neither sdcard (%d) nor builtin (%d)",
				ErrInvalidParameter, params[0], byte(SourceSDCard), byte(SourceBuiltin))
		}

	case CmdSetLoopMode:
		if params[0] > byte(LoopNone) {
			return fmt.Errorf("%w: loop mode %d out of range 0-%d", ErrInvalidParameter, params[0], byte(LoopNone))
		}

	case CmdChangeFolder:
		if params[0] > 1 {
			return fmt.Errorf("%w: folder direction %d must be 0 (previous) or 1 (next)", ErrInvalidParameter, params[0])
		}

	case CmdPlayIndex:
		if params[0] == 0 && params[1] == 0 {
			return fmt.Errorf("%w: track index is 1-based", ErrInvalidParameter)
		}

	case CmdPlayFolderFile:
		if params[0] == 0 || params[1] == 0 {
			return fmt.Errorf("%w: folder and file numbers are 1-based", ErrInvalidParameter)
		}
	}

	return nil
}

// Name returns the command's short name for logging.
func (c Command) Name() string {
	return CommandName(c.Op)
}
