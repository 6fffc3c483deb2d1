// Package jq6500test emulates a JQ6500 playback module for integration
// tests and examples.
//
// An Emulator speaks the module side of the wire protocol over any
// link.Port: it decodes command frames with the same codec the driver uses,
// applies them to an internal device model, and answers with echo
// acknowledgements or query replies. Fault injection hooks reproduce the
// failures a real deployment sees (lost replies, corrupted checksums, line
// noise, slow modules) deterministically, without a serial line or
// hardware on the bench.
package jq6500test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiokit/go-jq6500/internal/pool"
	"github.com/audiokit/go-jq6500/internal/task"
	"github.com/audiokit/go-jq6500/internal/util"
	"github.com/audiokit/go-jq6500/jq6500"
	"github.com/audiokit/go-jq6500/link"
	"github.com/audiokit/go-jq6500/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultVersion is the firmware version a fresh emulator reports.
const DefaultVersion uint16 = 64

// serveReadInterval bounds each blocking read in the serve loop so Close is
// never stuck behind a quiet line.
const serveReadInterval = 50 * time.Millisecond

// maxNameBytes is the longest file name a reply frame can carry: the
// length byte's span minus itself and the opcode.
const maxNameBytes = jq6500.MaxLenByte - 2

var (
	// ErrServing is returned by Serve when the emulator is already attached
	// to a port.
	ErrServing = errors.New("jq6500test: emulator already serving")

	// ErrClosed is returned for operations on a closed emulator.
	ErrClosed = errors.New("jq6500test: emulator closed")
)

// DeviceState is a snapshot of the emulated module's settings.
type DeviceState struct {
	Version   uint16
	Status    jq6500.PlayStatus
	Volume    uint8
	Equalizer jq6500.EqualizerMode
	Loop      jq6500.LoopMode
	Source    jq6500.Source
	Track     uint16 // current track index, 1-based
	Position  uint16 // seconds into the current track
}

// powerOnState returns the settings the module boots with.
func powerOnState() DeviceState {
	return DeviceState{
		Version:   DefaultVersion,
		Status:    jq6500.StatusStopped,
		Volume:    jq6500.DefaultInitialVolume,
		Equalizer: jq6500.EQNormal,
		Loop:      jq6500.LoopAll,
		Source:    jq6500.SourceSDCard,
		Track:     1,
	}
}

// Track is one entry in the emulated file table.
type Track struct {
	Name   string // 8.3 file name reported for queryTrackName
	Length uint16 // track length in seconds
}

// trackKey addresses a track by storage source and 1-based index.
type trackKey struct {
	src   jq6500.Source
	index uint16
}

// Emulator models the module side of the link: a device state machine
// behind the frame codec. Attach it to a port with Serve, or let Pipe build
// the in-memory link for you. All methods are safe for concurrent use.
type Emulator struct {
	logger  logger.Logger
	taskMgr *task.Manager

	mu      sync.Mutex // guards dev, counts, folders
	dev     DeviceState
	counts  map[jq6500.Source]uint16
	folders uint16

	tracks *xsync.MapOf[trackKey, Track]

	pmu    sync.Mutex // guards port attachment
	port   link.Port
	closed atomic.Bool
	done   chan struct{}

	wmu     sync.Mutex // serializes frame writes
	dec     jq6500.Decoder
	readBuf []byte

	commandCount atomic.Uint64
	faults       faultState
}

// NewEmulator creates an emulator with power-on device state and an empty
// file table. Populate it with AddTrack and the Set methods, then attach it
// to a port with Serve or Pipe.
func NewEmulator() *Emulator {
	e := &Emulator{
		logger:  logger.GetLogger(),
		dev:     powerOnState(),
		counts:  make(map[jq6500.Source]uint16),
		folders: 1, // the card root counts as a folder
		tracks:  xsync.NewMapOf[trackKey, Track](),
		done:    make(chan struct{}),
		readBuf: make([]byte, 256),
	}
	e.taskMgr = task.NewManager(context.Background(), e.logger)

	return e
}

// Serve attaches the emulator to the module side of port and starts the
// serve loop. The emulator takes ownership of port; Close closes it.
func (e *Emulator) Serve(port link.Port) error {
	if port == nil {
		return errors.New("jq6500test: port is nil")
	}

	if e.closed.Load() {
		return ErrClosed
	}

	e.pmu.Lock()
	if e.port != nil {
		e.pmu.Unlock()

		return ErrServing
	}
	e.port = port
	e.pmu.Unlock()

	if err := e.taskMgr.Start("emulatorServe", e.serveTask); err != nil {
		e.pmu.Lock()
		e.port = nil
		e.pmu.Unlock()

		return err
	}

	e.logger.Debug("emulator serving")

	return nil
}

// attachedPort returns the attached port, or nil before Serve.
func (e *Emulator) attachedPort() link.Port {
	e.pmu.Lock()
	defer e.pmu.Unlock()

	return e.port
}

// Pipe starts the emulator on one end of an in-memory pipe and returns the
// other end for the driver. It stands in for the serial line in tests: pass
// the returned port straight to jq6500.NewDriver.
func (e *Emulator) Pipe() (link.Port, error) {
	local, remote := net.Pipe()

	if err := e.Serve(remote); err != nil {
		_ = local.Close()
		_ = remote.Close()

		return nil, err
	}

	return local, nil
}

// Close stops the serve loop and closes the attached port. Close is
// idempotent.
func (e *Emulator) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(e.done)
	e.taskMgr.Stop()

	var closeErr error
	if port := e.attachedPort(); port != nil {
		closeErr = port.Close()
	}

	e.taskMgr.Wait()

	e.logger.Debug("emulator closed")

	return closeErr
}

// State returns a snapshot of the emulated device settings.
func (e *Emulator) State() DeviceState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.dev
}

// CommandCount reports how many well-formed command frames the emulator has
// decoded since it started serving.
func (e *Emulator) CommandCount() uint64 {
	return e.commandCount.Load()
}

// AddTrack appends a track to src's file table and returns its 1-based
// index. Names longer than a reply frame can carry (16 bytes) are
// truncated.
func (e *Emulator) AddTrack(src jq6500.Source, name string, length uint16) uint16 {
	if len(name) > maxNameBytes {
		name = name[:maxNameBytes]
	}

	e.mu.Lock()
	e.counts[src]++
	index := e.counts[src]
	e.mu.Unlock()

	e.tracks.Store(trackKey{src: src, index: index}, Track{Name: name, Length: length})

	return index
}

// SetVersion sets the firmware version reported by version queries.
func (e *Emulator) SetVersion(v uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dev.Version = v
}

// SetStatus forces the playback status, standing in for the module acting
// on its own (a track running out, a button press on the module).
func (e *Emulator) SetStatus(st jq6500.PlayStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dev.Status = st
}

// SetTrack selects the current track index (1-based).
func (e *Emulator) SetTrack(index uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dev.Track = index
}

// SetPosition sets the playback position reported for the current track.
func (e *Emulator) SetPosition(seconds uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dev.Position = seconds
}

// SetFolderCount sets the folder count reported for the SD card.
func (e *Emulator) SetFolderCount(n uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.folders = n
}

// --- Fault injection ---

// DropReplies makes the emulator swallow the next n replies. Commands are
// still executed against the device model, matching a module whose answer
// was lost on the wire.
func (e *Emulator) DropReplies(n int) {
	e.faults.setDrop(n)
}

// CorruptChecksums flips the checksum byte on the next n replies.
func (e *Emulator) CorruptChecksums(n int) {
	e.faults.setCorrupt(n)
}

// ForceReplyOpcode answers the next n commands with op instead of the
// opcode echo, reproducing a desynchronized module.
func (e *Emulator) ForceReplyOpcode(op byte, n int) {
	e.faults.setForced(op, n)
}

// InjectGarbage writes p immediately ahead of the next reply frame,
// reproducing line noise before a valid response.
func (e *Emulator) InjectGarbage(p []byte) {
	e.faults.setGarbage(p)
}

// SetReplyDelay stalls every reply by d. Zero restores immediate replies.
func (e *Emulator) SetReplyDelay(d time.Duration) {
	e.faults.setDelay(d)
}

// EmitAsync writes an unsolicited frame to the driver side, outside any
// command/response exchange. Use it to reproduce a module that talks out of
// turn; the driver flushes such frames before its next transaction.
//
// On a synchronous port such as net.Pipe the call blocks until the peer
// consumes the bytes.
func (e *Emulator) EmitAsync(op byte, payload ...byte) error {
	if e.closed.Load() {
		return ErrClosed
	}

	port := e.attachedPort()
	if port == nil {
		return errors.New("jq6500test: emulator is not serving")
	}

	frame := jq6500.Command{Op: op, Params: payload}.Pack()

	e.wmu.Lock()
	defer e.wmu.Unlock()

	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("jq6500test: emit async: %w", err)
	}

	return nil
}

// --- Serve loop ---

// serveTask performs one read/dispatch cycle. It returns false once the
// port fails, which stops the managed goroutine.
func (e *Emulator) serveTask() bool {
	_ = e.port.SetReadDeadline(time.Now().Add(serveReadInterval))

	n, err := e.port.Read(e.readBuf)
	if n > 0 {
		e.dec.Feed(e.readBuf[:n])
		e.dispatchFrames()
	}

	if err != nil && !isTimeoutErr(err) {
		e.logger.Debug("emulator read stopped", "error", err)

		return false
	}

	return true
}

// dispatchFrames drains every complete frame out of the decoder. Corrupt
// input is skipped the way real hardware skips line noise on its RX pin.
func (e *Emulator) dispatchFrames() {
	for {
		frame, err := e.dec.Next()
		if err != nil {
			e.logger.Debug("undecodable bytes ignored", "error", err)

			continue
		}

		if frame == nil {
			return
		}

		e.commandCount.Add(1)
		e.handleCommand(frame)
	}
}

func (e *Emulator) handleCommand(f *jq6500.ResponseFrame) {
	e.logger.Debug("command received", "cmd", jq6500.CommandName(f.Cmd))

	payload, ok := e.execute(f.Cmd, f.Payload)
	if !ok {
		// The module stays silent on opcodes it does not know.
		e.logger.Debug("unknown opcode ignored", "cmd", jq6500.CommandName(f.Cmd))

		return
	}

	e.reply(f.Cmd, payload)
}

// execute applies a decoded command to the device model and returns the
// reply payload: nil for control echoes, two big-endian bytes or ASCII text
// for queries. ok is false for opcodes outside the command table.
func (e *Emulator) execute(op byte, params []byte) (payload []byte, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch op {
	// Control commands answer with a bare opcode echo.
	case jq6500.CmdNext:
		e.stepTrack(1)
	case jq6500.CmdPrev:
		e.stepTrack(-1)
	case jq6500.CmdPlayIndex:
		if len(params) == 2 {
			e.startPlaying(binary.BigEndian.Uint16(params))
		}
	case jq6500.CmdVolumeUp:
		if e.dev.Volume < jq6500.MaxVolume {
			e.dev.Volume++
		}
	case jq6500.CmdVolumeDown:
		if e.dev.Volume > 0 {
			e.dev.Volume--
		}
	case jq6500.CmdSetVolume:
		if len(params) == 1 {
			e.dev.Volume = params[0]
		}
	case jq6500.CmdSetEqualizer:
		if len(params) == 1 {
			e.dev.Equalizer = jq6500.EqualizerMode(params[0])
		}
	case jq6500.CmdSetSource:
		if len(params) == 1 {
			e.dev.Source = jq6500.Source(params[0])
			e.dev.Track = 1
			e.dev.Position = 0
		}
	case jq6500.CmdSleep:
		e.dev.Status = jq6500.StatusStopped
	case jq6500.CmdReset:
		version := e.dev.Version
		e.dev = powerOnState()
		e.dev.Version = version
	case jq6500.CmdPlay:
		e.dev.Status = jq6500.StatusPlaying
	case jq6500.CmdPause:
		e.dev.Status = jq6500.StatusPaused
	case jq6500.CmdChangeFolder:
		e.startPlaying(e.dev.Track) // folder layout is not modeled
	case jq6500.CmdSetLoopMode:
		if len(params) == 1 {
			e.dev.Loop = jq6500.LoopMode(params[0])
		}
	case jq6500.CmdPlayFolderFile:
		e.startPlaying(e.dev.Track) // folder layout is not modeled

	// Query commands answer with a value payload.
	case jq6500.CmdQueryStatus:
		return u16(uint16(e.dev.Status)), true
	case jq6500.CmdQueryVolume:
		return u16(uint16(e.dev.Volume)), true
	case jq6500.CmdQueryEqualizer:
		return u16(uint16(e.dev.Equalizer)), true
	case jq6500.CmdQueryLoopMode:
		return u16(uint16(e.dev.Loop)), true
	case jq6500.CmdQueryVersion:
		return u16(e.dev.Version), true
	case jq6500.CmdCountSDTracks:
		return u16(e.counts[jq6500.SourceSDCard]), true
	case jq6500.CmdCountFlashTracks:
		return u16(e.counts[jq6500.SourceBuiltin]), true
	case jq6500.CmdIndexSDTrack:
		return u16(e.dev.Track), true
	case jq6500.CmdIndexFlashTrack:
		// The hardware reports the flash index zero-based; the driver
		// corrects it back.
		index := e.dev.Track
		if index > 0 {
			index--
		}

		return u16(index), true
	case jq6500.CmdQueryPosition:
		return u16(e.dev.Position), true
	case jq6500.CmdQueryLength:
		track, _ := e.tracks.Load(trackKey{src: e.dev.Source, index: e.dev.Track})

		return u16(track.Length), true
	case jq6500.CmdQueryTrackName:
		track, _ := e.tracks.Load(trackKey{src: e.dev.Source, index: e.dev.Track})

		return []byte(track.Name), true
	case jq6500.CmdCountSDFolders:
		return u16(e.folders), true

	default:
		return nil, false
	}

	return nil, true
}

// startPlaying switches to the given track index and starts playback from
// the top. Callers hold e.mu.
func (e *Emulator) startPlaying(index uint16) {
	e.dev.Track = index
	e.dev.Status = jq6500.StatusPlaying
	e.dev.Position = 0
}

// stepTrack moves the current track by delta, wrapping around the active
// source's file table, and starts playback. Callers hold e.mu.
func (e *Emulator) stepTrack(delta int) {
	next := int(e.dev.Track)

	if count := int(e.counts[e.dev.Source]); count > 0 {
		next += delta
		if next < 1 {
			next = count
		} else if next > count {
			next = 1
		}
	}

	e.startPlaying(uint16(next))
}

// reply runs payload through the pending fault injections and writes the
// resulting frame.
func (e *Emulator) reply(op byte, payload []byte) {
	if e.faults.takeDrop() {
		e.logger.Debug("reply dropped", "cmd", jq6500.CommandName(op))

		return
	}

	if d := e.faults.replyDelay(); d > 0 && !e.sleep(d) {
		return
	}

	if forced, injected := e.faults.takeForced(); injected {
		e.logger.Debug("reply opcode forced", "cmd", jq6500.CommandName(op), "forced", jq6500.CommandName(forced))
		op = forced
	}

	frame := jq6500.Command{Op: op, Params: payload}.Pack()

	if e.faults.takeCorrupt() {
		frame[len(frame)-2] ^= 0xFF
		e.logger.Debug("reply checksum corrupted", "cmd", jq6500.CommandName(op))
	}

	if garbage := e.faults.takeGarbage(); len(garbage) > 0 {
		frame = append(garbage, frame...)
	}

	e.wmu.Lock()
	defer e.wmu.Unlock()

	if _, err := e.port.Write(frame); err != nil {
		e.logger.Debug("emulator write failed", "error", err)
	}
}

// sleep blocks for d or until the emulator closes. It reports whether the
// full delay elapsed.
func (e *Emulator) sleep(d time.Duration) bool {
	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-timer.C:
		return true
	case <-e.done:
		return false
	}
}

// u16 encodes v as the two big-endian payload bytes of a query reply.
func u16(v uint16) []byte {
	p := make([]byte, 2)
	binary.BigEndian.PutUint16(p, v)

	return p
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}

// faultState holds the pending fault injections. Counted faults are
// consumed one reply at a time; the delay applies until cleared.
type faultState struct {
	mu       sync.Mutex
	drop     int
	corrupt  int
	forcedOp byte
	forced   int
	garbage  []byte
	delay    time.Duration
}

func (f *faultState) setDrop(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.drop = n
}

func (f *faultState) takeDrop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.drop == 0 {
		return false
	}
	f.drop--

	return true
}

func (f *faultState) setCorrupt(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.corrupt = n
}

func (f *faultState) takeCorrupt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.corrupt == 0 {
		return false
	}
	f.corrupt--

	return true
}

func (f *faultState) setForced(op byte, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.forcedOp = op
	f.forced = n
}

func (f *faultState) takeForced() (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forced == 0 {
		return 0, false
	}
	f.forced--

	return f.forcedOp, true
}

func (f *faultState) setGarbage(p []byte) {
	cloned := util.CloneSlice(p, 0)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.garbage = cloned
}

func (f *faultState) takeGarbage() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	garbage := f.garbage
	f.garbage = nil

	return garbage
}

func (f *faultState) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delay = d
}

func (f *faultState) replyDelay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.delay
}
