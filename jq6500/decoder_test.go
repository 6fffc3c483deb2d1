package jq6500

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// next asserts that the decoder yields a frame without error.
func next(t *testing.T, d *Decoder) *ResponseFrame {
	t.Helper()

	frame, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)

	return frame
}

// nextIncomplete asserts that the decoder needs more bytes.
func nextIncomplete(t *testing.T, d *Decoder) {
	t.Helper()

	frame, err := d.Next()
	require.NoError(t, err)
	require.Nil(t, frame)
}

// --- Basic decoding ---

func TestDecoder_EmptyBuffer(t *testing.T) {
	var d Decoder
	nextIncomplete(t, &d)
}

func TestDecoder_WholeFrame(t *testing.T) {
	var d Decoder
	d.Feed(Command{Op: CmdPlay}.Pack())

	frame := next(t, &d)
	assert.Equal(t, CmdPlay, frame.Cmd)
	assert.Empty(t, frame.Payload)
	assert.Zero(t, d.Buffered(), "a decoded frame must be consumed")
}

func TestDecoder_ByteAtATime(t *testing.T) {
	wire := Command{Op: CmdSetVolume, Params: []byte{30}}.Pack()

	var d Decoder
	for _, b := range wire[:len(wire)-1] {
		d.Feed([]byte{b})
		nextIncomplete(t, &d)
	}

	d.Feed(wire[len(wire)-1:])

	frame := next(t, &d)
	assert.Equal(t, CmdSetVolume, frame.Cmd)
	assert.Equal(t, []byte{30}, frame.Payload)
}

func TestDecoder_SplitAcrossFeeds(t *testing.T) {
	wire := Command{Op: CmdQueryLength, Params: []byte{0x01, 0x2C}}.Pack()

	var d Decoder
	d.Feed(wire[:3])
	nextIncomplete(t, &d)

	d.Feed(wire[3:])

	frame := next(t, &d)
	assert.Equal(t, CmdQueryLength, frame.Cmd)
	assert.Equal(t, []byte{0x01, 0x2C}, frame.Payload)
}

func TestDecoder_MultipleFrames(t *testing.T) {
	var d Decoder
	d.Feed(Command{Op: CmdPlay}.Pack())
	d.Feed(Command{Op: CmdQueryVolume, Params: []byte{0x00, 0x14}}.Pack())

	first := next(t, &d)
	assert.Equal(t, CmdPlay, first.Cmd)

	second := next(t, &d)
	assert.Equal(t, CmdQueryVolume, second.Cmd)
	assert.Equal(t, []byte{0x00, 0x14}, second.Payload)

	nextIncomplete(t, &d)
}

// --- Noise handling ---

func TestDecoder_LeadingGarbageDiscarded(t *testing.T) {
	var d Decoder
	d.Feed([]byte{0x00, 0xFF, 0x41})
	d.Feed(Command{Op: CmdPause}.Pack())

	frame := next(t, &d)
	assert.Equal(t, CmdPause, frame.Cmd)
}

func TestDecoder_GarbageOnlyCleared(t *testing.T) {
	var d Decoder
	d.Feed([]byte{0x01, 0x02, 0x03, 0xFF})

	nextIncomplete(t, &d)
	assert.Zero(t, d.Buffered(), "noise without a start marker is dropped")
}

func TestDecoder_StartMarkerInGarbageTail(t *testing.T) {
	// Noise keeps a trailing start marker; the decoder must hold it and wait
	// for the rest of the frame.
	var d Decoder
	d.Feed([]byte{0xAA, 0xBB, StartByte})

	nextIncomplete(t, &d)
	assert.Equal(t, 1, d.Buffered())

	d.Feed(Command{Op: CmdNext}.Pack()[1:])

	frame := next(t, &d)
	assert.Equal(t, CmdNext, frame.Cmd)
}

// --- Error handling and resync ---

func TestDecoder_FalseStartMarker_Resync(t *testing.T) {
	// A lone start marker followed by an impossible length byte is a false
	// start: one error, then the real frame behind it decodes.
	var d Decoder
	d.Feed([]byte{StartByte, 0xFF})
	d.Feed(Command{Op: CmdPlay}.Pack())

	frame, err := d.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Nil(t, frame)

	frame = next(t, &d)
	assert.Equal(t, CmdPlay, frame.Cmd)
}

func TestDecoder_BadEndMarker_Resync(t *testing.T) {
	bad := Command{Op: CmdPlay}.Pack()
	bad[len(bad)-1] = 0x00

	var d Decoder
	d.Feed(bad)
	d.Feed(Command{Op: CmdPause}.Pack())

	frame, err := d.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Nil(t, frame)

	// Scanning resumes past the false start; the good frame still decodes.
	frame = next(t, &d)
	assert.Equal(t, CmdPause, frame.Cmd)
}

func TestDecoder_ChecksumMismatch_ConsumesFrame(t *testing.T) {
	bad := Command{Op: CmdSetVolume, Params: []byte{30}}.Pack()
	bad[len(bad)-2] ^= 0x01

	var d Decoder
	d.Feed(bad)
	d.Feed(Command{Op: CmdSetVolume, Params: []byte{30}}.Pack())

	frame, err := d.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Nil(t, frame)

	// The corrupt region is consumed whole; the next frame decodes cleanly.
	frame = next(t, &d)
	assert.Equal(t, CmdSetVolume, frame.Cmd)
	assert.Equal(t, []byte{30}, frame.Payload)
	assert.Zero(t, d.Buffered())
}

func TestDecoder_ChecksumEqualsStartMarker(t *testing.T) {
	// 300 second track length: the checksum byte is 0x7E. The decoder must
	// decode positionally, not treat the in-frame 0x7E as a new start.
	wire := []byte{0x7E, 0x04, 0x51, 0x01, 0x2C, 0x7E, 0xEF}

	var d Decoder
	d.Feed(wire)

	frame := next(t, &d)
	assert.Equal(t, CmdQueryLength, frame.Cmd)

	length, err := frame.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(300), length)
}

func TestDecoder_GarbageBetweenFrames(t *testing.T) {
	var d Decoder
	d.Feed(Command{Op: CmdPlay}.Pack())
	d.Feed([]byte{0x13, 0x37})
	d.Feed(Command{Op: CmdPause}.Pack())

	assert.Equal(t, CmdPlay, next(t, &d).Cmd)
	assert.Equal(t, CmdPause, next(t, &d).Cmd)
}

// --- Round-trip law over the stream decoder ---

func TestDecoder_RoundTrip_AllOpcodes(t *testing.T) {
	tests := []struct {
		name   string
		op     byte
		params []byte
	}{
		{"play", CmdPlay, nil},
		{"playIndex", CmdPlayIndex, []byte{0x01, 0x2A}},
		{"setVolume", CmdSetVolume, []byte{30}},
		{"setEqualizer", CmdSetEqualizer, []byte{3}},
		{"setSource", CmdSetSource, []byte{4}},
		{"changeFolder", CmdChangeFolder, []byte{0}},
		{"setLoopMode", CmdSetLoopMode, []byte{4}},
		{"playFolderFile", CmdPlayFolderFile, []byte{99, 255}},
		{"queryStatus", CmdQueryStatus, nil},
		{"queryVersion", CmdQueryVersion, nil},
		{"queryTrackName", CmdQueryTrackName, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := mustNewCommand(t, tt.op, tt.params...)

			var d Decoder
			d.Feed(cmd.Pack())

			frame := next(t, &d)
			assert.Equal(t, tt.op, frame.Cmd)
			if len(tt.params) == 0 {
				assert.Empty(t, frame.Payload)
			} else {
				assert.Equal(t, tt.params, frame.Payload)
			}
		})
	}
}

// --- Buffer management ---

func TestDecoder_Reset(t *testing.T) {
	var d Decoder
	d.Feed([]byte{StartByte, 0x04, 0x51})
	require.Equal(t, 3, d.Buffered())

	d.Reset()
	assert.Zero(t, d.Buffered())
	nextIncomplete(t, &d)
}

func TestDecoder_Buffered(t *testing.T) {
	var d Decoder
	assert.Zero(t, d.Buffered())

	d.Feed([]byte{0x01, 0x02})
	assert.Equal(t, 2, d.Buffered())
}
