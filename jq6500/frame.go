package jq6500

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/audiokit/go-jq6500/internal/util"
)

// Frame delimiters.
const (
	// StartByte opens every frame on the wire.
	StartByte byte = 0x7E

	// EndByte terminates every frame on the wire.
	EndByte byte = 0xEF
)

// Frame layout constants. The length byte counts itself, the opcode, and the
// parameter bytes; the checksum and the two delimiters are excluded.
const (
	// MinLenByte is the smallest valid length byte (opcode, no parameters).
	MinLenByte = 2

	// MaxLenByte is the largest valid length byte (opcode + 16 payload bytes,
	// enough for 8.3 file names).
	MaxLenByte = 18

	// frameOverhead counts the frame bytes outside the length byte's span:
	// start byte, checksum, end byte.
	frameOverhead = 3

	// MinFrameSize is the size of a complete frame with no parameters.
	MinFrameSize = MinLenByte + frameOverhead

	// MaxFrameSize is the size of the largest valid frame on the wire.
	MaxFrameSize = MaxLenByte + frameOverhead
)

// checksum returns the two's complement of the 8-bit sum of p. On the wire p
// spans the length byte through the last parameter, so a valid frame satisfies
// (LEN + CMD + params + CHECKSUM) & 0xFF == 0.
func checksum(p []byte) byte {
	var sum byte
	for _, b := range p {
		sum += b
	}

	return ^sum + 1
}

// Length returns the frame's length byte, which counts itself, the opcode,
// and the parameter bytes.
func (c Command) Length() byte {
	return byte(2 + len(c.Params))
}

// Checksum computes the checksum byte Pack writes into the frame: the two's
// complement of the 8-bit sum over the length byte, opcode, and parameters.
func (c Command) Checksum() byte {
	sum := c.Length() + c.Op
	for _, p := range c.Params {
		sum += p
	}

	return ^sum + 1
}

// Pack encodes the command into its wire frame:
//
//	[0x7E][LEN][CMD][PARAM...][CHECKSUM][0xEF]
//
// Every command maps to exactly one encoding.
func (c Command) Pack() []byte {
	lenByte := c.Length()

	frame := make([]byte, 0, int(lenByte)+frameOverhead)
	frame = append(frame, StartByte, lenByte, c.Op)
	frame = append(frame, c.Params...)
	frame = append(frame, c.Checksum(), EndByte)

	return frame
}

// ResponseFrame is one decoded, checksum-verified frame from the module:
// either the opcode echo acknowledging a control command, or a query reply
// carrying a value payload.
type ResponseFrame struct {
	Cmd     byte
	Payload []byte
}

// Uint16 interprets the payload as a big-endian 16-bit value.
func (f *ResponseFrame) Uint16() (uint16, error) {
	if len(f.Payload) != 2 {
		return 0, fmt.Errorf("%w: %s reply carries %d payload bytes, want 2",
			ErrUnexpectedResponse, CommandName(f.Cmd), len(f.Payload))
	}

	return binary.BigEndian.Uint16(f.Payload), nil
}

// Text interprets the payload as ASCII text, trimming NUL and space padding.
func (f *ResponseFrame) Text() string {
	return strings.TrimRight(string(f.Payload), "\x00 ")
}

// ParseResponse parses data as exactly one complete frame.
//
// It returns ErrMalformedFrame when the delimiters or the length byte don't
// align with the buffer, and ErrChecksumMismatch when the frame is delimited
// correctly but fails verification. Use a Decoder to parse frames out of a
// running byte stream.
func ParseResponse(data []byte) (*ResponseFrame, error) {
	if len(data) < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the minimum frame size %d",
			ErrMalformedFrame, len(data), MinFrameSize)
	}

	if data[0] != StartByte {
		return nil, fmt.Errorf("%w: frame starts with 0x%02X, want 0x%02X",
			ErrMalformedFrame, data[0], StartByte)
	}

	lenByte := data[1]
	if lenByte < MinLenByte || lenByte > MaxLenByte {
		return nil, fmt.Errorf("%w: length byte %d out of range %d-%d",
			ErrMalformedFrame, lenByte, MinLenByte, MaxLenByte)
	}

	total := int(lenByte) + frameOverhead
	if len(data) != total {
		return nil, fmt.Errorf("%w: got %d bytes, length byte %d implies %d",
			ErrMalformedFrame, len(data), lenByte, total)
	}

	if end := data[total-1]; end != EndByte {
		return nil, fmt.Errorf("%w: frame ends with 0x%02X, want 0x%02X",
			ErrMalformedFrame, end, EndByte)
	}

	wire := data[total-2]
	if computed := checksum(data[1 : total-2]); wire != computed {
		return nil, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X",
			ErrChecksumMismatch, wire, computed)
	}

	return &ResponseFrame{
		Cmd:     data[2],
		Payload: util.CloneSlice(data[3:total-2], 0),
	}, nil
}
