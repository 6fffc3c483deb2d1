package jq6500

import (
	"bytes"
	"fmt"
)

// Decoder incrementally decodes response frames from a byte stream.
//
// Feed appends raw link bytes; Next scans them. Bytes preceding a start
// marker are noise (line glitches, remainders of an aborted frame) and are
// discarded silently. A corrupt region is reported once as a typed error and
// consumed, so a later well-formed frame still decodes.
//
// The zero value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends link bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of undecoded bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Next returns the next complete frame from the buffered bytes.
//
// It returns (nil, nil) when the buffer does not yet hold a complete frame;
// the caller should read more from the link and Feed again. On a framing
// violation it consumes the false start marker and returns ErrMalformedFrame;
// on a checksum failure it consumes the delimited region and returns
// ErrChecksumMismatch. In both cases the following call resumes scanning at
// the next start marker.
func (d *Decoder) Next() (*ResponseFrame, error) {
	// Discard noise before the start marker.
	i := bytes.IndexByte(d.buf, StartByte)
	if i < 0 {
		d.buf = d.buf[:0]
		return nil, nil
	}
	if i > 0 {
		d.buf = d.buf[i:]
	}

	if len(d.buf) < 2 {
		return nil, nil // need the length byte
	}

	lenByte := d.buf[1]
	if lenByte < MinLenByte || lenByte > MaxLenByte {
		// False start marker or corrupted length byte. Drop the marker and
		// rescan from the next byte.
		d.buf = d.buf[1:]

		return nil, fmt.Errorf("%w: length byte %d out of range %d-%d",
			ErrMalformedFrame, lenByte, MinLenByte, MaxLenByte)
	}

	total := int(lenByte) + frameOverhead
	if len(d.buf) < total {
		return nil, nil // partial frame
	}

	if end := d.buf[total-1]; end != EndByte {
		d.buf = d.buf[1:]

		return nil, fmt.Errorf("%w: frame ends with 0x%02X, want 0x%02X",
			ErrMalformedFrame, end, EndByte)
	}

	// The region is delimited on both sides, so consume it whole whether or
	// not the checksum verifies. In-frame bytes may equal the start marker
	// (a checksum of 0x7E is legitimate); positional parsing keeps them from
	// being mistaken for a new frame.
	frame, err := ParseResponse(d.buf[:total])
	d.buf = d.buf[total:]

	return frame, err
}
