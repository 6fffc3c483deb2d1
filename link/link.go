// Package link abstracts the byte link between go-jq6500 and a playback module.
//
// The driver core only needs a deadline-capable byte stream. Any net.Conn
// satisfies [Port] directly, which covers the common deployment of a serial
// device exposed through a serial-over-TCP bridge (ser2net, ESPLink and
// friends) as well as net.Pipe endpoints in tests. Raw handles that lack
// deadline support, such as a character-device file or a vendor SDK stream,
// are adapted with [FromReadWriter].
package link

import (
	"errors"
	"io"
	"net"
	"time"
)

// Port is the byte-link contract the driver reads and writes through.
//
// Read must honor the deadline set by SetReadDeadline and report expiry with
// an error matching os.ErrDeadlineExceeded, mirroring net.Conn semantics.
type Port interface {
	io.ReadWriteCloser

	// SetReadDeadline sets the deadline for future Read calls. A zero value
	// means Read will not time out.
	SetReadDeadline(t time.Time) error
}

// ErrPortClosed is returned by Port implementations in this package for
// operations on a closed port.
var ErrPortClosed = errors.New("link: port closed")

var _ Port = (*net.TCPConn)(nil)
