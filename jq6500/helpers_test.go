package jq6500

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/audiokit/go-jq6500/logger"
)

// newTestConfig creates a driverConfig with short timeouts suitable for tests.
func newTestConfig(t *testing.T, opts ...DriverOption) *driverConfig {
	t.Helper()

	defaults := []DriverOption{
		WithResponseTimeout(MinResponseTimeout),   // 20ms
		WithInterByteTimeout(MinInterByteTimeout), // 10ms
	}

	cfg, err := newDriverConfig(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConfig: %v", err)
	}

	return cfg
}

// newTestTransport creates a frameTransport backed by the local end of
// net.Pipe(). Returns the transport and the remote end for test simulation.
func newTestTransport(t *testing.T, cfg *driverConfig) (*frameTransport, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	ft := newFrameTransport(local, cfg, logger.GetLogger(), &DriverMetrics{})

	return ft, remote
}

// newTestDriver creates a Driver backed by the local end of net.Pipe().
// Returns the driver and the remote end, which plays the module side.
func newTestDriver(t *testing.T, opts ...DriverOption) (*Driver, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = remote.Close()
	})

	defaults := []DriverOption{
		WithResponseTimeout(MinResponseTimeout),
		WithInterByteTimeout(MinInterByteTimeout),
	}

	d, err := NewDriver(context.Background(), local, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestDriver: %v", err)
	}

	t.Cleanup(func() {
		_ = d.Close()
	})

	return d, remote
}

// mustNewCommand builds a Command, failing the test on a validation error.
func mustNewCommand(t *testing.T, op byte, params ...byte) Command {
	t.Helper()

	cmd, err := NewCommand(op, params...)
	if err != nil {
		t.Fatalf("mustNewCommand: %v", err)
	}

	return cmd
}

// ackFrame builds the module's acknowledgement for op: an opcode echo with
// no payload.
func ackFrame(op byte) []byte {
	return Command{Op: op}.Pack()
}

// replyFrame builds the module's numeric reply for a query opcode.
func replyFrame(op byte, v uint16) []byte {
	return Command{Op: op, Params: []byte{byte(v >> 8), byte(v)}}.Pack()
}

// textFrame builds the module's ASCII reply for a query opcode.
func textFrame(op byte, s string) []byte {
	return Command{Op: op, Params: []byte(s)}.Pack()
}

// readFrame reads one complete frame from r, start byte through end byte.
func readFrame(t *testing.T, r io.Reader) []byte {
	t.Helper()

	head := readExactly(t, r, 2) // start marker + length byte

	// The length byte counts itself plus opcode and params, so the frame has
	// LEN+1 bytes left: opcode, params, checksum, end marker.
	rest := readExactly(t, r, int(head[1])+1)

	return append(head, rest...)
}

// serveAck reads one command frame from remote and echoes its opcode as an
// empty acknowledgement.
func serveAck(t *testing.T, remote net.Conn) {
	t.Helper()

	frame := readFrame(t, remote)
	mustWrite(t, remote, ackFrame(frame[2]))
}

// serveReply reads one command frame from remote and answers it with the
// given numeric value.
func serveReply(t *testing.T, remote net.Conn, v uint16) {
	t.Helper()

	frame := readFrame(t, remote)
	mustWrite(t, remote, replyFrame(frame[2], v))
}

// readExactly reads exactly n bytes from r, failing the test on error.
func readExactly(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("readExactly: %v", err)
	}

	return buf
}

// mustWrite writes data to w, failing the test on error.
func mustWrite(t *testing.T, w io.Writer, data []byte) {
	t.Helper()

	if _, err := w.Write(data); err != nil {
		t.Fatalf("mustWrite: %v", err)
	}
}

// newPipeConn creates a net.Pipe pair and registers cleanup.
func newPipeConn(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	return local, remote
}
