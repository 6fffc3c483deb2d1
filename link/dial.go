package link

import (
	"context"
	"net"
	"time"
)

// Dial connects to a serial-over-TCP bridge at address ("host:port") and
// returns the connection as a Port.
//
// Command frames are a handful of bytes, so Nagle buffering only adds
// latency; NoDelay is enabled on the connection.
func Dial(address string, timeout time.Duration) (Port, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return DialContext(ctx, address)
}

// DialContext is like Dial but uses the provided context for the dial.
func DialContext(ctx context.Context, address string) (Port, error) {
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	return conn, nil
}
