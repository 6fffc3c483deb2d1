package jq6500

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/audiokit/go-jq6500/link"
	"github.com/audiokit/go-jq6500/logger"
)

// frameTransport handles one command/response exchange on the wire.
//
// It writes a packed command frame, then feeds the stream decoder from the
// port until a whole response frame is available or a timeout fires.
//
// This type is NOT goroutine-safe. The Driver's transaction slot ensures
// only one exchange is active at a time, consistent with the half-duplex
// nature of the serial link.
type frameTransport struct {
	port    link.Port
	cfg     *driverConfig
	logger  logger.Logger
	metrics *DriverMetrics

	decoder Decoder
}

func newFrameTransport(port link.Port, cfg *driverConfig, l logger.Logger, metrics *DriverMetrics) *frameTransport {
	return &frameTransport{
		port:    port,
		cfg:     cfg,
		logger:  l,
		metrics: metrics,
	}
}

// --- Send ---

// sendResult classifies the outcome of a single exchange attempt so the
// retry loop can decide whether to retry or abort.
type sendResult int

const (
	sendOK    sendResult = iota // Frame sent and response decoded.
	sendRetry                   // Retryable failure (response timeout).
	sendAbort                   // Non-retryable failure (framing, link, cancellation).
)

// transact performs one command/response transaction, retrying timed-out
// attempts up to cfg.retryLimit times with the line drained to silence
// between attempts.
//
// Only timeouts are retried. A checksum or framing error means the module
// did answer; resending would produce a duplicate action on the device, so
// those surface immediately.
func (t *frameTransport) transact(ctx context.Context, data []byte) (*ResponseFrame, error) {
	var lastErr error

	retry := 0

	for retry <= t.cfg.retryLimit {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrClosed, ctx.Err())
		default:
		}

		result, frame, err := t.attempt(data)

		switch result {
		case sendOK:
			return frame, nil

		case sendRetry:
			lastErr = err

			retry++
			if retry > t.cfg.retryLimit {
				return nil, lastErr
			}

			t.metrics.incRetryCount()
			t.logger.Debug("transaction retry",
				"retry", retry,
				"maxRetry", t.cfg.retryLimit,
				"error", err,
			)
			t.drainUntilSilence()

			continue

		case sendAbort:
			return nil, err
		}
	}

	return nil, lastErr
}

// attempt performs a single write-then-read exchange.
func (t *frameTransport) attempt(data []byte) (sendResult, *ResponseFrame, error) {
	t.flushPending()

	if err := t.writeFrame(data); err != nil {
		return sendAbort, nil, err
	}

	frame, err := t.readResponse()
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			t.metrics.incTimeoutCount()

			return sendRetry, nil, err
		}

		return sendAbort, nil, err
	}

	return sendOK, frame, nil
}

// writeFrame writes all bytes of a packed frame to the port.
func (t *frameTransport) writeFrame(data []byte) error {
	for written := 0; written < len(data); {
		n, err := t.port.Write(data[written:])
		written += n

		if err != nil {
			t.metrics.incLinkErrCount()

			return fmt.Errorf("%w: write frame: %w", ErrLink, err)
		}
	}

	t.metrics.incFrameSendCount()

	return nil
}

// readResponse reads from the port until the decoder yields a whole response
// frame.
//
// The response timeout bounds the wait for the first byte of the frame; once
// reception has started, the inter-byte timeout bounds each gap between
// chunks instead. Bytes preceding the start marker are discarded by the
// decoder and do not restart either timer phase.
func (t *frameTransport) readResponse() (*ResponseFrame, error) {
	deadline := time.Now().Add(t.cfg.responseTimeout)
	buf := make([]byte, 256)

	for {
		frame, err := t.decoder.Next()
		if err != nil {
			switch {
			case errors.Is(err, ErrChecksumMismatch):
				t.metrics.incChecksumErrCount()
			case errors.Is(err, ErrMalformedFrame):
				t.metrics.incMalformedCount()
			}

			return nil, err
		}

		if frame != nil {
			t.metrics.incFrameRecvCount()

			return frame, nil
		}

		var wait time.Duration
		if t.decoder.Buffered() > 0 {
			// Mid-frame: bound the gap to the next chunk.
			wait = t.cfg.interByteTimeout
		} else {
			wait = time.Until(deadline)
			if wait <= 0 {
				return nil, fmt.Errorf("%w: no response within %v", ErrTimeout, t.cfg.responseTimeout)
			}
		}

		if err := t.port.SetReadDeadline(time.Now().Add(wait)); err != nil {
			t.metrics.incLinkErrCount()

			return nil, fmt.Errorf("%w: set read deadline: %w", ErrLink, err)
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.decoder.Feed(buf[:n])

			continue
		}

		if err != nil {
			if isTimeoutErr(err) {
				if t.decoder.Buffered() > 0 {
					return nil, fmt.Errorf("%w: response stalled after %d bytes", ErrTimeout, t.decoder.Buffered())
				}

				return nil, fmt.Errorf("%w: no response within %v", ErrTimeout, t.cfg.responseTimeout)
			}

			t.metrics.incLinkErrCount()

			return nil, fmt.Errorf("%w: read response: %w", ErrLink, err)
		}
	}
}

// --- Line hygiene ---

// flushPending discards bytes already buffered on the port and resets the
// decoder. A reply to an earlier timed-out command may arrive after its
// transaction gave up; it must not be mistaken for the next response.
func (t *frameTransport) flushPending() {
	buf := make([]byte, 256)

	for {
		_ = t.port.SetReadDeadline(time.Now())

		n, err := t.port.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}

	t.decoder.Reset()
}

// drainUntilSilence reads and discards bytes until the line is quiet for the
// inter-byte timeout. After a timed-out attempt the module may still be
// transmitting; resending while it talks would interleave two exchanges on
// the half-duplex line.
func (t *frameTransport) drainUntilSilence() {
	buf := make([]byte, 256)

	for {
		_ = t.port.SetReadDeadline(time.Now().Add(t.cfg.interByteTimeout))

		if _, err := t.port.Read(buf); err != nil {
			return // timeout expired with no data, line is silent
		}
	}
}

// isTimeoutErr reports whether err is a read-deadline expiry rather than a
// hard link failure.
func isTimeoutErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return errors.Is(err, os.ErrDeadlineExceeded)
}
