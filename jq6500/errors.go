package jq6500

import "errors"

// Codec errors.
var (
	// ErrInvalidParameter indicates a command was built with parameters that
	// exceed the opcode's expected count or range. Caller error, never retried.
	ErrInvalidParameter = errors.New("jq6500: invalid parameter")

	// ErrMalformedFrame indicates frame delimiters or the length byte don't
	// align. Link corruption, surfaced, never retried.
	ErrMalformedFrame = errors.New("jq6500: malformed frame")

	// ErrChecksumMismatch indicates a frame arrived with markers intact but a
	// wrong checksum. Link corruption, surfaced, never retried.
	ErrChecksumMismatch = errors.New("jq6500: checksum mismatch")
)

// Transaction errors.
var (
	// ErrTimeout indicates no decodable response arrived within the response
	// window. Retried up to the configured limit, then surfaced.
	ErrTimeout = errors.New("jq6500: response timeout")

	// ErrLink indicates the underlying byte link failed. Fatal to the current
	// transaction, surfaced immediately.
	ErrLink = errors.New("jq6500: link error")

	// ErrUnexpectedResponse indicates the module answered with an opcode or
	// payload that doesn't match the request. Protocol desync, surfaced.
	ErrUnexpectedResponse = errors.New("jq6500: unexpected response")

	// ErrBusy indicates a send was issued while a prior transaction was still
	// awaiting its response. The transaction slot admits one command at a time.
	ErrBusy = errors.New("jq6500: transaction in flight")

	// ErrClosed indicates the driver has been closed.
	ErrClosed = errors.New("jq6500: driver closed")
)
