// Package jq6500 drives JQ6500-family serial MP3 modules over a byte link.
//
// The JQ6500 is a small MP3 decoder with on-board flash and an optional SD
// card slot, controlled through a 9600 baud UART. This package speaks its
// command/response protocol over any [link.Port], so the same driver works
// against a local serial handle, a serial-over-TCP bridge, or an in-memory
// emulator in tests.
//
// # Wire Format
//
// Every command and response travels in one frame:
//
//	[0x7E] [LEN] [CMD] [PARAM...] [CHECKSUM] [0xEF]
//
// LEN counts itself, the opcode, and the parameters; the checksum and the
// two marker bytes are excluded. The checksum is the two's complement of
// the 8-bit sum of the bytes LEN through the last parameter, so a correct
// frame sums to zero over LEN..CHECKSUM. Control commands are acknowledged
// with an opcode echo carrying no payload; queries answer with the query
// opcode and a big-endian 16-bit value, or ASCII text for the track name.
//
// # Transactions
//
// The link is half-duplex: the module answers exactly one frame per
// command, and talking over it corrupts both exchanges. [Driver.Send]
// therefore allows at most one transaction in flight; concurrent senders
// fail fast with [ErrBusy] instead of queuing. The response timeout bounds
// the wait for the first byte of a reply, the inter-byte timeout bounds
// gaps inside one, and only timeouts are ever retried.
//
// # Getting Started
//
// Dial a serial-over-TCP bridge (or wrap any io.ReadWriter with
// [link.FromReadWriter]), create a driver, and open it:
//
//	port, err := link.Dial("192.168.1.50:23", 3*time.Second)
//	if err != nil {
//		// handle error
//	}
//
//	player, err := jq6500.NewDriver(ctx, port)
//	if err != nil {
//		// handle error
//	}
//	defer player.Close()
//
//	if err := player.Open(); err != nil {
//		// handle error
//	}
//
//	_ = player.SetVolume(25)
//	_ = player.Play()
package jq6500
