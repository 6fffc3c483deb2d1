package jq6500

import (
	"sync/atomic"
)

// DriverMetrics contains atomic metrics for a driver.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type DriverMetrics struct {
	// FrameSendCount indicates the number of command frames written.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of response frames decoded.
	FrameRecvCount atomic.Uint64
	// RetryCount indicates the total number of transaction retries.
	RetryCount atomic.Uint64

	// TimeoutCount indicates the number of transactions that timed out.
	TimeoutCount atomic.Uint64
	// ChecksumErrCount indicates the number of checksum failures on received frames.
	ChecksumErrCount atomic.Uint64
	// MalformedCount indicates the number of malformed regions dropped by the decoder.
	MalformedCount atomic.Uint64
	// UnexpectedCount indicates the number of responses whose opcode did not match the command.
	UnexpectedCount atomic.Uint64
	// BusyCount indicates the number of sends rejected because a transaction was in flight.
	BusyCount atomic.Uint64
	// LinkErrCount indicates the number of link read/write failures.
	LinkErrCount atomic.Uint64
}

func (m *DriverMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *DriverMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *DriverMetrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *DriverMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *DriverMetrics) incChecksumErrCount() {
	m.ChecksumErrCount.Add(1)
}

func (m *DriverMetrics) incMalformedCount() {
	m.MalformedCount.Add(1)
}

func (m *DriverMetrics) incUnexpectedCount() {
	m.UnexpectedCount.Add(1)
}

func (m *DriverMetrics) incBusyCount() {
	m.BusyCount.Add(1)
}

func (m *DriverMetrics) incLinkErrCount() {
	m.LinkErrCount.Add(1)
}
