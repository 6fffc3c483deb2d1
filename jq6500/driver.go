package jq6500

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/audiokit/go-jq6500/internal/pool"
	"github.com/audiokit/go-jq6500/internal/task"
	"github.com/audiokit/go-jq6500/link"
	"github.com/audiokit/go-jq6500/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// monitorTaskName identifies the status monitor task in the task manager.
const monitorTaskName = "statusMonitor"

// StatusChangeHandler is invoked by the status monitor when the module's
// play status changes. Handlers run on the monitor goroutine and should
// return quickly.
type StatusChangeHandler func(oldStatus, newStatus PlayStatus)

// Driver drives a JQ6500-family MP3 module over a byte link.
//
// It owns the port handle, serializes command/response transactions on the
// half-duplex line, and keeps a local cache of the module's playback
// settings. High-level operations (Play, SetVolume, Status, ...) are thin
// mappings over [Driver.Send].
type Driver struct {
	pctx   context.Context
	cfg    *driverConfig
	logger logger.Logger

	port      link.Port
	transport *frameTransport

	txState atomicTxState
	state   *playerState
	taskMgr *task.Manager

	// lastSendNano is the time the last transaction finished, used to
	// enforce the configured command interval.
	lastSendNano atomic.Int64

	// Status monitor.
	handlers      *xsync.MapOf[int64, StatusChangeHandler]
	nextHandlerID atomic.Int64
	monitorOn     atomic.Bool

	metrics DriverMetrics
}

// NewDriver creates a Driver for the module reachable through port.
//
// The context bounds the driver's lifetime: cancelling it aborts in-flight
// transactions and stops the status monitor. The driver takes ownership of
// port; Close closes it.
func NewDriver(ctx context.Context, port link.Port, opts ...DriverOption) (*Driver, error) {
	if port == nil {
		return nil, errors.New("jq6500: port is nil")
	}

	cfg, err := newDriverConfig(opts...)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		pctx:     ctx,
		cfg:      cfg,
		logger:   cfg.logger,
		port:     port,
		state:    newPlayerState(),
		taskMgr:  task.NewManager(ctx, cfg.logger),
		handlers: xsync.NewMapOf[int64, StatusChangeHandler](),
	}
	d.transport = newFrameTransport(port, cfg, cfg.logger, &d.metrics)

	return d, nil
}

// Open probes the module and applies the configured initial volume.
//
// The probe is a version query: it confirms a live module on the far end of
// the link without the settle delay a reset would cost.
func (d *Driver) Open() error {
	if d.txState.IsClosed() {
		return ErrClosed
	}

	version, err := d.Version()
	if err != nil {
		return fmt.Errorf("jq6500: module probe: %w", err)
	}

	if err := d.SetVolume(d.cfg.initialVolume); err != nil {
		return fmt.Errorf("jq6500: apply initial volume: %w", err)
	}

	d.logger.Info("module opened", "version", version, "volume", d.cfg.initialVolume)

	return nil
}

// Close stops the status monitor and closes the port.
//
// The driver owns the port handle; a closed driver cannot be reused.
// Closing while a transaction is in flight unblocks it with a link error.
func (d *Driver) Close() error {
	if !d.txState.Close() {
		return nil
	}

	d.StopMonitor()
	d.taskMgr.Stop()

	// Close the port before waiting: an in-flight transaction or monitor
	// poll may be blocked on port I/O, and closing is what unblocks it.
	closeErr := d.port.Close()

	d.taskMgr.Wait()

	if closeErr != nil {
		return fmt.Errorf("%w: close port: %w", ErrLink, closeErr)
	}

	d.logger.Debug("driver closed")

	return nil
}

// State returns a snapshot of the driver's cached playback settings.
func (d *Driver) State() PlayerState {
	return d.state.snapshot()
}

// GetLogger returns the logger associated with the driver.
func (d *Driver) GetLogger() logger.Logger {
	return d.logger
}

// GetMetrics returns the metrics associated with the driver.
func (d *Driver) GetMetrics() *DriverMetrics {
	return &d.metrics
}

// --- Transactions ---

// Send transmits cmd and returns the module's response frame.
//
// At most one transaction may be in flight. Concurrent callers are rejected
// with ErrBusy rather than queued, keeping command timing deterministic on
// the half-duplex line. The response opcode must echo the command opcode;
// any other opcode reports ErrUnexpectedResponse.
func (d *Driver) Send(cmd Command) (*ResponseFrame, error) {
	if d.txState.IsClosed() {
		return nil, ErrClosed
	}

	if !d.txState.Acquire() {
		if d.txState.IsClosed() {
			return nil, ErrClosed
		}

		d.metrics.incBusyCount()

		return nil, ErrBusy
	}
	defer d.txState.Release()

	d.waitCommandInterval()

	d.logger.Debug("send command", "cmd", cmd.Name())

	resp, err := d.transport.transact(d.pctx, cmd.Pack())
	d.lastSendNano.Store(time.Now().UnixNano())

	if err != nil {
		return nil, err
	}

	if resp.Cmd != cmd.Op {
		d.metrics.incUnexpectedCount()

		return nil, fmt.Errorf("%w: sent 0x%02X (%s), got 0x%02X (%s)",
			ErrUnexpectedResponse, cmd.Op, cmd.Name(), resp.Cmd, CommandName(resp.Cmd))
	}

	return resp, nil
}

// sendControl sends a control command and consumes its echo acknowledgement.
func (d *Driver) sendControl(cmd Command) error {
	_, err := d.Send(cmd)

	return err
}

// sendQuery sends a query command and returns its numeric payload.
func (d *Driver) sendQuery(cmd Command) (uint16, error) {
	resp, err := d.Send(cmd)
	if err != nil {
		return 0, err
	}

	return resp.Uint16()
}

// waitCommandInterval blocks until the configured gap since the previous
// transaction has elapsed.
func (d *Driver) waitCommandInterval() {
	if d.cfg.commandInterval <= 0 {
		return
	}

	last := d.lastSendNano.Load()
	if last == 0 {
		return
	}

	wait := d.cfg.commandInterval - time.Since(time.Unix(0, last))
	if wait <= 0 {
		return
	}

	timer := pool.GetTimer(wait)
	defer pool.PutTimer(timer)

	select {
	case <-timer.C:
	case <-d.pctx.Done():
	}
}

// --- Status monitor ---

// AddStatusChangeHandler registers h with the status monitor and returns an
// ID that can be passed to RemoveStatusChangeHandler.
func (d *Driver) AddStatusChangeHandler(h StatusChangeHandler) int64 {
	id := d.nextHandlerID.Add(1)
	d.handlers.Store(id, h)

	return id
}

// RemoveStatusChangeHandler unregisters the handler with the given ID.
func (d *Driver) RemoveStatusChangeHandler(id int64) {
	d.handlers.Delete(id)
}

// StartMonitor begins polling the module's play status at the given
// interval, dispatching registered handlers on every change.
//
// Polls go through Send, so they are skipped while a caller's transaction
// holds the slot; monitoring never delays or interleaves with commands.
func (d *Driver) StartMonitor(interval time.Duration) error {
	if d.txState.IsClosed() {
		return ErrClosed
	}

	if interval <= 0 {
		return errors.New("jq6500: monitor interval must be positive")
	}

	if !d.monitorOn.CompareAndSwap(false, true) {
		return errors.New("jq6500: status monitor already running")
	}

	if _, err := d.taskMgr.StartInterval(monitorTaskName, d.pollStatus, interval, false); err != nil {
		d.monitorOn.Store(false)

		return err
	}

	d.logger.Debug("status monitor started", "interval", interval)

	return nil
}

// StopMonitor stops the status monitor. It is a no-op when the monitor is
// not running.
func (d *Driver) StopMonitor() {
	if !d.monitorOn.CompareAndSwap(true, false) {
		return
	}

	_ = d.taskMgr.StopInterval(monitorTaskName)

	d.logger.Debug("status monitor stopped")
}

// pollStatus performs one monitor tick.
func (d *Driver) pollStatus() bool {
	oldStatus := d.state.snapshot().Status

	status, err := d.Status()
	if err != nil {
		if errors.Is(err, ErrBusy) {
			return true // a caller holds the slot, poll again next tick
		}

		if errors.Is(err, ErrClosed) {
			return false
		}

		d.logger.Debug("status poll failed", "error", err)

		return true
	}

	if status != oldStatus {
		d.dispatchStatusChange(oldStatus, status)
	}

	return true
}

func (d *Driver) dispatchStatusChange(oldStatus, newStatus PlayStatus) {
	d.logger.Debug("play status changed", "from", oldStatus, "to", newStatus)

	d.handlers.Range(func(_ int64, h StatusChangeHandler) bool {
		h(oldStatus, newStatus)

		return true
	})
}
