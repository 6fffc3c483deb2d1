package jq6500

import (
	"errors"
	"fmt"
	"time"

	"github.com/audiokit/go-jq6500/logger"
)

// Default timing values for the module's 9600 baud serial link. The module
// answers a command well inside 200ms; the inter-byte timeout bounds gaps
// between bytes of a single response frame.
const (
	DefaultResponseTimeout  = 200 * time.Millisecond
	DefaultInterByteTimeout = 100 * time.Millisecond

	DefaultRetryLimit = 0 // single attempt, no retry

	// DefaultInitialVolume is applied by Open and restored by the state
	// cache after a reset. Range 0-30.
	DefaultInitialVolume = 20
)

// Timing range limits.
const (
	MinResponseTimeout = 20 * time.Millisecond
	MaxResponseTimeout = 30 * time.Second

	MinInterByteTimeout = 10 * time.Millisecond
	MaxInterByteTimeout = 5 * time.Second

	MaxRetryLimit = 10

	MaxCommandInterval = 1 * time.Second
)

// driverConfig holds all configuration for a Driver.
type driverConfig struct {
	// responseTimeout bounds the wait for the first byte of a response.
	responseTimeout time.Duration

	// interByteTimeout bounds the gap between bytes inside a response frame.
	interByteTimeout time.Duration

	// retryLimit is the max number of resend attempts after a timeout.
	retryLimit int

	// commandInterval is the enforced gap between transactions. Zero
	// disables the gap.
	commandInterval time.Duration

	// initialVolume is applied by Open.
	initialVolume uint8

	logger logger.Logger
}

func newDriverConfig(opts ...DriverOption) (*driverConfig, error) {
	cfg := &driverConfig{
		responseTimeout:  DefaultResponseTimeout,
		interByteTimeout: DefaultInterByteTimeout,
		retryLimit:       DefaultRetryLimit,
		initialVolume:    DefaultInitialVolume,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- DriverOption ---

// DriverOption is a functional option for configuring a Driver.
type DriverOption interface {
	apply(*driverConfig) error
}

type optFunc func(*driverConfig) error

func (f optFunc) apply(cfg *driverConfig) error { return f(cfg) }

// WithResponseTimeout sets the time to wait for the first byte of a
// response before the transaction is considered timed out. Range 20ms-30s.
func WithResponseTimeout(d time.Duration) DriverOption {
	return optFunc(func(cfg *driverConfig) error {
		if d < MinResponseTimeout || d > MaxResponseTimeout {
			return fmt.Errorf("jq6500: response timeout %v out of range [%v, %v]", d, MinResponseTimeout, MaxResponseTimeout)
		}
		cfg.responseTimeout = d

		return nil
	})
}

// WithInterByteTimeout sets the maximum gap between bytes inside a response
// frame once the first byte has arrived. Range 10ms-5s.
func WithInterByteTimeout(d time.Duration) DriverOption {
	return optFunc(func(cfg *driverConfig) error {
		if d < MinInterByteTimeout || d > MaxInterByteTimeout {
			return fmt.Errorf("jq6500: inter-byte timeout %v out of range [%v, %v]", d, MinInterByteTimeout, MaxInterByteTimeout)
		}
		cfg.interByteTimeout = d

		return nil
	})
}

// WithRetryLimit sets the maximum number of resend attempts after a response
// timeout. Only timeouts are retried; framing and link errors never are.
// Range 0-10, default 0 (single attempt).
func WithRetryLimit(n int) DriverOption {
	return optFunc(func(cfg *driverConfig) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("jq6500: retry limit %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithCommandInterval enforces a minimum gap between consecutive
// transactions, giving the half-duplex module time to settle. Range 0-1s,
// default 0 (no gap).
func WithCommandInterval(d time.Duration) DriverOption {
	return optFunc(func(cfg *driverConfig) error {
		if d < 0 || d > MaxCommandInterval {
			return fmt.Errorf("jq6500: command interval %v out of range [0, %v]", d, MaxCommandInterval)
		}
		cfg.commandInterval = d

		return nil
	})
}

// WithInitialVolume sets the volume Open applies after probing the module.
// Range 0-30, default 20.
func WithInitialVolume(v uint8) DriverOption {
	return optFunc(func(cfg *driverConfig) error {
		if v > MaxVolume {
			return fmt.Errorf("jq6500: initial volume %d exceeds maximum %d", v, MaxVolume)
		}
		cfg.initialVolume = v

		return nil
	})
}

// WithLogger sets the logger for the driver.
func WithLogger(l logger.Logger) DriverOption {
	return optFunc(func(cfg *driverConfig) error {
		if l == nil {
			return errors.New("jq6500: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
