package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/errors"
)

// PumpPolicy declares how the engine's message loop and the host's event
// loop interleave. The choice is made once, at Initialize; the rest of the
// bridge is agnostic to it.
type PumpPolicy int

const (
	// PumpDedicated: the handle owns a goroutine pinned to an OS thread
	// that drains UI-class tasks and steps the engine's message loop on a
	// ticker. The host's render loop stays on its own thread.
	PumpDedicated PumpPolicy = iota

	// PumpCooperative: the host's event loop and the engine's UI class
	// share one thread. The host must call Handle.PumpStep (or
	// bridge.Poll, which does it) every frame; engine callbacks assume
	// that cadence.
	PumpCooperative
)

func (p PumpPolicy) String() string {
	switch p {
	case PumpDedicated:
		return "dedicated"
	case PumpCooperative:
		return "cooperative"
	default:
		return "unknown"
	}
}

// Default timing values, applied by Validate when left zero.
const (
	DefaultPumpInterval    = 10 * time.Millisecond
	DefaultInitTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Config is the host-supplied engine configuration. Every field is
// validated at Initialize, before any engine process starts.
type Config struct {
	// CachePath is the root directory for the engine's on-disk caches.
	// Required; the engine refuses to share a cache root between process
	// trees.
	CachePath string

	// GPUAcceleration enables GPU compositing inside the engine. Off means
	// CPU rendering; frame delivery is identical either way.
	GPUAcceleration bool

	// RemoteDebuggingPort exposes the engine's debugging protocol on
	// localhost. 0 disables it; otherwise it must be an unprivileged port
	// (1024-65535).
	RemoteDebuggingPort int

	// PumpPolicy declares the message-pump interleaving. See PumpPolicy.
	PumpPolicy PumpPolicy

	// PumpInterval is the dedicated pump's tick. Meaningful only under
	// PumpDedicated; setting it under PumpCooperative is a configuration
	// error (the host controls the cadence there). Zero means
	// DefaultPumpInterval.
	PumpInterval time.Duration

	// InitTimeout bounds how long Initialize waits for the process tree to
	// come up. Zero means DefaultInitTimeout.
	InitTimeout time.Duration

	// ShutdownTimeout bounds how long Shutdown waits for the engine's
	// threads to exit. Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Logger receives the bridge's structured logs. Nil means no logging.
	Logger *zap.Logger

	// Metrics, when set, is where the bridge registers its Prometheus
	// collectors. Nil disables registration (counters still work, they are
	// just not exported).
	Metrics prometheus.Registerer
}

// Validate checks the configuration and fills in defaults. It returns a
// config-kind error for invalid values or combinations.
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return errors.Config("cache path is required")
	}
	if c.RemoteDebuggingPort != 0 && (c.RemoteDebuggingPort < 1024 || c.RemoteDebuggingPort > 65535) {
		return errors.Config("remote debugging port %d out of range (0 to disable, else 1024-65535)", c.RemoteDebuggingPort)
	}
	switch c.PumpPolicy {
	case PumpDedicated, PumpCooperative:
	default:
		return errors.Config("unknown pump policy %d", int(c.PumpPolicy))
	}
	if c.PumpInterval < 0 {
		return errors.Config("pump interval must not be negative")
	}
	if c.PumpPolicy == PumpCooperative && c.PumpInterval != 0 {
		return errors.Config("pump interval is set but the cooperative policy leaves cadence to the host")
	}
	if c.InitTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.Config("timeouts must not be negative")
	}

	if c.PumpPolicy == PumpDedicated && c.PumpInterval == 0 {
		c.PumpInterval = DefaultPumpInterval
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = DefaultInitTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// startConfig maps the validated host configuration onto the embedding API.
func (c *Config) startConfig() browserbridge.StartConfig {
	return browserbridge.StartConfig{
		CachePath:           c.CachePath,
		GPUAcceleration:     c.GPUAcceleration,
		RemoteDebuggingPort: c.RemoteDebuggingPort,
	}
}
