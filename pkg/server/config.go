package server

import (
	"fmt"
	"time"

	"github.com/marmos91/dtftp/pkg/stats"
)

// SessionStatsCallback is invoked exactly once per terminated session with
// that session's final statistics record.
//
// The callback runs on the supervisor's reaper goroutine, never
// concurrently with itself. A panic inside the callback is recovered and
// logged; it does not affect other sessions or the server.
type SessionStatsCallback func(stats.SessionStats)

// ServerStatsCallback is invoked periodically with the server-wide counter
// set. The callback is expected to call GetAndResetAllCounters (or the
// per-counter variants) to export and zero the counters.
//
// Invocations never overlap: the supervisor calls the callback from a
// single goroutine on a fixed interval. Slow callbacks delay the next tick
// rather than stacking up.
type ServerStatsCallback func(*stats.ServerStats)

// Config holds the server configuration.
//
// Zero values are replaced with defaults by New; invalid values are a
// construction-time error, never a runtime fault.
type Config struct {
	// Address is the IP address to bind the listening socket to.
	// Empty means all interfaces.
	Address string `mapstructure:"address"`

	// Port is the UDP port to listen on. The TFTP well-known port is 69;
	// unprivileged deployments commonly pick a high port. 0 binds an
	// OS-assigned ephemeral port (see Server.LocalAddr).
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Retries is the number of times an unacknowledged packet is resent
	// before the session gives up as timed out.
	Retries int `mapstructure:"retries" validate:"min=0"`

	// Timeout is how long a session waits for an ACK before retransmitting.
	// A client-negotiated timeout option overrides it per session.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	// MaxSessions caps the number of concurrent transfer sessions.
	// Requests beyond the cap are rejected with an ERROR reply.
	// 0 means unlimited.
	MaxSessions int `mapstructure:"max_sessions" validate:"min=0"`

	// SessionRate limits how many new sessions per second are admitted,
	// with SessionBurst controlling the burst capacity. 0 disables the
	// limit.
	SessionRate  uint `mapstructure:"session_rate"`
	SessionBurst uint `mapstructure:"session_burst"`

	// ShutdownTimeout is how long Stop waits for in-flight sessions to
	// finish before force-closing their sockets.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// StatsInterval is the period of the server-wide stats callback.
	// Ignored when OnServerStats is nil.
	StatsInterval time.Duration `mapstructure:"stats_interval" validate:"min=0"`

	// OnSessionStats receives the final statistics of every session.
	OnSessionStats SessionStatsCallback `mapstructure:"-"`

	// OnServerStats receives the server-wide counter set every
	// StatsInterval.
	OnServerStats ServerStatsCallback `mapstructure:"-"`
}

const (
	// DefaultPort is the TFTP well-known port.
	DefaultPort = 69

	// DefaultRetries matches the retransmission budget most TFTP
	// implementations ship with.
	DefaultRetries = 5

	// DefaultTimeout is the per-packet ACK deadline.
	DefaultTimeout = 5 * time.Second

	// DefaultStatsInterval is how often the server-stats callback fires.
	DefaultStatsInterval = 60 * time.Second

	// DefaultShutdownTimeout bounds the graceful-shutdown drain.
	DefaultShutdownTimeout = 30 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.Retries < 0 {
		return fmt.Errorf("invalid retries %d: must be >= 0", c.Retries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %v: must be > 0", c.Timeout)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("invalid max_sessions %d: must be >= 0", c.MaxSessions)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("invalid stats_interval %v: must be > 0", c.StatsInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown_timeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
