// Package stats provides the statistics registry shared between the session
// supervisor and individual transfer sessions.
//
// Two scopes exist:
//   - SessionStats: owned by exactly one session, populated during the
//     transfer and sealed at termination.
//   - ServerStats: the server-wide counter set. Sessions never touch it;
//     the supervisor merges per-session counters into it when it reaps a
//     finished worker, and the periodic export callback drains it with
//     read-and-reset semantics.
package stats

import (
	"sync"
	"time"
)

// Well-known counter names incremented by the supervisor.
const (
	// CounterSessionsSpawned counts workers spawned in the current stats
	// window.
	CounterSessionsSpawned = "sessions_spawned"

	// CounterSessionsComplete / CounterSessionsError / CounterSessionsTimedOut
	// count terminal outcomes observed at reap time.
	CounterSessionsComplete = "sessions_complete"
	CounterSessionsError    = "sessions_error"
	CounterSessionsTimedOut = "sessions_timed_out"

	// CounterPacketsSent, CounterBytesSent and CounterRetransmits aggregate
	// the per-session transfer counters.
	CounterPacketsSent = "packets_sent"
	CounterBytesSent   = "bytes_sent"
	CounterRetransmits = "retransmits"
)

// ServerStats is the server-wide counter registry.
//
// All methods are safe for concurrent use, but by convention only the
// supervisor increments counters and only the export callback reads and
// resets them.
type ServerStats struct {
	// ServerAddr and Interval are not used internally; they are carried so
	// an export callback can label published datapoints.
	ServerAddr string
	Interval   time.Duration

	mu        sync.Mutex
	counters  map[string]int64
	startTime time.Time
}

// NewServerStats creates an empty registry. serverAddr and interval are
// informational, provided by the supervisor for the export callback's use.
func NewServerStats(serverAddr string, interval time.Duration) *ServerStats {
	return &ServerStats{
		ServerAddr: serverAddr,
		Interval:   interval,
		counters:   make(map[string]int64),
		startTime:  time.Now(),
	}
}

// IncrementCounter adds delta (which may be negative) to the named counter,
// creating it at zero first if needed.
func (s *ServerStats) IncrementCounter(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
}

// SetCounter sets the named counter to value.
func (s *ServerStats) SetCounter(name string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] = value
}

// GetCounter returns the current value of the named counter, zero if it was
// never incremented.
func (s *ServerStats) GetCounter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// GetAllCounters returns a snapshot of every counter. The snapshot is a
// copy; mutating it does not affect the registry.
func (s *ServerStats) GetAllCounters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCountersLocked()
}

// GetAndResetAllCounters atomically snapshots every counter and zeroes the
// registry. Export callbacks use this so each stats window starts fresh.
func (s *ServerStats) GetAndResetAllCounters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.copyCountersLocked()
	s.counters = make(map[string]int64)
	return snapshot
}

// GetAndResetCounter atomically reads and zeroes one counter.
func (s *ServerStats) GetAndResetCounter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := s.counters[name]
	s.counters[name] = 0
	return value
}

// ResetAllCounters zeroes the registry.
func (s *ServerStats) ResetAllCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int64)
}

// Duration returns the time elapsed since the registry was created, i.e.
// the server uptime.
func (s *ServerStats) Duration() time.Duration {
	return time.Since(s.startTime)
}

func (s *ServerStats) copyCountersLocked() map[string]int64 {
	snapshot := make(map[string]int64, len(s.counters))
	for name, value := range s.counters {
		snapshot[name] = value
	}
	return snapshot
}
