package stats

import (
	"net"
	"time"
)

// Outcome is the terminal state of a session.
type Outcome string

const (
	// OutcomeComplete means the final short block was acknowledged.
	OutcomeComplete Outcome = "complete"

	// OutcomeError means the session ended with a protocol, data-source or
	// client-reported error.
	OutcomeError Outcome = "error"

	// OutcomeTimedOut means retransmissions were exhausted without a reply.
	OutcomeTimedOut Outcome = "timed_out"
)

// TransferError describes the error that ended a session, in wire terms.
type TransferError struct {
	Code    uint16
	Message string
}

// SessionStats is the digest of one transfer session. It is owned by the
// session worker while the transfer runs and must not be read by anyone
// else until the session delivers it through the session-stats callback
// at termination.
type SessionStats struct {
	ServerAddr net.Addr
	Peer       net.Addr
	Path       string

	// Outcome and Error are set on the terminal transition. Error is nil
	// for OutcomeComplete and OutcomeTimedOut-without-detail sessions.
	Outcome Outcome
	Error   *TransferError

	// OptionsIn are the options the client requested; OptionsAcked are the
	// ones the server acknowledged in the OACK (nil when no OACK was sent).
	OptionsIn    map[string]string
	OptionsAcked map[string]string

	Blocksize    int
	PacketsSent  int64
	PacketsAcked int64
	BytesSent    int64
	Retransmits  int64

	StartTime time.Time
	EndTime   time.Time
}

// NewSessionStats creates a stats record for a session that just received
// its RRQ.
func NewSessionStats(serverAddr, peer net.Addr, path string) *SessionStats {
	return &SessionStats{
		ServerAddr: serverAddr,
		Peer:       peer,
		Path:       path,
		StartTime:  time.Now(),
	}
}

// Duration returns the session length. Before the session ends it reports
// the time elapsed so far.
func (s *SessionStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
