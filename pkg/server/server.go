// Package server implements the TFTP session supervisor and the per-session
// transfer state machine.
//
// The supervisor listens on a single UDP socket. Every read request spawns
// an isolated worker: a fresh goroutine bound to a fresh ephemeral UDP
// socket, so a failure in one transfer can never corrupt the listener or
// another transfer. Workers are tracked with a wait group for graceful
// shutdown and reaped through a channel that merges their final statistics
// into the server-wide counter set.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dtftp/internal/logger"
	"github.com/marmos91/dtftp/internal/protocol/tftp"
	"github.com/marmos91/dtftp/internal/ratelimiter"
	"github.com/marmos91/dtftp/pkg/metrics"
	"github.com/marmos91/dtftp/pkg/stats"
)

// Server is the TFTP session supervisor.
//
// Lifecycle:
//  1. New() validates the configuration and builds the server.
//  2. Serve(ctx) binds the listening socket and blocks, spawning one
//     worker per read request.
//  3. Context cancellation or Stop() initiates graceful shutdown: the
//     listener closes, in-flight sessions drain up to ShutdownTimeout,
//     then remaining session sockets are force-closed.
//
// Thread safety: all methods are safe for concurrent use. Serve should
// only be called once per instance.
type Server struct {
	config  Config
	handler Handler
	metrics metrics.TFTPMetrics

	// conn is the listening socket. Only the accept loop reads from it;
	// sessions use their own ephemeral sockets.
	conn *net.UDPConn

	// stats is the server-wide counter set. Only the reaper goroutine and
	// the accept loop write to it, only the periodic callback drains it.
	stats *stats.ServerStats

	// limiter bounds the admission rate of new sessions.
	limiter *ratelimiter.RateLimiter

	// activeSessions tracks in-flight workers for graceful shutdown.
	activeSessions sync.WaitGroup
	sessionCount   atomic.Int32

	// sessionSockets maps session id to its UDP socket so shutdown can
	// force-close stragglers after the drain timeout.
	sessionSockets sync.Map

	// reap carries sealed per-session stats records from workers to the
	// reaper goroutine. Unbuffered: a worker is not done until its record
	// has been handed over.
	reap       chan *stats.SessionStats
	reaperStop chan struct{}
	reaperDone chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// shutdownCtx is passed to handler.Open so slow lookups can abort
	// when the server shuts down.
	shutdownCtx context.Context
	cancelOpens context.CancelFunc
}

// New creates a Server from the given configuration and handler.
//
// Zero config values are replaced with defaults; anything invalid after
// that is a construction-time error. Passing nil metrics selects a no-op
// implementation.
func New(config Config, handler Handler, m metrics.TFTPMetrics) (*Server, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("invalid server config: handler must not be nil")
	}
	if m == nil {
		m = metrics.NewNoopTFTPMetrics()
	}

	shutdownCtx, cancelOpens := context.WithCancel(context.Background())

	return &Server{
		config:      config,
		handler:     handler,
		metrics:     m,
		stats:       stats.NewServerStats(fmt.Sprintf("%s:%d", config.Address, config.Port), config.StatsInterval),
		limiter:     ratelimiter.New(config.SessionRate, config.SessionBurst),
		reap:        make(chan *stats.SessionStats),
		reaperStop:  make(chan struct{}),
		reaperDone:  make(chan struct{}),
		shutdown:    make(chan struct{}),
		shutdownCtx: shutdownCtx,
		cancelOpens: cancelOpens,
	}, nil
}

// Serve binds the listening socket and blocks until the context is
// cancelled or Stop is called, then drains in-flight sessions.
//
// Returns nil on graceful shutdown, an error if the socket cannot be bound
// or if sessions had to be force-closed after ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	var ip net.IP
	if s.config.Address != "" {
		ip = net.ParseIP(s.config.Address)
		if ip == nil {
			return fmt.Errorf("invalid bind address %q", s.config.Address)
		}
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: s.config.Port})
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s:%d: %w", s.config.Address, s.config.Port, err)
	}
	s.conn = conn
	s.stats.ServerAddr = conn.LocalAddr().String()

	logger.Info("TFTP server listening on %s", conn.LocalAddr())
	logger.Debug("TFTP config: retries=%d timeout=%v max_sessions=%d session_rate=%d",
		s.config.Retries, s.config.Timeout, s.config.MaxSessions, s.config.SessionRate)

	go func() {
		<-ctx.Done()
		logger.Info("TFTP shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	go s.reapLoop()
	if s.config.OnServerStats != nil {
		go s.statsLoop()
	}

	buf := make([]byte, 65536)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.shutdown:
				return s.drainSessions()
			default:
				logger.Debug("Error reading from listening socket: %v", err)
				continue
			}
		}

		// the buffer is reused by the next read; sessions get a copy
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		s.dispatch(datagram, peer)
	}
}

// dispatch routes one datagram from the listening socket. Only read and
// write requests belong here; write requests are admitted just far enough
// to be rejected by their session with an ERROR reply.
func (s *Server) dispatch(datagram []byte, peer *net.UDPAddr) {
	pkt, err := tftp.Decode(datagram)
	if err != nil {
		logger.Debug("Malformed datagram from %s: %v", peer, err)
		s.metrics.RecordRequestRejected("malformed")
		s.replyError(peer, tftp.ErrCodeUndefined, "malformed packet")
		return
	}

	switch pkt.(type) {
	case *tftp.ReadRequest, *tftp.WriteRequest:
		if !s.limiter.Allow() {
			logger.Warn("Rate limit exceeded, rejecting request from %s", peer)
			s.metrics.RecordRequestRejected("rate_limited")
			s.replyError(peer, tftp.ErrCodeUndefined, "server busy")
			return
		}
		if s.config.MaxSessions > 0 && s.sessionCount.Load() >= int32(s.config.MaxSessions) {
			logger.Warn("Session cap %d reached, rejecting request from %s", s.config.MaxSessions, peer)
			s.metrics.RecordRequestRejected("session_cap")
			s.replyError(peer, tftp.ErrCodeUndefined, "server busy")
			return
		}
		s.spawnSession(pkt, peer)

	default:
		// stray DATA/ACK/ERROR aimed at the well-known port, not at a
		// session socket
		logger.Debug("Ignoring unexpected opcode %d on listening socket from %s", pkt.Opcode(), peer)
	}
}

// spawnSession creates the worker for one request: an ephemeral UDP socket
// plus a goroutine running the session state machine against it.
func (s *Server) spawnSession(req tftp.Packet, peer *net.UDPAddr) {
	var ip net.IP
	if s.config.Address != "" {
		ip = net.ParseIP(s.config.Address)
	}

	sconn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: 0})
	if err != nil {
		logger.Error("Failed to bind session socket for %s: %v", peer, err)
		s.replyError(peer, tftp.ErrCodeUndefined, "internal server error")
		return
	}

	id := uuid.NewString()
	sess := newSession(id, sconn, peer, req, s.handler, s.config.Retries, s.config.Timeout)

	s.stats.IncrementCounter(stats.CounterSessionsSpawned, 1)
	s.metrics.RecordSessionStarted()

	s.activeSessions.Add(1)
	count := s.sessionCount.Add(1)
	s.metrics.SetActiveSessions(count)
	s.sessionSockets.Store(id, sconn)

	logger.Debug("Session %s spawned for %s on %s (active: %d)", id, peer, sconn.LocalAddr(), count)

	go func() {
		defer func() {
			s.sessionSockets.Delete(id)
			remaining := s.sessionCount.Add(-1)
			s.metrics.SetActiveSessions(remaining)
			s.activeSessions.Done()
		}()

		sess.serve(s.shutdownCtx)

		// hand the sealed record to the reaper before this worker counts
		// as done, so shutdown never loses a session's stats
		s.reap <- sess.stats
	}()
}

// reapLoop is the single writer of the server-wide counter set. It merges
// every terminated session's counters and invokes the session-stats
// callback, one session at a time.
func (s *Server) reapLoop() {
	defer close(s.reaperDone)

	for {
		select {
		case record := <-s.reap:
			s.reapSession(record)
		case <-s.reaperStop:
			return
		}
	}
}

func (s *Server) reapSession(record *stats.SessionStats) {
	switch record.Outcome {
	case stats.OutcomeComplete:
		s.stats.IncrementCounter(stats.CounterSessionsComplete, 1)
	case stats.OutcomeTimedOut:
		s.stats.IncrementCounter(stats.CounterSessionsTimedOut, 1)
	default:
		s.stats.IncrementCounter(stats.CounterSessionsError, 1)
	}
	s.stats.IncrementCounter(stats.CounterPacketsSent, record.PacketsSent)
	s.stats.IncrementCounter(stats.CounterBytesSent, record.BytesSent)
	s.stats.IncrementCounter(stats.CounterRetransmits, record.Retransmits)

	s.metrics.RecordSessionFinished(string(record.Outcome), record.Duration())
	s.metrics.RecordBytesSent(record.BytesSent)
	s.metrics.RecordRetransmits(record.Retransmits)

	if s.config.OnSessionStats != nil {
		s.invokeSessionStats(record)
	}
}

// invokeSessionStats shields the reaper from a misbehaving callback.
func (s *Server) invokeSessionStats(record *stats.SessionStats) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Session stats callback panicked: %v", r)
		}
	}()
	s.config.OnSessionStats(*record)
}

// statsLoop ticks the server-wide stats callback on a fixed interval. It
// is the only goroutine that ever invokes the callback, which is what
// makes the documented non-reentrancy guarantee hold: a slow callback
// delays the next tick instead of overlapping with it.
func (s *Server) statsLoop() {
	ticker := time.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.invokeServerStats()
		}
	}
}

func (s *Server) invokeServerStats() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Server stats callback panicked: %v", r)
		}
	}()
	s.config.OnServerStats(s.stats)
}

// initiateShutdown begins graceful shutdown. Safe to call multiple times.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("TFTP shutdown initiated")

		close(s.shutdown)
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				logger.Debug("Error closing listening socket: %v", err)
			}
		}
		s.cancelOpens()
	})
}

// drainSessions waits for in-flight sessions to finish, force-closing
// their sockets after ShutdownTimeout, then stops the reaper.
func (s *Server) drainSessions() error {
	active := s.sessionCount.Load()
	logger.Info("TFTP graceful shutdown: waiting for %d active session(s) (timeout: %v)",
		active, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeSessions.Wait()
		close(done)
	}()

	var drainErr error
	select {
	case <-done:
		logger.Info("TFTP graceful shutdown complete: all sessions finished")

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.sessionCount.Load()
		logger.Warn("TFTP shutdown timeout exceeded: %d session(s) still active after %v, forcing closure",
			remaining, s.config.ShutdownTimeout)
		s.forceCloseSessions()

		// closed sockets fail any blocked read, so the stragglers exit
		// promptly and deliver their stats
		<-done
		drainErr = fmt.Errorf("TFTP shutdown timeout: %d sessions force-closed", remaining)
	}

	close(s.reaperStop)
	<-s.reaperDone
	logger.Info("TFTP server stopped")
	return drainErr
}

func (s *Server) forceCloseSessions() {
	closed := 0
	s.sessionSockets.Range(func(key, value any) bool {
		id := key.(string)
		sconn := value.(*net.UDPConn)
		if err := sconn.Close(); err != nil {
			logger.Debug("Error force-closing session %s: %v", id, err)
		} else {
			closed++
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed %d session socket(s)", closed)
	}
}

// replyError sends a best-effort ERROR from the listening socket for
// requests that never get a session.
func (s *Server) replyError(peer *net.UDPAddr, code uint16, message string) {
	pkt := &tftp.Error{Code: code, Message: message}
	if _, err := s.conn.WriteToUDP(pkt.Encode(), peer); err != nil {
		logger.Debug("Error replying to %s: %v", peer, err)
	}
}

// Stop initiates graceful shutdown and waits for in-flight sessions.
//
// The context bounds the wait; a nil context waits until every session has
// finished. Safe to call multiple times and concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeSessions.Wait()
		close(done)
	}()

	if ctx == nil {
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the server-wide counter set. Intended for export callbacks
// and tests; counters are drained with GetAndResetAllCounters.
func (s *Server) Stats() *stats.ServerStats {
	return s.stats
}

// ActiveSessions returns the number of sessions currently running.
func (s *Server) ActiveSessions() int32 {
	return s.sessionCount.Load()
}

// LocalAddr returns the listening address, nil before Serve binds it.
// Useful when the server was configured with port 0.
func (s *Server) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}
