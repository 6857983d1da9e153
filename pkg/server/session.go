package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/dtftp/internal/logger"
	"github.com/marmos91/dtftp/internal/netascii"
	"github.com/marmos91/dtftp/internal/protocol/tftp"
	"github.com/marmos91/dtftp/pkg/source"
	"github.com/marmos91/dtftp/pkg/stats"
)

// errTimedOut reports retransmission exhaustion. The client is presumed
// gone, so no ERROR packet is sent on this path.
var errTimedOut = errors.New("retransmissions exhausted")

// clientAbortError is an ERROR packet received from the peer. The session
// terminates without replying.
type clientAbortError struct {
	code    uint16
	message string
}

func (e *clientAbortError) Error() string {
	return fmt.Sprintf("client aborted transfer: %d %s", e.code, e.message)
}

// protocolError is a protocol violation by the peer (malformed datagram,
// unexpected opcode). The ERROR reply has already been sent when it is
// returned.
type protocolError struct {
	code    uint16
	message string
}

func (e *protocolError) Error() string {
	return e.message
}

// session runs one transfer against its own ephemeral UDP socket.
//
// A session owns everything it touches: the socket, the data source and
// its stats record. Nothing is shared with other sessions or with the
// supervisor; the sealed stats record is handed over through the reap
// channel after the terminal transition, which keeps the server-wide
// counter set single-writer.
type session struct {
	id      string
	conn    *net.UDPConn
	peer    *net.UDPAddr
	req     tftp.Packet
	handler Handler

	retries   int
	timeout   time.Duration
	blocksize int

	src   source.Source
	stats *stats.SessionStats
	rbuf  []byte
}

func newSession(id string, conn *net.UDPConn, peer *net.UDPAddr, req tftp.Packet, handler Handler, retries int, timeout time.Duration) *session {
	path := ""
	if rrq, ok := req.(*tftp.ReadRequest); ok {
		path = rrq.Filename
	} else if wrq, ok := req.(*tftp.WriteRequest); ok {
		path = wrq.Filename
	}

	return &session{
		id:      id,
		conn:    conn,
		peer:    peer,
		req:     req,
		handler: handler,
		retries: retries,
		timeout: timeout,
		stats:   stats.NewSessionStats(conn.LocalAddr(), peer, path),
		rbuf:    make([]byte, 65536),
	}
}

// serve drives the session to a terminal state. It never returns an error:
// every failure is contained here, recorded in the stats record and, where
// the protocol calls for it, reported to the client as an ERROR packet.
func (s *session) serve(ctx context.Context) {
	defer s.finish()

	switch req := s.req.(type) {
	case *tftp.ReadRequest:
		s.serveRead(ctx, req)
	case *tftp.WriteRequest:
		logger.Info("[%s] rejecting write request for %q from %s", s.id, req.Filename, s.peer)
		s.abort(tftp.ErrCodeIllegalOperation, "illegal TFTP operation")
	default:
		s.abort(tftp.ErrCodeIllegalOperation, "illegal TFTP operation")
	}
}

// finish seals the stats record and releases the session's resources. It
// also contains panics: a crash in one session must never take down the
// supervisor or its siblings.
func (s *session) finish() {
	if r := recover(); r != nil {
		logger.Error("[%s] session panic: %v", s.id, r)
		s.stats.Outcome = stats.OutcomeError
		if s.stats.Error == nil {
			s.stats.Error = &stats.TransferError{
				Code:    tftp.ErrCodeUndefined,
				Message: "internal server error",
			}
		}
	}

	if s.src != nil {
		if err := s.src.Close(); err != nil {
			logger.Warn("[%s] closing data source: %v", s.id, err)
		}
	}
	_ = s.conn.Close()
	s.stats.EndTime = time.Now()
}

func (s *session) serveRead(ctx context.Context, req *tftp.ReadRequest) {
	s.stats.OptionsIn = optionsMap(req.Options)

	if req.Mode != tftp.ModeOctet && req.Mode != tftp.ModeNetascii {
		logger.Info("[%s] unsupported transfer mode %q from %s", s.id, req.Mode, s.peer)
		s.abort(tftp.ErrCodeIllegalOperation, fmt.Sprintf("unsupported transfer mode %q", req.Mode))
		return
	}

	src, err := s.handler.Open(ctx, &Request{
		Path:    req.Filename,
		Mode:    req.Mode,
		Peer:    s.peer,
		Options: s.stats.OptionsIn,
	})
	if err != nil {
		logger.Info("[%s] open %q for %s: %v", s.id, req.Filename, s.peer, err)
		switch {
		case errors.Is(err, source.ErrNotFound):
			s.abort(tftp.ErrCodeFileNotFound, "file not found")
		case errors.Is(err, source.ErrAccessDenied):
			s.abort(tftp.ErrCodeAccessViolation, "access violation")
		default:
			s.abort(tftp.ErrCodeUndefined, "failed to open data source")
		}
		return
	}

	s.src = src
	if req.Mode == tftp.ModeNetascii {
		s.src = netascii.New(src)
	}

	neg, ackRequired := tftp.Negotiate(req.Options, tftp.Defaults{
		Blocksize: tftp.DefaultBlocksize,
		Timeout:   s.timeout,
	}, s.src.Size)

	s.blocksize = neg.Blocksize
	s.timeout = neg.Timeout
	s.stats.Blocksize = neg.Blocksize

	if ackRequired {
		s.stats.OptionsAcked = optionsMap(neg.Acknowledged)
		logger.Debug("[%s] sending OACK %v to %s", s.id, s.stats.OptionsAcked, s.peer)

		// the ACK for an OACK carries block number 0
		if err := s.sendAwait(&tftp.OptionAck{Options: neg.Acknowledged}, 0); err != nil {
			s.terminate(err)
			return
		}
	}

	s.transfer()
}

// transfer streams DATA blocks until the final short block is acknowledged.
// Block numbers start at 1 and wrap modulo 65536 on long transfers. The
// transfer is over exactly when a block shorter than the negotiated size is
// acknowledged; a source whose length is a multiple of the block size gets
// a trailing zero-length block.
func (s *session) transfer() {
	buf := make([]byte, s.blocksize)
	block := uint16(1)

	for {
		payload, err := s.readBlock(buf)
		if err != nil {
			logger.Warn("[%s] reading block %d of %q: %v", s.id, block, s.stats.Path, err)
			s.abort(tftp.ErrCodeUndefined, "data source read failed")
			return
		}

		last := len(payload) < s.blocksize
		if err := s.sendAwait(&tftp.Data{Block: block, Payload: payload}, block); err != nil {
			s.terminate(err)
			return
		}

		if last {
			s.stats.Outcome = stats.OutcomeComplete
			logger.Debug("[%s] transfer of %q complete: %d bytes in %d packets",
				s.id, s.stats.Path, s.stats.BytesSent, s.stats.PacketsSent)
			return
		}
		block++
	}
}

// readBlock fills buf from the data source. Sources may return short reads,
// so it keeps reading until the buffer is full or the stream ends; only the
// final block of a transfer may be short on the wire.
func (s *session) readBlock(buf []byte) ([]byte, error) {
	n := 0
	for n < len(buf) {
		m, err := s.src.Read(buf[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf[:n], nil
}

// sendAwait transmits pkt and waits for ACK(expect), retransmitting on the
// fixed timeout interval up to the retry budget.
//
// Stale and duplicate ACKs are ignored without resetting the deadline, so a
// chatty client cannot keep a dead transfer alive. Datagrams from other
// peers on the session socket are ignored too. An ERROR from the peer
// aborts without a reply; anything else the peer sends is answered with an
// ERROR and ends the session.
func (s *session) sendAwait(pkt tftp.Packet, expect uint16) error {
	wire := pkt.Encode()
	payloadLen := 0
	if data, ok := pkt.(*tftp.Data); ok {
		payloadLen = len(data.Payload)
	}

	send := func() error {
		if _, err := s.conn.WriteToUDP(wire, s.peer); err != nil {
			return fmt.Errorf("sending packet to %s: %w", s.peer, err)
		}
		s.stats.PacketsSent++
		s.stats.BytesSent += int64(payloadLen)
		return nil
	}

	if err := send(); err != nil {
		return err
	}

	attempt := 0
	deadline := time.Now().Add(s.timeout)

	for {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return fmt.Errorf("arming read deadline: %w", err)
		}

		n, from, err := s.conn.ReadFromUDP(s.rbuf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if attempt >= s.retries {
					return errTimedOut
				}
				attempt++
				s.stats.Retransmits++
				logger.Debug("[%s] no ACK within %v, retransmit %d/%d", s.id, s.timeout, attempt, s.retries)
				if err := send(); err != nil {
					return err
				}
				deadline = time.Now().Add(s.timeout)
				continue
			}
			// socket closed underneath us (forced shutdown)
			return fmt.Errorf("session socket: %w", err)
		}

		if !from.IP.Equal(s.peer.IP) || from.Port != s.peer.Port {
			logger.Debug("[%s] ignoring datagram from unknown peer %s", s.id, from)
			continue
		}

		reply, derr := tftp.Decode(s.rbuf[:n])
		if derr != nil {
			s.sendError(tftp.ErrCodeUndefined, "malformed packet")
			return &protocolError{code: tftp.ErrCodeUndefined, message: derr.Error()}
		}

		switch p := reply.(type) {
		case *tftp.Ack:
			if p.Block == expect {
				s.stats.PacketsAcked++
				return nil
			}
			// stale or duplicate ACK: drop it, keep the current deadline
			logger.Debug("[%s] ignoring stale ACK(%d), want ACK(%d)", s.id, p.Block, expect)
			continue

		case *tftp.Error:
			return &clientAbortError{code: p.Code, message: p.Message}

		default:
			s.sendError(tftp.ErrCodeIllegalOperation, "illegal TFTP operation")
			return &protocolError{
				code:    tftp.ErrCodeIllegalOperation,
				message: fmt.Sprintf("unexpected opcode %d from peer", reply.Opcode()),
			}
		}
	}
}

// terminate records the terminal state for a failed or timed-out transfer.
func (s *session) terminate(err error) {
	var abort *clientAbortError
	var proto *protocolError

	switch {
	case errors.Is(err, errTimedOut):
		s.stats.Outcome = stats.OutcomeTimedOut
		logger.Info("[%s] transfer of %q to %s timed out after %d retransmits",
			s.id, s.stats.Path, s.peer, s.stats.Retransmits)

	case errors.As(err, &abort):
		s.stats.Outcome = stats.OutcomeError
		s.stats.Error = &stats.TransferError{Code: abort.code, Message: abort.message}
		logger.Info("[%s] %v", s.id, abort)

	case errors.As(err, &proto):
		s.stats.Outcome = stats.OutcomeError
		s.stats.Error = &stats.TransferError{Code: proto.code, Message: proto.message}
		logger.Info("[%s] protocol error from %s: %s", s.id, s.peer, proto.message)

	default:
		s.stats.Outcome = stats.OutcomeError
		s.stats.Error = &stats.TransferError{Code: tftp.ErrCodeUndefined, Message: err.Error()}
		logger.Warn("[%s] session failed: %v", s.id, err)
	}
}

// abort sends a best-effort ERROR reply and records the error outcome.
func (s *session) abort(code uint16, message string) {
	s.sendError(code, message)
	s.stats.Outcome = stats.OutcomeError
	s.stats.Error = &stats.TransferError{Code: code, Message: message}
}

func (s *session) sendError(code uint16, message string) {
	pkt := &tftp.Error{Code: code, Message: message}
	if _, err := s.conn.WriteToUDP(pkt.Encode(), s.peer); err != nil {
		logger.Debug("[%s] sending ERROR(%d) to %s: %v", s.id, code, s.peer, err)
		return
	}
	s.stats.PacketsSent++
}

func optionsMap(options []tftp.Option) map[string]string {
	if len(options) == 0 {
		return nil
	}
	m := make(map[string]string, len(options))
	for _, opt := range options {
		m[opt.Name] = opt.Value
	}
	return m
}
