// Package session implements the peer session state machine: the
// version/verack handshake, ping/pong keep-alive, and a command-keyed
// handler dispatch loop over a buffered, multi-frame-per-read framer.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/keato/chainpeer/internal/metrics"
	"github.com/keato/chainpeer/internal/wire"
	"github.com/rs/zerolog"
)

// State is one of the four session lifecycle states.
type State int

const (
	Connecting State = iota
	VersionSent
	Handshaked
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case VersionSent:
		return "version_sent"
	case Handshaked:
		return "handshaked"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrDisconnected is raised on transport EOF or any other read error that
// ends the session loop.
var ErrDisconnected = errors.New("session: disconnected")

// Handler processes one decoded message. Returning an error does not
// close the session — handlers are expected to log their own failures;
// only transport errors and UnexpectedEof are fatal.
type Handler func(s *Session, msg interface{}) error

// Callbacks lets a caller plug into the session lifecycle without
// session depending on the sync/validator packages.
type Callbacks struct {
	// OnHandshake fires exactly once, when the session transitions to
	// Handshaked.
	OnHandshake func(s *Session)
	// Handlers is keyed by wire command string; a missing entry is not
	// an error, the message is simply not dispatched further.
	Handlers map[string]Handler
}

// Session owns one peer connection: its socket, receive buffer, and
// state. One goroutine should drive Run for the lifetime of the
// connection — nothing here is safe for concurrent use from multiple
// goroutines.
type Session struct {
	conn    net.Conn
	params  wire.Params
	framer  *wire.Framer
	state   State
	cb      Callbacks
	log     zerolog.Logger
	nonce   uint64
	userAgent string
}

// New wraps conn in a Session for the given network, ready for Run.
func New(conn net.Conn, params wire.Params, cb Callbacks, log zerolog.Logger) *Session {
	return &Session{
		conn:      conn,
		params:    params,
		framer:    wire.NewFramer(params.Magic),
		state:     Connecting,
		cb:        cb,
		log:       log,
		userAgent: "/chainpeer:0.1.0/",
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Conn exposes the underlying connection so handlers can issue their own
// writes (e.g. getdata in response to inv).
func (s *Session) Conn() net.Conn { return s.conn }

// Send encodes and writes msg as a single framed write.
func (s *Session) Send(command string, msg interface{}) error {
	payload := wire.Encode(msg)
	packet, err := wire.CreateMessagePacket(s.params.Magic, command, payload)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(packet)
	return err
}

// Run sends the opening version message and then loops reading frames
// until a fatal error or EOF ends the session.
func (s *Session) Run() error {
	if err := s.sendVersion(); err != nil {
		return err
	}
	s.state = VersionSent

	buf := make([]byte, 64*1024)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.framer.Feed(buf[:n])
			if err := s.drainFrames(); err != nil {
				s.close()
				return err
			}
		}
		if err != nil {
			s.close()
			if errors.Is(err, io.EOF) {
				return ErrDisconnected
			}
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}
}

// close marks the session Closed, counting a handshake failure if the
// connection never reached Handshaked before ending.
func (s *Session) close() {
	if s.state != Handshaked {
		metrics.PeerHandshakeFailures.Inc()
	}
	s.state = Closed
}

// drainFrames parses and dispatches every complete frame currently
// buffered, the "parse while another frame fits" loop.
func (s *Session) drainFrames() error {
	for {
		frame, ok, err := s.framer.Next()
		if err != nil {
			switch {
			case errors.Is(err, wire.ErrInvalidChecksum):
				metrics.FramesDropped.WithLabelValues("invalid_checksum").Inc()
				s.log.Debug().Str("command", frame.Command).Msg("invalid checksum, dropping frame")
				continue
			case errors.Is(err, wire.ErrOversizedPayload):
				return err
			default:
				return err
			}
		}
		if !ok {
			return nil
		}
		if dispatchErr := s.dispatch(frame); dispatchErr != nil {
			if errors.Is(dispatchErr, wire.ErrUnexpectedEOF) {
				return dispatchErr
			}
			// Any other decode failure (unknown command) is swallowed.
			s.log.Debug().Str("command", frame.Command).Err(dispatchErr).Msg("dropping frame")
		}
	}
}

func (s *Session) dispatch(frame wire.Frame) error {
	msg, err := wire.Decode(frame.Command, frame.Payload)
	if err != nil {
		if errors.Is(err, wire.ErrUnknownCommand) {
			metrics.FramesDropped.WithLabelValues("unknown_command").Inc()
			s.log.Debug().Str("command", frame.Command).Msg("unknown command, dropping frame")
			return nil
		}
		return err
	}

	switch m := msg.(type) {
	case wire.Version:
		if err := s.Send(wire.CmdVerAck, wire.VerAck{}); err != nil {
			return nil
		}

	case wire.VerAck:
		if s.state != Handshaked {
			s.state = Handshaked
			if s.cb.OnHandshake != nil {
				s.cb.OnHandshake(s)
			}
		}

	case wire.Ping:
		s.Send(wire.CmdPong, wire.Pong{Nonce: m.Nonce})
	}

	if h, ok := s.cb.Handlers[frame.Command]; ok {
		if err := h(s, msg); err != nil {
			s.log.Debug().Str("command", frame.Command).Err(err).Msg("handler error")
		}
	}
	return nil
}

func (s *Session) sendVersion() error {
	var nonceBytes [8]byte
	rand.Read(nonceBytes[:])
	s.nonce = binary.LittleEndian.Uint64(nonceBytes[:])

	addr := wire.NetAddr{Services: wire.ServiceNodeNetwork}
	v := wire.Version{
		Version:   wire.ProtocolVersion,
		Services:  wire.ServiceNodeNetwork,
		Timestamp: time.Now().Unix(),
		AddrRecv:  addr,
		AddrFrom:  addr,
		Nonce:     s.nonce,
		UserAgent: s.userAgent,
	}
	return s.Send(wire.CmdVersion, v)
}
