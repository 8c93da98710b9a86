package protocol

import (
	"fmt"
	"time"

	"github.com/softstream-link/soupbintcp/codec"
	"github.com/softstream-link/soupbintcp/frame"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/message/fields"
	"github.com/softstream-link/soupbintcp/session"
)

// heartbeatDivisor is how much headroom the sender leaves below the
// advertised maximum interval: sending at 2.5x the advertised max leaves
// room for jitter before the peer's liveness timer fires (§4.4.3).
const heartbeatDivisor = 2.5

// CltAutoConfig configures the client side of the Auto protocol variant.
type CltAutoConfig struct {
	Username             fields.UserName
	Password             fields.Password
	SessionID            fields.SessionID
	StartSeq             fields.SequenceNumber
	MaxHbeatSendInterval time.Duration
	MaxRecvInterval      time.Duration
	IOTimeout            time.Duration
}

// CltAuto is the full-automation client variant: it drives the login
// handshake, advertises and sends heartbeats, and tracks liveness.
type CltAuto[SendP message.Payload, RecvP message.Payload] struct {
	cfg       CltAutoConfig
	messenger *codec.CltMessenger[SendP, RecvP]
	recv      *session.CltRecvState
}

func NewCltAuto[SendP message.Payload, RecvP message.Payload](cfg CltAutoConfig, messenger *codec.CltMessenger[SendP, RecvP]) *CltAuto[SendP, RecvP] {
	maxRecv := cfg.MaxRecvInterval
	if maxRecv <= 0 {
		maxRecv = DefaultMaxRecvInterval
	}
	return &CltAuto[SendP, RecvP]{cfg: cfg, messenger: messenger, recv: session.NewCltRecvState(maxRecv)}
}

func (c *CltAuto[SendP, RecvP]) ConfHeartBeatInterval() time.Duration {
	if c.cfg.MaxHbeatSendInterval <= 0 {
		return 0
	}
	return time.Duration(float64(c.cfg.MaxHbeatSendInterval) / heartbeatDivisor)
}

// OnConnect sends a LoginRequest and waits for LoginAccepted, both bounded
// by IOTimeout. Any other outcome fails the handshake.
func (c *CltAuto[SendP, RecvP]) OnConnect(conn Conn) error {
	hbeatMs := uint16(c.cfg.MaxHbeatSendInterval / time.Millisecond)
	login := message.LoginRequest{
		Username:           c.cfg.Username,
		Password:           c.cfg.Password,
		SessionID:          c.cfg.SessionID,
		SequenceNumber:     c.cfg.StartSeq,
		HeartbeatTimeoutMs: fields.NewTimeoutMs(hbeatMs),
	}
	f, _, err := c.messenger.Serialize(login)
	if err != nil {
		return err
	}
	status, err := conn.SendBusyWaitTimeout(f, c.cfg.IOTimeout)
	if err != nil {
		return err
	}
	if status == WouldBlock {
		return fmt.Errorf("%w: login request did not send within %s", ErrTimeout, c.cfg.IOTimeout)
	}
	c.OnSent(f)

	replyFrame, status, err := conn.RecvBusyWaitTimeout(c.cfg.IOTimeout)
	if err != nil {
		return err
	}
	if status == WouldBlock {
		return fmt.Errorf("%w: no login reply within %s", ErrTimeout, c.cfg.IOTimeout)
	}
	if replyFrame == nil {
		return fmt.Errorf("%w: connection closed awaiting login reply", ErrNotConnected)
	}
	reply, err := c.messenger.Deserialize(replyFrame)
	if err != nil {
		return err
	}
	c.OnRecv(replyFrame)
	switch reply.(type) {
	case message.LoginAccepted:
		return nil
	case message.LoginRejected:
		return fmt.Errorf("%w: login rejected", ErrNotConnected)
	default:
		return fmt.Errorf("%w: unexpected reply %T during login", ErrUnexpected, reply)
	}
}

func (c *CltAuto[SendP, RecvP]) OnRecv(f []byte) {
	if ty, err := frame.PeekType(f); err == nil {
		c.recv.OnRecv(ty)
	}
}

func (c *CltAuto[SendP, RecvP]) OnSent([]byte) {}

func (c *CltAuto[SendP, RecvP]) SendHeartBeat(conn Conn) error {
	f, _, err := c.messenger.Serialize(message.CltHeartbeat{})
	if err != nil {
		return err
	}
	status, err := conn.Send(f)
	if err != nil {
		return err
	}
	if status == Completed {
		c.OnSent(f)
	}
	return nil
}

func (c *CltAuto[SendP, RecvP]) IsConnected() bool { return c.recv.IsConnected() }

// SvcAutoConfig configures the server side of the Auto protocol variant.
type SvcAutoConfig struct {
	Username             fields.UserName
	Password             fields.Password
	SessionID            fields.SessionID
	MaxHbeatSendInterval time.Duration
	IOTimeout            time.Duration
}

// SvcAuto is the full-automation server variant: it validates login,
// computes the replay starting point, re-sends any missed sequenced
// payloads, and drives heartbeats and liveness for one connection.
//
// sessionState is shared across every connection that ever serves this
// session name — a reconnecting client replays against the same store a
// prior connection appended to.
type SvcAuto[SendP message.Payload, RecvP message.Payload] struct {
	cfg          SvcAutoConfig
	messenger    *codec.SvcMessenger[SendP, RecvP]
	sessionState *session.SvcSendSessionState
	recv         *session.SvcRecvState
	send         *session.SvcSendState
}

func NewSvcAuto[SendP message.Payload, RecvP message.Payload](cfg SvcAutoConfig, messenger *codec.SvcMessenger[SendP, RecvP], sessionState *session.SvcSendSessionState) *SvcAuto[SendP, RecvP] {
	return &SvcAuto[SendP, RecvP]{
		cfg:          cfg,
		messenger:    messenger,
		sessionState: sessionState,
		recv:         session.NewSvcRecvState(),
		send:         session.NewSvcSendState(),
	}
}

func (s *SvcAuto[SendP, RecvP]) ConfHeartBeatInterval() time.Duration {
	if s.cfg.MaxHbeatSendInterval <= 0 {
		return 0
	}
	return time.Duration(float64(s.cfg.MaxHbeatSendInterval) / heartbeatDivisor)
}

// OnConnect awaits LoginRequest, validates credentials and session id,
// accepts, and replays any sequenced payloads the client missed.
func (s *SvcAuto[SendP, RecvP]) OnConnect(conn Conn) error {
	reqFrame, status, err := conn.RecvBusyWaitTimeout(s.cfg.IOTimeout)
	if err != nil {
		return err
	}
	if status == WouldBlock {
		return fmt.Errorf("%w: no login request within %s", ErrTimeout, s.cfg.IOTimeout)
	}
	if reqFrame == nil {
		return fmt.Errorf("%w: connection closed awaiting login request", ErrNotConnected)
	}
	msg, err := s.messenger.Deserialize(reqFrame)
	if err != nil {
		return err
	}
	login, ok := msg.(message.LoginRequest)
	if !ok {
		return fmt.Errorf("%w: expected login request, got %T", ErrUnexpected, msg)
	}

	hbeatMs, err := login.HeartbeatTimeoutMs.Uint16()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	s.recv.OnRecv(message.TypeLoginRequest, time.Duration(hbeatMs)*time.Millisecond)

	if login.Username != s.cfg.Username || login.Password != s.cfg.Password {
		s.reject(conn, fields.NotAuthorized)
		return fmt.Errorf("%w: bad credentials", ErrNotConnected)
	}
	// All-spaces session_id means "current session" (§9 Open Question:
	// Auto follows Auth's convention here, not the older exact-match rule).
	if login.SessionID != s.cfg.SessionID && !login.SessionID.IsCurrent() {
		s.reject(conn, fields.SessionNotAvailable)
		return fmt.Errorf("%w: session id mismatch", ErrNotConnected)
	}

	srvNext := s.sessionState.SequencedCount() + 1
	startSeq, err := login.SequenceNumber.Uint64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	effectiveNextSeq := srvNext
	if startSeq != 0 {
		effectiveNextSeq = int(startSeq)
	}

	accepted := message.LoginAccepted{
		SessionID:      s.cfg.SessionID,
		SequenceNumber: fields.NewSequenceNumber(uint64(effectiveNextSeq)),
	}
	acceptFrame, _, err := s.messenger.Serialize(accepted)
	if err != nil {
		return err
	}
	status, err = conn.SendBusyWaitTimeout(acceptFrame, s.cfg.IOTimeout)
	if err != nil {
		return err
	}
	if status == WouldBlock {
		return fmt.Errorf("%w: login accepted did not send within %s", ErrTimeout, s.cfg.IOTimeout)
	}
	s.OnSent(acceptFrame)

	for _, replayFrame := range s.sessionState.ReplayFrom(effectiveNextSeq) {
		status, err := conn.ReSendBusyWaitTimeout(replayFrame, s.cfg.IOTimeout)
		if err != nil {
			return err
		}
		if status == WouldBlock {
			return fmt.Errorf("%w: replay frame did not send within %s", ErrTimeout, s.cfg.IOTimeout)
		}
	}
	return nil
}

func (s *SvcAuto[SendP, RecvP]) reject(conn Conn, reason fields.LoginRejectReason) {
	f, _, err := s.messenger.Serialize(message.LoginRejected{Reason: reason})
	if err != nil {
		return
	}
	_, _ = conn.SendBusyWaitTimeout(f, s.cfg.IOTimeout)
}

func (s *SvcAuto[SendP, RecvP]) OnRecv(f []byte) {
	ty, err := frame.PeekType(f)
	if err != nil {
		return
	}
	s.recv.OnRecv(ty, 0)
}

// OnSent stamps both the connection-local send tracker (login_accepted,
// end_of_session) and the session-wide store (every message sent,
// sequenced_count incremented for S-tagged frames).
func (s *SvcAuto[SendP, RecvP]) OnSent(f []byte) {
	ty, err := frame.PeekType(f)
	if err != nil {
		return
	}
	s.send.OnSent(ty)
	s.sessionState.OnSent(ty, f)
}

func (s *SvcAuto[SendP, RecvP]) SendHeartBeat(conn Conn) error {
	f, _, err := s.messenger.Serialize(message.SvcHeartbeat{})
	if err != nil {
		return err
	}
	status, err := conn.Send(f)
	if err != nil {
		return err
	}
	if status == Completed {
		s.OnSent(f)
	}
	return nil
}

func (s *SvcAuto[SendP, RecvP]) IsConnected() bool {
	return session.IsServerConnected(s.recv, s.send)
}

// OnDisconnect returns the farewell EndOfSession frame and the deadline the
// transport should use to best-effort deliver it before closing the socket.
func (s *SvcAuto[SendP, RecvP]) OnDisconnect() (time.Duration, []byte) {
	f, _, err := s.messenger.Serialize(message.EndOfSession{})
	if err != nil {
		return s.cfg.IOTimeout, nil
	}
	return s.cfg.IOTimeout, f
}
