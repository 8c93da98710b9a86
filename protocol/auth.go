package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/softstream-link/soupbintcp/codec"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/message/fields"
)

// CltAuthConfig configures the client side of the legacy Auth variant.
type CltAuthConfig struct {
	Username  fields.UserName
	Password  fields.Password
	SessionID fields.SessionID
	StartSeq  fields.SequenceNumber
	IOTimeout time.Duration
}

// CltAuth is the legacy pre-Auto variant: it drives the same login
// handshake as Auto, but has no heartbeating and no on_recv/on_sent
// liveness hooks. is_connected reflects only whether the handshake itself
// succeeded — there is nothing else to track once logged in.
type CltAuth[SendP message.Payload, RecvP message.Payload] struct {
	cfg       CltAuthConfig
	messenger *codec.CltMessenger[SendP, RecvP]

	mu        sync.Mutex
	connected bool
}

func NewCltAuth[SendP message.Payload, RecvP message.Payload](cfg CltAuthConfig, messenger *codec.CltMessenger[SendP, RecvP]) *CltAuth[SendP, RecvP] {
	return &CltAuth[SendP, RecvP]{cfg: cfg, messenger: messenger}
}

func (*CltAuth[SendP, RecvP]) ConfHeartBeatInterval() time.Duration { return 0 }

func (c *CltAuth[SendP, RecvP]) OnConnect(conn Conn) error {
	login := message.LoginRequest{
		Username:           c.cfg.Username,
		Password:           c.cfg.Password,
		SessionID:          c.cfg.SessionID,
		SequenceNumber:     c.cfg.StartSeq,
		HeartbeatTimeoutMs: fields.NewTimeoutMs(0),
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
	switch reply.(type) {
	case message.LoginAccepted:
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		return nil
	case message.LoginRejected:
		return fmt.Errorf("%w: login rejected", ErrNotConnected)
	default:
		return fmt.Errorf("%w: unexpected reply %T during login", ErrUnexpected, reply)
	}
}

func (*CltAuth[SendP, RecvP]) OnRecv([]byte) {}
func (*CltAuth[SendP, RecvP]) OnSent([]byte) {}
func (*CltAuth[SendP, RecvP]) SendHeartBeat(Conn) error { return nil }

func (c *CltAuth[SendP, RecvP]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SvcAuthConfig configures the server side of the legacy Auth variant.
type SvcAuthConfig struct {
	Username  fields.UserName
	Password  fields.Password
	SessionID fields.SessionID
	IOTimeout time.Duration
}

// SvcAuth is the server-side mirror of CltAuth: validates credentials and
// session id, accepts unconditionally from the client's requested seq (no
// replay), and never updates liveness after the handshake.
type SvcAuth[SendP message.Payload, RecvP message.Payload] struct {
	cfg       SvcAuthConfig
	messenger *codec.SvcMessenger[SendP, RecvP]

	mu        sync.Mutex
	connected bool
	ended     bool
}

func NewSvcAuth[SendP message.Payload, RecvP message.Payload](cfg SvcAuthConfig, messenger *codec.SvcMessenger[SendP, RecvP]) *SvcAuth[SendP, RecvP] {
	return &SvcAuth[SendP, RecvP]{cfg: cfg, messenger: messenger}
}

func (*SvcAuth[SendP, RecvP]) ConfHeartBeatInterval() time.Duration { return 0 }

func (s *SvcAuth[SendP, RecvP]) OnConnect(conn Conn) error {
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

	if login.Username != s.cfg.Username || login.Password != s.cfg.Password {
		s.reject(conn, fields.NotAuthorized)
		return fmt.Errorf("%w: bad credentials", ErrNotConnected)
	}
	// Same all-spaces convention as Auto (§9 Open Question).
	if login.SessionID != s.cfg.SessionID && !login.SessionID.IsCurrent() {
		s.reject(conn, fields.SessionNotAvailable)
		return fmt.Errorf("%w: session id mismatch", ErrNotConnected)
	}

	accepted := message.LoginAccepted{SessionID: s.cfg.SessionID, SequenceNumber: login.SequenceNumber}
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
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *SvcAuth[SendP, RecvP]) reject(conn Conn, reason fields.LoginRejectReason) {
	f, _, err := s.messenger.Serialize(message.LoginRejected{Reason: reason})
	if err != nil {
		return
	}
	_, _ = conn.SendBusyWaitTimeout(f, s.cfg.IOTimeout)
}

func (*SvcAuth[SendP, RecvP]) OnRecv([]byte) {}
func (*SvcAuth[SendP, RecvP]) OnSent([]byte) {}
func (*SvcAuth[SendP, RecvP]) SendHeartBeat(Conn) error { return nil }

func (s *SvcAuth[SendP, RecvP]) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && !s.ended
}

func (s *SvcAuth[SendP, RecvP]) OnDisconnect() (time.Duration, []byte) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	f, _, err := s.messenger.Serialize(message.EndOfSession{})
	if err != nil {
		return s.cfg.IOTimeout, nil
	}
	return s.cfg.IOTimeout, f
}
