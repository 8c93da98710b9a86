package protocol

import (
	"time"

	"github.com/softstream-link/soupbintcp/frame"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/session"
)

// DefaultMaxRecvInterval is used when a caller does not otherwise specify
// a liveness window (§4.4.2).
const DefaultMaxRecvInterval = 2500 * time.Millisecond

// CltIsConnected adds liveness tracking without driving login: on_connect
// still does nothing, but once LoginRequest/LoginAccepted have passed
// through on_recv/on_sent the trackers reflect a connected session.
type CltIsConnected struct {
	recv *session.CltRecvState
}

func NewCltIsConnected(maxRecvInterval time.Duration) *CltIsConnected {
	if maxRecvInterval <= 0 {
		maxRecvInterval = DefaultMaxRecvInterval
	}
	return &CltIsConnected{recv: session.NewCltRecvState(maxRecvInterval)}
}

func (*CltIsConnected) ConfHeartBeatInterval() time.Duration { return 0 }
func (*CltIsConnected) OnConnect(Conn) error                 { return nil }
func (*CltIsConnected) SendHeartBeat(Conn) error             { return nil }

func (c *CltIsConnected) OnRecv(f []byte) {
	if ty, err := frame.PeekType(f); err == nil {
		c.recv.OnRecv(ty)
	}
}

func (c *CltIsConnected) OnSent([]byte) {}

func (c *CltIsConnected) IsConnected() bool { return c.recv.IsConnected() }

// SvcIsConnected is the server-side mirror.
type SvcIsConnected struct {
	recv *session.SvcRecvState
	send *session.SvcSendState
}

func NewSvcIsConnected() *SvcIsConnected {
	return &SvcIsConnected{recv: session.NewSvcRecvState(), send: session.NewSvcSendState()}
}

func (*SvcIsConnected) ConfHeartBeatInterval() time.Duration { return 0 }
func (*SvcIsConnected) OnConnect(Conn) error                 { return nil }
func (*SvcIsConnected) SendHeartBeat(Conn) error             { return nil }

func (s *SvcIsConnected) OnRecv(f []byte) {
	ty, err := frame.PeekType(f)
	if err != nil {
		return
	}
	hbeat := DefaultMaxRecvInterval
	if ty == message.TypeLoginRequest {
		if login, err := message.DecodeLoginRequest(frame.Body(f)); err == nil {
			if hbeatMs, err := login.HeartbeatTimeoutMs.Uint16(); err == nil {
				hbeat = time.Duration(hbeatMs) * time.Millisecond
			}
		}
	}
	s.recv.OnRecv(ty, hbeat)
}

func (s *SvcIsConnected) OnSent(f []byte) {
	if ty, err := frame.PeekType(f); err == nil {
		s.send.OnSent(ty)
	}
}

func (s *SvcIsConnected) IsConnected() bool {
	return session.IsServerConnected(s.recv, s.send)
}

func (s *SvcIsConnected) OnDisconnect() (time.Duration, []byte) { return 0, nil }
