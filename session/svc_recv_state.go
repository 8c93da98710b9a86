package session

import (
	"sync"
	"time"

	"github.com/softstream-link/soupbintcp/message"
)

// SvcRecvState tracks what the server has received from one client
// connection, for computing is_connected on the server side (invariant 6).
// max_recv_interval starts unset and is populated from the hbeatMs field of
// the client's LoginRequest.
type SvcRecvState struct {
	mu sync.Mutex

	maxRecvInterval time.Duration
	haveInterval    bool
	loginSeen       bool
	lastAnyMsgAt    time.Time
	hasAnyMsg       bool
}

func NewSvcRecvState() *SvcRecvState {
	return &SvcRecvState{}
}

// OnRecv stamps the tracker on receipt of a client message. hbeatInterval is
// only consulted when packetType is message.TypeLoginRequest.
func (s *SvcRecvState) OnRecv(packetType byte, hbeatInterval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAnyMsgAt = time.Now()
	s.hasAnyMsg = true
	if packetType == message.TypeLoginRequest {
		s.loginSeen = true
		s.maxRecvInterval = hbeatInterval
		s.haveInterval = true
	}
}

// Alive reports whether a LoginRequest has been seen and the liveness
// window has not elapsed. It does not by itself imply is_connected — the
// caller must also check that LoginAccepted has been sent and EndOfSession
// has not (SvcSendState).
func (s *SvcRecvState) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loginSeen || !s.haveInterval || !s.hasAnyMsg {
		return false
	}
	return time.Since(s.lastAnyMsgAt) < s.maxRecvInterval
}

// SvcSendState tracks what the server has sent on one connection, for the
// other half of invariant 6.
type SvcSendState struct {
	mu sync.Mutex

	loginAccepted bool
	endOfSession  bool
}

func NewSvcSendState() *SvcSendState {
	return &SvcSendState{}
}

// OnSent stamps the tracker on a successful send of LoginAccepted or
// EndOfSession; any other packet type is a no-op here.
func (s *SvcSendState) OnSent(packetType byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch packetType {
	case message.TypeLoginAccepted:
		s.loginAccepted = true
	case message.TypeEndOfSession:
		s.endOfSession = true
	}
}

func (s *SvcSendState) LoginAccepted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginAccepted
}

func (s *SvcSendState) EndOfSessionSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endOfSession
}

// IsServerConnected implements invariant 6: LoginRequest seen, within the
// liveness window, LoginAccepted sent, EndOfSession not sent.
func IsServerConnected(recv *SvcRecvState, send *SvcSendState) bool {
	return recv.Alive() && send.LoginAccepted() && !send.EndOfSessionSent()
}
