// Package session holds the mutable session-state trackers shared between a
// protocol variant and its transport callbacks: pure functions of message
// history plus wall clock, each guarded by a short-critical-section mutex
// (see spec §5 — a blocking mutex is explicitly acceptable here; critical
// sections never perform I/O).
package session

import (
	"sync"
	"time"

	"github.com/softstream-link/soupbintcp/message"
)

// CltRecvState tracks what the client has received, for computing
// is_connected on the client side (invariant 5).
type CltRecvState struct {
	mu sync.Mutex

	maxRecvInterval time.Duration
	loginAccepted   bool
	loginRejected   bool
	endOfSession    bool
	lastAnyMsgAt    time.Time
	hasAnyMsg       bool
}

// NewCltRecvState builds a tracker with the given liveness window.
func NewCltRecvState(maxRecvInterval time.Duration) *CltRecvState {
	return &CltRecvState{maxRecvInterval: maxRecvInterval}
}

// OnRecv stamps the tracker on receipt of a server message, identified only
// by its packet_type byte.
func (s *CltRecvState) OnRecv(packetType byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAnyMsgAt = time.Now()
	s.hasAnyMsg = true
	switch packetType {
	case message.TypeLoginAccepted:
		s.loginAccepted = true
	case message.TypeLoginRejected:
		s.loginRejected = true
	case message.TypeEndOfSession:
		s.endOfSession = true
	}
}

// IsConnected implements invariant 5: LoginAccepted seen, no LoginRejected,
// no EndOfSession, and the liveness window has not elapsed.
func (s *CltRecvState) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loginAccepted || s.loginRejected || s.endOfSession || !s.hasAnyMsg {
		return false
	}
	return time.Since(s.lastAnyMsgAt) < s.maxRecvInterval
}

// SetMaxRecvInterval updates the liveness window, e.g. once the server's
// advertised heartbeat interval becomes known.
func (s *CltRecvState) SetMaxRecvInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRecvInterval = d
}
