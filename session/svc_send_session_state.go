package session

import (
	"sync"

	"github.com/softstream-link/soupbintcp/message"
)

// SvcSendSessionState tracks every frame the server has sent for a session,
// across every connection that has served it, and how many of them were
// sequenced payloads, for replay on a future reconnect (spec §4.4.3 step 6).
type SvcSendSessionState struct {
	mu             sync.Mutex
	sequencedCount int
	log            MessageLog
}

func NewSvcSendSessionState() *SvcSendSessionState {
	return &SvcSendSessionState{}
}

// OnSent appends frameBytes to the store and, if packetType is the
// sequenced-payload tag, increments sequenced_count. This must never be
// called for re-sent (replay) frames — re-sends bypass on_sent entirely to
// preserve invariant 3.
func (s *SvcSendSessionState) OnSent(packetType byte, frameBytes []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Append(packetType, frameBytes)
	if packetType == message.TypeSequenced {
		s.sequencedCount++
	}
}

// SequencedCount is the number of S-tagged frames sent since server start.
func (s *SvcSendSessionState) SequencedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequencedCount
}

// ReplayFrom returns the S-tagged frames needed to bring a reconnecting
// client requesting effectiveNextSeq up to date: every sequenced frame from
// effectiveNextSeq onward, in original order. If effectiveNextSeq is beyond
// the last frame sent (i.e. no replay is needed), it returns nil.
func (s *SvcSendSessionState) ReplayFrom(effectiveNextSeq int) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if effectiveNextSeq < 1 {
		effectiveNextSeq = 1
	}
	skip := effectiveNextSeq - 1
	if skip >= s.sequencedCount {
		return nil
	}
	return s.log.ReplayFrom(skip)
}
