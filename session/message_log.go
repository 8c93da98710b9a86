package session

import "github.com/softstream-link/soupbintcp/message"

// logEntry is one stored frame: the exact bytes transmitted (invariant 4),
// tagged with its packet type for the replay filter.
type logEntry struct {
	packetType byte
	frame      []byte
}

// MessageLog is an append-only record of every frame the server has sent for
// a session, in send order. It holds no lock of its own — callers
// (SvcSendSessionState) are expected to serialize access, since the log and
// its sequenced count must be updated together (invariant 3).
type MessageLog struct {
	entries []logEntry
}

// Append records frameBytes (copied, so later mutation by the caller cannot
// corrupt the store) under packetType.
func (l *MessageLog) Append(packetType byte, frameBytes []byte) {
	cp := make([]byte, len(frameBytes))
	copy(cp, frameBytes)
	l.entries = append(l.entries, logEntry{packetType: packetType, frame: cp})
}

// ReplayFrom returns, in order, the S-tagged frames after skipping the first
// skip of them. skip is effective_next_seq-1 from the caller's perspective;
// a skip of 0 returns every sequenced frame ever sent.
func (l *MessageLog) ReplayFrom(skip int) [][]byte {
	var out [][]byte
	seen := 0
	for _, e := range l.entries {
		if e.packetType != message.TypeSequenced {
			continue
		}
		if seen < skip {
			seen++
			continue
		}
		out = append(out, e.frame)
	}
	return out
}
