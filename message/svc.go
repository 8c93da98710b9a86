package message

import (
	"fmt"

	"github.com/softstream-link/soupbintcp/message/fields"
)

// SvcMsg is the server-originated packet union.
type SvcMsg[P Payload] interface {
	svcMsg()
	Type() byte
}

// LoginAccepted confirms a session and reports the sequence number the
// server will resume sending from.
type LoginAccepted struct {
	SessionID      fields.SessionID
	SequenceNumber fields.SequenceNumber
}

func (LoginAccepted) svcMsg()    {}
func (LoginAccepted) Type() byte { return TypeLoginAccepted }
func (m LoginAccepted) String() string {
	return fmt.Sprintf("LoginAccepted{session=%s seq=%s}", m.SessionID, m.SequenceNumber)
}

func (m LoginAccepted) EncodeBody() []byte {
	buf := make([]byte, 0, fields.SessionIDLen+fields.SequenceNumberLen)
	buf = append(buf, m.SessionID[:]...)
	buf = append(buf, m.SequenceNumber[:]...)
	return buf
}

func DecodeLoginAccepted(b []byte) (LoginAccepted, error) {
	want := fields.SessionIDLen + fields.SequenceNumberLen
	if len(b) != want {
		return LoginAccepted{}, fmt.Errorf("message: login accepted body needs %d bytes, got %d", want, len(b))
	}
	sid, err := fields.DecodeSessionID(b[:fields.SessionIDLen])
	if err != nil {
		return LoginAccepted{}, err
	}
	seq, err := fields.DecodeSequenceNumber(b[fields.SessionIDLen:])
	if err != nil {
		return LoginAccepted{}, err
	}
	return LoginAccepted{SessionID: sid, SequenceNumber: seq}, nil
}

// LoginRejected refuses a session, with a reason.
type LoginRejected struct {
	Reason fields.LoginRejectReason
}

func (LoginRejected) svcMsg()    {}
func (LoginRejected) Type() byte { return TypeLoginRejected }
func (m LoginRejected) String() string {
	return fmt.Sprintf("LoginRejected{reason=%s}", m.Reason)
}

func (m LoginRejected) EncodeBody() []byte { return []byte{m.Reason.Byte()} }

func DecodeLoginRejected(b []byte) (LoginRejected, error) {
	if len(b) != fields.LoginRejectReasonLen {
		return LoginRejected{}, fmt.Errorf("message: login rejected body needs %d byte, got %d", fields.LoginRejectReasonLen, len(b))
	}
	reason, err := fields.DecodeLoginRejectReason(b)
	if err != nil {
		return LoginRejected{}, err
	}
	return LoginRejected{Reason: reason}, nil
}

// SvcHeartbeat is the server's liveness ping.
type SvcHeartbeat struct{}

func (SvcHeartbeat) svcMsg()        {}
func (SvcHeartbeat) Type() byte     { return TypeSvcHeartbeat }
func (SvcHeartbeat) String() string { return "SvcHeartbeat{}" }
func (SvcHeartbeat) EncodeBody() []byte { return nil }

func DecodeSvcHeartbeat(b []byte) (SvcHeartbeat, error) {
	if len(b) != 0 {
		return SvcHeartbeat{}, fmt.Errorf("message: server heartbeat body must be empty, got %d bytes", len(b))
	}
	return SvcHeartbeat{}, nil
}

// EndOfSession closes a session cleanly; no more frames follow on this
// connection.
type EndOfSession struct{}

func (EndOfSession) svcMsg()        {}
func (EndOfSession) Type() byte     { return TypeEndOfSession }
func (EndOfSession) String() string { return "EndOfSession{}" }
func (EndOfSession) EncodeBody() []byte { return nil }

func DecodeEndOfSession(b []byte) (EndOfSession, error) {
	if len(b) != 0 {
		return EndOfSession{}, fmt.Errorf("message: end of session body must be empty, got %d bytes", len(b))
	}
	return EndOfSession{}, nil
}
