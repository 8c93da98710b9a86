package message

import (
	"fmt"

	"github.com/softstream-link/soupbintcp/message/fields"
)

// CltMsg is the client-originated packet union: every concrete type that may
// travel from client to server. Implementations also report their
// packet_type byte so a Messenger can dispatch without a second type switch.
type CltMsg[P Payload] interface {
	cltMsg()
	Type() byte
}

// LoginRequest opens (or resumes) a session. SequenceNumber of 0 means
// "start at the most recently generated message".
type LoginRequest struct {
	Username           fields.UserName
	Password           fields.Password
	SessionID          fields.SessionID
	SequenceNumber     fields.SequenceNumber
	HeartbeatTimeoutMs fields.TimeoutMs
}

func (LoginRequest) cltMsg()     {}
func (LoginRequest) Type() byte  { return TypeLoginRequest }
func (m LoginRequest) String() string {
	return fmt.Sprintf("LoginRequest{user=%s session=%s seq=%s hbeat_ms=%s}",
		m.Username, m.SessionID, m.SequenceNumber, m.HeartbeatTimeoutMs)
}

// EncodeBody serializes the fixed-width fields of m in wire order.
func (m LoginRequest) EncodeBody() []byte {
	buf := make([]byte, 0, fields.UserNameLen+fields.PasswordLen+fields.SessionIDLen+fields.SequenceNumberLen+fields.TimeoutMsLen)
	buf = append(buf, m.Username[:]...)
	buf = append(buf, m.Password[:]...)
	buf = append(buf, m.SessionID[:]...)
	buf = append(buf, m.SequenceNumber[:]...)
	buf = append(buf, m.HeartbeatTimeoutMs[:]...)
	return buf
}

// DecodeLoginRequest parses a LoginRequest body.
func DecodeLoginRequest(b []byte) (LoginRequest, error) {
	want := fields.UserNameLen + fields.PasswordLen + fields.SessionIDLen + fields.SequenceNumberLen + fields.TimeoutMsLen
	if len(b) != want {
		return LoginRequest{}, fmt.Errorf("message: login request body needs %d bytes, got %d", want, len(b))
	}
	var m LoginRequest
	off := 0
	user, err := fields.DecodeUserName(b[off : off+fields.UserNameLen])
	if err != nil {
		return LoginRequest{}, err
	}
	m.Username = user
	off += fields.UserNameLen
	pass, err := fields.DecodePassword(b[off : off+fields.PasswordLen])
	if err != nil {
		return LoginRequest{}, err
	}
	m.Password = pass
	off += fields.PasswordLen
	sid, err := fields.DecodeSessionID(b[off : off+fields.SessionIDLen])
	if err != nil {
		return LoginRequest{}, err
	}
	m.SessionID = sid
	off += fields.SessionIDLen
	seq, err := fields.DecodeSequenceNumber(b[off : off+fields.SequenceNumberLen])
	if err != nil {
		return LoginRequest{}, err
	}
	m.SequenceNumber = seq
	off += fields.SequenceNumberLen
	hb, err := fields.DecodeTimeoutMs(b[off : off+fields.TimeoutMsLen])
	if err != nil {
		return LoginRequest{}, err
	}
	m.HeartbeatTimeoutMs = hb
	return m, nil
}

// LogoutRequest asks the server to end the session cleanly.
type LogoutRequest struct{}

func (LogoutRequest) cltMsg()        {}
func (LogoutRequest) Type() byte     { return TypeLogoutRequest }
func (LogoutRequest) String() string { return "LogoutRequest{}" }
func (LogoutRequest) EncodeBody() []byte { return nil }

func DecodeLogoutRequest(b []byte) (LogoutRequest, error) {
	if len(b) != 0 {
		return LogoutRequest{}, fmt.Errorf("message: logout request body must be empty, got %d bytes", len(b))
	}
	return LogoutRequest{}, nil
}

// CltHeartbeat is the client's liveness ping.
type CltHeartbeat struct{}

func (CltHeartbeat) cltMsg()        {}
func (CltHeartbeat) Type() byte     { return TypeCltHeartbeat }
func (CltHeartbeat) String() string { return "CltHeartbeat{}" }
func (CltHeartbeat) EncodeBody() []byte { return nil }

func DecodeCltHeartbeat(b []byte) (CltHeartbeat, error) {
	if len(b) != 0 {
		return CltHeartbeat{}, fmt.Errorf("message: client heartbeat body must be empty, got %d bytes", len(b))
	}
	return CltHeartbeat{}, nil
}
