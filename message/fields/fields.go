// Package fields implements the fixed-width ASCII field codec used by every
// SoupBinTCP packet: session ids, sequence numbers, timeouts, credentials,
// and the login reject reason code.
//
// Text fields (session id, user name, password) are left-justified and
// padded with trailing spaces. Numeric-in-ASCII fields (sequence number,
// timeout ms) are right-justified and padded with leading spaces, per the
// wire convention: the last digit sits at the end of the field, not the
// first one at the start.
package fields

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire widths, in bytes, per the SoupBinTCP 4.0 packet catalog.
const (
	SessionIDLen         = 10
	SequenceNumberLen    = 20
	TimeoutMsLen         = 5
	UserNameLen          = 6
	PasswordLen          = 10
	LoginRejectReasonLen = 1
)

// packASCII right-pads s with spaces to width bytes. It fails if s does not
// fit.
func packASCII(s string, width int) ([]byte, error) {
	if len(s) > width {
		return nil, fmt.Errorf("fields: value %q exceeds width %d", s, width)
	}
	buf := make([]byte, width)
	copy(buf, s)
	for i := len(s); i < width; i++ {
		buf[i] = ' '
	}
	return buf, nil
}

// unpackASCII trims trailing spaces from a fixed-width ASCII text field.
func unpackASCII(b []byte) string {
	return strings.TrimRight(string(b), " ")
}

// packASCIINumeric right-justifies s with leading-space padding to width
// bytes. It fails if s does not fit.
func packASCIINumeric(s string, width int) ([]byte, error) {
	if len(s) > width {
		return nil, fmt.Errorf("fields: value %q exceeds width %d", s, width)
	}
	buf := make([]byte, width)
	pad := width - len(s)
	for i := 0; i < pad; i++ {
		buf[i] = ' '
	}
	copy(buf[pad:], s)
	return buf, nil
}

// unpackASCIINumeric trims leading spaces from a fixed-width numeric-ASCII
// field.
func unpackASCIINumeric(b []byte) string {
	return strings.TrimLeft(string(b), " ")
}

// SessionID is the 10-byte opaque session name. The all-spaces value means
// "the current active session" (see CurrentSession).
type SessionID [SessionIDLen]byte

// CurrentSession is the all-spaces sentinel meaning "current active session".
var CurrentSession SessionID = [SessionIDLen]byte{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// NewSessionID builds a SessionID from a (possibly shorter) string, space
// padded to width.
func NewSessionID(s string) (SessionID, error) {
	b, err := packASCII(s, SessionIDLen)
	if err != nil {
		return SessionID{}, err
	}
	var id SessionID
	copy(id[:], b)
	return id, nil
}

// DecodeSessionID reads a SessionID from exactly SessionIDLen bytes.
func DecodeSessionID(b []byte) (SessionID, error) {
	if len(b) != SessionIDLen {
		return SessionID{}, fmt.Errorf("fields: session id needs %d bytes, got %d", SessionIDLen, len(b))
	}
	var id SessionID
	copy(id[:], b)
	return id, nil
}

func (s SessionID) String() string { return unpackASCII(s[:]) }

// IsCurrent reports whether s is the all-spaces "current session" sentinel.
func (s SessionID) IsCurrent() bool { return s == CurrentSession }

// SequenceNumber is the 20-byte decimal-ASCII sequence number. 0 means
// "start from the most recently generated message".
type SequenceNumber [SequenceNumberLen]byte

// ZeroSequenceNumber is the sentinel meaning "start at most-recent".
var ZeroSequenceNumber SequenceNumber

func init() {
	b, _ := packASCIINumeric("0", SequenceNumberLen)
	copy(ZeroSequenceNumber[:], b)
}

// NewSequenceNumber encodes v as right-justified decimal ASCII, leading-space
// padded.
func NewSequenceNumber(v uint64) SequenceNumber {
	b, err := packASCIINumeric(strconv.FormatUint(v, 10), SequenceNumberLen)
	if err != nil {
		// v is a uint64; its decimal form is at most 20 digits, which is
		// exactly the field width, so this can never fail.
		panic(err)
	}
	var n SequenceNumber
	copy(n[:], b)
	return n
}

// DecodeSequenceNumber reads a SequenceNumber from exactly SequenceNumberLen
// bytes.
func DecodeSequenceNumber(b []byte) (SequenceNumber, error) {
	if len(b) != SequenceNumberLen {
		return SequenceNumber{}, fmt.Errorf("fields: sequence number needs %d bytes, got %d", SequenceNumberLen, len(b))
	}
	var n SequenceNumber
	copy(n[:], b)
	return n, nil
}

// Uint64 parses the decimal ASCII value. An empty (all-spaces) field is 0.
func (n SequenceNumber) Uint64() (uint64, error) {
	s := unpackASCIINumeric(n[:])
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("fields: invalid sequence number %q: %w", s, err)
	}
	return v, nil
}

func (n SequenceNumber) String() string { return unpackASCIINumeric(n[:]) }

// TimeoutMs is the 5-byte decimal-ASCII heartbeat interval, in milliseconds.
type TimeoutMs [TimeoutMsLen]byte

// NewTimeoutMs encodes v milliseconds as right-justified decimal ASCII,
// leading-space padded.
func NewTimeoutMs(v uint16) TimeoutMs {
	b, err := packASCIINumeric(strconv.FormatUint(uint64(v), 10), TimeoutMsLen)
	if err != nil {
		// a uint16's decimal form is at most 5 digits, the field width.
		panic(err)
	}
	var t TimeoutMs
	copy(t[:], b)
	return t
}

// DecodeTimeoutMs reads a TimeoutMs from exactly TimeoutMsLen bytes.
func DecodeTimeoutMs(b []byte) (TimeoutMs, error) {
	if len(b) != TimeoutMsLen {
		return TimeoutMs{}, fmt.Errorf("fields: timeout ms needs %d bytes, got %d", TimeoutMsLen, len(b))
	}
	var t TimeoutMs
	copy(t[:], b)
	return t, nil
}

// Uint16 parses the decimal ASCII value.
func (t TimeoutMs) Uint16() (uint16, error) {
	s := unpackASCIINumeric(t[:])
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("fields: invalid timeout ms %q: %w", s, err)
	}
	return uint16(v), nil
}

func (t TimeoutMs) String() string { return unpackASCIINumeric(t[:]) }

// UserName is the 6-byte ASCII login user name.
type UserName [UserNameLen]byte

func NewUserName(s string) (UserName, error) {
	b, err := packASCII(s, UserNameLen)
	if err != nil {
		return UserName{}, err
	}
	var u UserName
	copy(u[:], b)
	return u, nil
}

func DecodeUserName(b []byte) (UserName, error) {
	if len(b) != UserNameLen {
		return UserName{}, fmt.Errorf("fields: user name needs %d bytes, got %d", UserNameLen, len(b))
	}
	var u UserName
	copy(u[:], b)
	return u, nil
}

func (u UserName) String() string { return unpackASCII(u[:]) }

// Password is the 10-byte ASCII login password.
type Password [PasswordLen]byte

func NewPassword(s string) (Password, error) {
	b, err := packASCII(s, PasswordLen)
	if err != nil {
		return Password{}, err
	}
	var p Password
	copy(p[:], b)
	return p, nil
}

func DecodePassword(b []byte) (Password, error) {
	if len(b) != PasswordLen {
		return Password{}, fmt.Errorf("fields: password needs %d bytes, got %d", PasswordLen, len(b))
	}
	var p Password
	copy(p[:], b)
	return p, nil
}

func (p Password) String() string { return unpackASCII(p[:]) }

// LoginRejectReason is the single-byte reject reason code.
type LoginRejectReason byte

const (
	NotAuthorized       LoginRejectReason = 'A'
	SessionNotAvailable LoginRejectReason = 'S'
)

func DecodeLoginRejectReason(b []byte) (LoginRejectReason, error) {
	if len(b) != LoginRejectReasonLen {
		return 0, fmt.Errorf("fields: login reject reason needs %d byte, got %d", LoginRejectReasonLen, len(b))
	}
	return LoginRejectReason(b[0]), nil
}

func (r LoginRejectReason) Byte() byte { return byte(r) }

func (r LoginRejectReason) IsNotAuthorized() bool { return r == NotAuthorized }

func (r LoginRejectReason) IsSessionNotAvailable() bool { return r == SessionNotAvailable }

func (r LoginRejectReason) String() string {
	switch r {
	case NotAuthorized:
		return "NOT_AUTHORIZED"
	case SessionNotAvailable:
		return "SESSION_NOT_AVAILABLE"
	default:
		return fmt.Sprintf("UNKNOWN(%c)", byte(r))
	}
}
