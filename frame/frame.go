// Package frame detects SoupBinTCP frame boundaries on a byte buffer.
//
// A frame on the wire is:
//
//	offset  size  field
//	  0      2    packet_length (big-endian u16, counts bytes AFTER this field)
//	  2      1    packet_type (ASCII letter)
//	  3    N-1    payload (packet_length - 1 bytes)
//
// Total frame length on the wire is packet_length + 2. This package only
// inspects a buffer handed to it by the transport — it never reads from a
// socket and never mutates the buffer.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// LengthPrefixSize is the width, in bytes, of the leading packet_length field.
	LengthPrefixSize = 2
	// TypeSize is the width, in bytes, of the packet_type field.
	TypeSize = 1
	// MaxFrameSize is the largest frame this protocol defines, excluding the
	// payload body of a Debug ('+') message, which is unbounded by the
	// framer itself (enforcement of any upper bound there is a transport
	// policy, not the framer's).
	MaxFrameSize = 54
)

// ErrIncomplete is returned by Length when buf does not yet hold a complete
// frame — the caller should wait for more bytes and retry.
var ErrIncomplete = errors.New("frame: incomplete")

// ErrMalformed is returned by Length when buf declares a packet_length of 0,
// which leaves no room for the mandatory type byte. This is a protocol
// violation, not a "try again later" condition.
var ErrMalformed = errors.New("frame: packet_length of 0 has no type byte")

// Length inspects the front of buf and reports how many bytes constitute
// the next complete frame. It returns ErrIncomplete if buf does not yet
// contain enough bytes, or ErrMalformed if the declared packet_length is 0.
// buf is never mutated.
func Length(buf []byte) (int, error) {
	if len(buf) < LengthPrefixSize {
		return 0, ErrIncomplete
	}
	packetLength := binary.BigEndian.Uint16(buf[:LengthPrefixSize])
	if packetLength == 0 {
		return 0, ErrMalformed
	}
	total := LengthPrefixSize + int(packetLength)
	if len(buf) < total {
		return 0, ErrIncomplete
	}
	return total, nil
}

// PeekType returns the packet_type byte of a complete frame at the front of
// buf, without consuming anything. Callers must have already confirmed a
// complete frame is present (e.g. via Length).
func PeekType(buf []byte) (byte, error) {
	if len(buf) < LengthPrefixSize+TypeSize {
		return 0, fmt.Errorf("frame: need %d bytes to peek type, got %d", LengthPrefixSize+TypeSize, len(buf))
	}
	return buf[LengthPrefixSize], nil
}

// Encode builds a complete frame for packetType and body: a 2-byte
// big-endian length prefix, the type byte, then body.
func Encode(packetType byte, body []byte) []byte {
	packetLength := TypeSize + len(body)
	out := make([]byte, LengthPrefixSize+packetLength)
	binary.BigEndian.PutUint16(out[:LengthPrefixSize], uint16(packetLength))
	out[LengthPrefixSize] = packetType
	copy(out[LengthPrefixSize+TypeSize:], body)
	return out
}

// Body returns the payload bytes of a complete frame (everything after the
// type byte). frame must be a complete frame, e.g. one sliced using the
// length returned from Length.
func Body(frame []byte) []byte {
	if len(frame) <= LengthPrefixSize+TypeSize {
		return nil
	}
	return frame[LengthPrefixSize+TypeSize:]
}
