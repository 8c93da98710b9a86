// Package codec implements the Messenger: polymorphic serialize/deserialize
// of the SoupBinTCP message union over a frame. There are two mirrored
// shapes, one per direction, each parameterized by the payload type it
// sends and the payload type it expects to receive.
package codec

import (
	"errors"
	"fmt"

	"github.com/softstream-link/soupbintcp/frame"
	"github.com/softstream-link/soupbintcp/message"
)

// ErrEncode is returned when an outbound message cannot be serialized,
// typically because its body exceeds the configured maximum.
var ErrEncode = errors.New("codec: encode error")

// ErrDecode is returned when an inbound frame cannot be parsed: an unknown
// type tag, or a malformed body for a known tag.
var ErrDecode = errors.New("codec: decode error")

// DefaultMaxBodySize is the largest payload body a Messenger accepts when
// the caller does not specify one: the widest value packet_length (a
// uint16) can express, minus the type byte.
const DefaultMaxBodySize = 65535 - frame.TypeSize

// CltMessenger serializes the client's outbound union (CltMsg[SendP]) and
// deserializes the server's inbound union (SvcMsg[RecvP]).
type CltMessenger[SendP message.Payload, RecvP message.Payload] struct {
	maxBodySize    int
	decodeRecvBody func([]byte) (RecvP, error)
}

// NewCltMessenger builds a CltMessenger. maxBodySize bounds the serialized
// body (excluding the 2-byte length prefix and 1-byte type); decodeRecvBody
// parses a raw Sequenced/Unsequenced body into RecvP.
func NewCltMessenger[SendP message.Payload, RecvP message.Payload](maxBodySize int, decodeRecvBody func([]byte) (RecvP, error)) *CltMessenger[SendP, RecvP] {
	return &CltMessenger[SendP, RecvP]{maxBodySize: maxBodySize, decodeRecvBody: decodeRecvBody}
}

// Serialize encodes msg into a complete frame, returning the frame bytes and
// how many of them are live (the two are always equal here; written_len is
// kept distinct from len(bytes) to mirror the stack-buffer shape the spec
// describes for implementations that pool frame buffers).
func (c *CltMessenger[SendP, RecvP]) Serialize(msg message.CltMsg[SendP]) ([]byte, int, error) {
	body, err := encodeCltBody[SendP](msg)
	if err != nil {
		return nil, 0, err
	}
	if len(body) > c.maxBodySize {
		return nil, 0, fmt.Errorf("%w: body of %d bytes exceeds max %d", ErrEncode, len(body), c.maxBodySize)
	}
	f := frame.Encode(msg.Type(), body)
	return f, len(f), nil
}

func encodeCltBody[SendP message.Payload](msg message.CltMsg[SendP]) ([]byte, error) {
	switch m := msg.(type) {
	case message.LoginRequest:
		return m.EncodeBody(), nil
	case message.LogoutRequest:
		return m.EncodeBody(), nil
	case message.CltHeartbeat:
		return m.EncodeBody(), nil
	case message.Debug:
		return m.EncodeBody(), nil
	case message.UnsequencedData[SendP]:
		return m.EncodeBody(), nil
	case message.SequencedData[SendP]:
		return m.EncodeBody(), nil
	default:
		return nil, fmt.Errorf("%w: unknown client message type %T", ErrEncode, msg)
	}
}

// Deserialize consumes a complete frame (as delimited by frame.Length) and
// dispatches on its type byte to produce the corresponding SvcMsg[RecvP].
func (c *CltMessenger[SendP, RecvP]) Deserialize(f []byte) (message.SvcMsg[RecvP], error) {
	ty, err := frame.PeekType(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	body := frame.Body(f)
	switch ty {
	case message.TypeLoginAccepted:
		m, err := message.DecodeLoginAccepted(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeLoginRejected:
		m, err := message.DecodeLoginRejected(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeSvcHeartbeat:
		m, err := message.DecodeSvcHeartbeat(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeEndOfSession:
		m, err := message.DecodeEndOfSession(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeDebug:
		m, err := message.DecodeDebug(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeUnsequenced:
		m, err := message.DecodeUnsequencedData(body, c.decodeRecvBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeSequenced:
		m, err := message.DecodeSequencedData(body, c.decodeRecvBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown server packet type %c", ErrDecode, ty)
	}
}

// SvcMessenger mirrors CltMessenger for the server side: serializes
// SvcMsg[SendP], deserializes CltMsg[RecvP].
type SvcMessenger[SendP message.Payload, RecvP message.Payload] struct {
	maxBodySize    int
	decodeRecvBody func([]byte) (RecvP, error)
}

func NewSvcMessenger[SendP message.Payload, RecvP message.Payload](maxBodySize int, decodeRecvBody func([]byte) (RecvP, error)) *SvcMessenger[SendP, RecvP] {
	return &SvcMessenger[SendP, RecvP]{maxBodySize: maxBodySize, decodeRecvBody: decodeRecvBody}
}

func (s *SvcMessenger[SendP, RecvP]) Serialize(msg message.SvcMsg[SendP]) ([]byte, int, error) {
	body, err := encodeSvcBody[SendP](msg)
	if err != nil {
		return nil, 0, err
	}
	if len(body) > s.maxBodySize {
		return nil, 0, fmt.Errorf("%w: body of %d bytes exceeds max %d", ErrEncode, len(body), s.maxBodySize)
	}
	f := frame.Encode(msg.Type(), body)
	return f, len(f), nil
}

func encodeSvcBody[SendP message.Payload](msg message.SvcMsg[SendP]) ([]byte, error) {
	switch m := msg.(type) {
	case message.LoginAccepted:
		return m.EncodeBody(), nil
	case message.LoginRejected:
		return m.EncodeBody(), nil
	case message.SvcHeartbeat:
		return m.EncodeBody(), nil
	case message.EndOfSession:
		return m.EncodeBody(), nil
	case message.Debug:
		return m.EncodeBody(), nil
	case message.UnsequencedData[SendP]:
		return m.EncodeBody(), nil
	case message.SequencedData[SendP]:
		return m.EncodeBody(), nil
	default:
		return nil, fmt.Errorf("%w: unknown server message type %T", ErrEncode, msg)
	}
}

func (s *SvcMessenger[SendP, RecvP]) Deserialize(f []byte) (message.CltMsg[RecvP], error) {
	ty, err := frame.PeekType(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	body := frame.Body(f)
	switch ty {
	case message.TypeLoginRequest:
		m, err := message.DecodeLoginRequest(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeLogoutRequest:
		m, err := message.DecodeLogoutRequest(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeCltHeartbeat:
		m, err := message.DecodeCltHeartbeat(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeDebug:
		m, err := message.DecodeDebug(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeUnsequenced:
		m, err := message.DecodeUnsequencedData(body, s.decodeRecvBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	case message.TypeSequenced:
		m, err := message.DecodeSequencedData(body, s.decodeRecvBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown client packet type %c", ErrDecode, ty)
	}
}
