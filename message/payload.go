// Package message defines the SoupBinTCP packet union: one concrete type per
// packet_type byte in the §3 catalog, grouped into a client-originated set
// (CltMsg) and a server-originated set (SvcMsg). Types that either side may
// send (Debug, sequenced/unsequenced data) satisfy both.
package message

import "fmt"

// Payload is the capability set required of an application payload carried
// inside a Sequenced or Unsequenced data packet: encodable to bytes,
// comparable for equality checks (e.g. replay verification in tests), and
// printable for debug logging. The comparable constraint rules out slice and
// map types; a value type for P gives clone-by-assignment for free.
type Payload interface {
	comparable
	fmt.Stringer
	Bytes() []byte
}

// RawPayload is the default payload: an opaque byte string, for callers with
// no structured wire format of their own. string is comparable and immutable,
// so RawPayload satisfies Payload without any bookkeeping.
type RawPayload string

func (p RawPayload) Bytes() []byte  { return []byte(p) }
func (p RawPayload) String() string { return string(p) }
