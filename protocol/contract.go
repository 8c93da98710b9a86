// Package protocol implements the four SoupBinTCP session-lifecycle
// policies (§4.4): Manual, IsConnected, Auto, and Auth. Each is a
// client/server pair implementing the common transport-facing contract of
// §4.5, so a transport can be generic over the protocol type rather than
// branching on a runtime flag.
package protocol

import (
	"errors"
	"time"
)

// ErrTimeout is returned when io_timeout elapses during a handshake or a
// forced disconnect.
var ErrTimeout = errors.New("protocol: timeout")

// ErrNotConnected is returned when the server rejects a login, for auth or
// session-id reasons.
var ErrNotConnected = errors.New("protocol: not connected")

// ErrUnexpected is returned when a handshake receives a message type it did
// not ask for (the spec's "Other" error kind).
var ErrUnexpected = errors.New("protocol: unexpected message")

// Status mirrors the transport's nonblocking send/recv outcome.
type Status int

const (
	// Completed means the operation finished: a send was handed to the OS
	// buffer, or a recv produced a frame (or learned the peer closed).
	Completed Status = iota
	// WouldBlock means the operation could not complete without waiting;
	// the caller should retry.
	WouldBlock
)

// Conn is the nonblocking transport capability a protocol variant needs.
// Implemented by transport.Connection; defined here, consumer-side, since
// only the protocol package needs to see it as an interface.
type Conn interface {
	// Send attempts to enqueue one outbound frame. Idempotent on
	// WouldBlock: the caller may call Send again with the same frame.
	Send(frame []byte) (Status, error)
	// SendBusyWaitTimeout spins until Completed or the deadline elapses.
	SendBusyWaitTimeout(frame []byte, d time.Duration) (Status, error)
	// ReSend is like Send but bypasses on_sent bookkeeping; used
	// exclusively for replay.
	ReSend(frame []byte) (Status, error)
	// ReSendBusyWaitTimeout is the busy-wait variant of ReSend.
	ReSendBusyWaitTimeout(frame []byte, d time.Duration) (Status, error)
	// Recv attempts to read one complete frame. A Completed result with a
	// nil frame and no error means the peer closed the connection.
	Recv() (frame []byte, status Status, err error)
	// RecvBusyWaitTimeout spins until Completed or the deadline elapses.
	RecvBusyWaitTimeout(d time.Duration) (frame []byte, status Status, err error)
	// ConnectionID is a stable string for logs.
	ConnectionID() string
}

// CltProtocol is the contract a transport drives on the client side.
type CltProtocol interface {
	// ConfHeartBeatInterval is read once, at construction, to configure the
	// transport's heartbeat timer.
	ConfHeartBeatInterval() time.Duration
	// OnConnect runs immediately after a successful TCP connect.
	OnConnect(conn Conn) error
	// OnRecv runs after every successful frame decode.
	OnRecv(frame []byte)
	// OnSent runs after every successful send.
	OnSent(frame []byte)
	// SendHeartBeat is invoked periodically by the transport's timer.
	SendHeartBeat(conn Conn) error
	// IsConnected is a pure read of the liveness trackers.
	IsConnected() bool
}

// SvcProtocol is the contract a transport drives on the server side, once
// per accepted connection.
type SvcProtocol interface {
	ConfHeartBeatInterval() time.Duration
	OnConnect(conn Conn) error
	OnRecv(frame []byte)
	OnSent(frame []byte)
	SendHeartBeat(conn Conn) error
	IsConnected() bool
	// OnDisconnect is called at close; it returns a deadline and the
	// farewell frame (EndOfSession) the transport should best-effort
	// deliver before tearing down the socket, or a nil frame if none is
	// required.
	OnDisconnect() (time.Duration, []byte)
}
