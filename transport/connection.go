// Package transport adapts the SoupBinTCP protocol state machines in
// package protocol onto real TCP sockets, and provides a multi-venue
// failover dialer for selecting among redundant feed/order endpoints.
//
// Connection wraps net.Conn and implements protocol.Conn. net.Conn has no
// notion of a nonblocking send or recv, so Connection approximates one the
// way the teacher's ClientTransport approximates its own duplex framing:
// a dedicated recvLoop goroutine drains the socket into a buffered channel
// of whole frames, and Send uses a short write deadline as a poll — a
// timeout on that deadline is reported as WouldBlock rather than an error.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/softstream-link/soupbintcp/frame"
	"github.com/softstream-link/soupbintcp/protocol"
)

// DefaultPollTimeout bounds a single nonblocking Send attempt's write
// deadline. Small enough that a caller busy-waiting on WouldBlock retries
// promptly, large enough to usually finish a sub-64-byte frame in one pass.
const DefaultPollTimeout = 20 * time.Millisecond

// recvChanSize is how many fully-decoded frames can queue between recvLoop
// and a caller that isn't keeping up with Recv.
const recvChanSize = 256

// Connection is a single TCP socket framed with the SoupBinTCP length
// prefix, satisfying protocol.Conn.
type Connection struct {
	conn        net.Conn
	pollTimeout time.Duration

	sendMu        sync.Mutex
	pendingFrame  []byte
	pendingOffset int

	recvCh  chan []byte
	closeCh chan struct{}
	once    sync.Once

	recvErrMu sync.Mutex
	recvErr   error
}

// NewConnection wraps an already-dialed or already-accepted net.Conn and
// starts its background recv loop.
func NewConnection(conn net.Conn, pollTimeout time.Duration) *Connection {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	c := &Connection{
		conn:        conn,
		pollTimeout: pollTimeout,
		recvCh:      make(chan []byte, recvChanSize),
		closeCh:     make(chan struct{}),
	}
	go c.recvLoop()
	return c
}

// Dial opens a new TCP connection to addr and wraps it.
func Dial(addr string, dialTimeout, pollTimeout time.Duration) (*Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, pollTimeout), nil
}

// Send attempts to write frame to the socket without blocking indefinitely.
// A partial write is remembered; the caller must pass the identical frame
// bytes on any follow-up call until Completed is returned (the same
// contract SendBusyWaitTimeout relies on).
func (c *Connection) Send(f []byte) (protocol.Status, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sendLocked(f)
}

func (c *Connection) sendLocked(f []byte) (protocol.Status, error) {
	if c.pendingFrame == nil {
		c.pendingFrame = f
		c.pendingOffset = 0
	} else if !bytes.Equal(c.pendingFrame, f) {
		return protocol.Completed, fmt.Errorf("transport: Send called with a different frame while a previous send is still pending")
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		return protocol.Completed, err
	}
	n, err := c.conn.Write(c.pendingFrame[c.pendingOffset:])
	if n > 0 {
		c.pendingOffset += n
	}
	if err != nil {
		if isTimeout(err) {
			return protocol.WouldBlock, nil
		}
		return protocol.Completed, err
	}
	if c.pendingOffset >= len(c.pendingFrame) {
		c.pendingFrame = nil
		c.pendingOffset = 0
		return protocol.Completed, nil
	}
	return protocol.WouldBlock, nil
}

// SendBusyWaitTimeout retries Send until Completed, an error, or d elapses.
func (c *Connection) SendBusyWaitTimeout(f []byte, d time.Duration) (protocol.Status, error) {
	deadline := time.Now().Add(d)
	for {
		status, err := c.Send(f)
		if err != nil || status == protocol.Completed {
			return status, err
		}
		if !time.Now().Before(deadline) {
			return protocol.WouldBlock, nil
		}
	}
}

// ReSend is identical to Send at the transport layer: the on_sent
// bookkeeping it bypasses lives entirely in package protocol, which simply
// does not call its own OnSent hook for replayed frames.
func (c *Connection) ReSend(f []byte) (protocol.Status, error) {
	return c.Send(f)
}

// ReSendBusyWaitTimeout is the busy-wait variant of ReSend.
func (c *Connection) ReSendBusyWaitTimeout(f []byte, d time.Duration) (protocol.Status, error) {
	return c.SendBusyWaitTimeout(f, d)
}

// Recv returns the next fully-decoded frame if one is already queued, or
// WouldBlock if not. A Completed result with a nil frame and nil error
// means the peer closed the connection cleanly.
func (c *Connection) Recv() ([]byte, protocol.Status, error) {
	select {
	case f, ok := <-c.recvCh:
		if !ok {
			return nil, protocol.Completed, c.loopErr()
		}
		return f, protocol.Completed, nil
	default:
		return nil, protocol.WouldBlock, nil
	}
}

// RecvBusyWaitTimeout waits up to d for the next frame.
func (c *Connection) RecvBusyWaitTimeout(d time.Duration) ([]byte, protocol.Status, error) {
	select {
	case f, ok := <-c.recvCh:
		if !ok {
			return nil, protocol.Completed, c.loopErr()
		}
		return f, protocol.Completed, nil
	case <-time.After(d):
		return nil, protocol.WouldBlock, nil
	}
}

// ConnectionID is the remote address, stable for the life of the socket.
func (c *Connection) ConnectionID() string {
	return c.conn.RemoteAddr().String()
}

// Close tears down the socket and stops the recv loop.
func (c *Connection) Close() error {
	c.once.Do(func() { close(c.closeCh) })
	return c.conn.Close()
}

func (c *Connection) loopErr() error {
	c.recvErrMu.Lock()
	defer c.recvErrMu.Unlock()
	return c.recvErr
}

func (c *Connection) setLoopErr(err error) {
	c.recvErrMu.Lock()
	c.recvErr = err
	c.recvErrMu.Unlock()
}

// recvLoop is the sole reader of the socket: TCP is a byte stream, and a
// second concurrent reader would tear frame boundaries apart. It accumulates
// bytes until frame.Length recognizes a complete frame, then hands the
// frame's own byte slice to recvCh.
func (c *Connection) recvLoop() {
	defer close(c.recvCh)

	buf := make([]byte, 0, frame.MaxFrameSize*4)
	tmp := make([]byte, 4096)
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.pollTimeout)); err != nil {
			c.setLoopErr(err)
			return
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		for {
			total, lerr := frame.Length(buf)
			if lerr != nil {
				break
			}
			f := make([]byte, total)
			copy(f, buf[:total])
			buf = buf[total:]
			select {
			case c.recvCh <- f:
			case <-c.closeCh:
				return
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			c.setLoopErr(err)
			return
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
