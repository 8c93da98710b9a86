// ConnPool selects among a list of redundant venue addresses. Unlike the
// teacher's borrow/return connection pool, a SoupBinTCP session is a single
// long-lived link per connecting side — there is no pool of interchangeable
// connections to check in and out of. What the venue list needs instead is
// failover: try venues in the order a loadbalance.Balancer hands them out,
// dial the first one that both connects and completes the protocol
// handshake, and give up only once every venue has refused.
package transport

import (
	"fmt"
	"time"

	"github.com/softstream-link/soupbintcp/protocol"
)

// ConnPool dials one of several candidate venue addresses.
type ConnPool struct {
	dialTimeout time.Duration
	pollTimeout time.Duration
}

// NewConnPool builds a failover dialer. dialTimeout bounds each individual
// TCP connect attempt; pollTimeout is passed through to every Connection it
// creates.
func NewConnPool(dialTimeout, pollTimeout time.Duration) *ConnPool {
	return &ConnPool{dialTimeout: dialTimeout, pollTimeout: pollTimeout}
}

// DialFirst tries addrs in order, running onConnect (typically a
// protocol.CltProtocol's OnConnect) against each freshly dialed Connection.
// It returns the first Connection whose handshake succeeds, closing and
// discarding every attempt that fails along the way. An address that fails
// to dial at all is skipped the same as one that dials but rejects login.
func (p *ConnPool) DialFirst(addrs []string, onConnect func(protocol.Conn) error) (*Connection, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("transport: no venue addresses to try")
	}
	var lastErr error
	for _, addr := range addrs {
		conn, err := Dial(addr, p.dialTimeout, p.pollTimeout)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", addr, err)
			continue
		}
		if err := onConnect(conn); err != nil {
			lastErr = fmt.Errorf("%s: %w", addr, err)
			_ = conn.Close()
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("transport: all %d venues refused: %w", len(addrs), lastErr)
}
