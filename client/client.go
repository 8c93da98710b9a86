// Package client implements the SoupBinTCP client: venue discovery, ordered
// failover dialing, the login handshake, and a background recv loop that
// dispatches sequenced payloads to an application callback.
//
// Connect flow:
//
//	Connect(sessionName)
//	  → Registry.Discover(sessionName)     → venue instance list from etcd
//	  → rankAddrs(instances, balancer)     → ordered address list
//	  → transport.ConnPool.DialFirst       → dial + run login handshake
//	  → recv loop + heartbeat ticker goroutines
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/softstream-link/soupbintcp/codec"
	"github.com/softstream-link/soupbintcp/loadbalance"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/message/fields"
	"github.com/softstream-link/soupbintcp/middleware"
	"github.com/softstream-link/soupbintcp/protocol"
	"github.com/softstream-link/soupbintcp/registry"
	"github.com/softstream-link/soupbintcp/transport"
)

// Config holds everything needed to connect a client to one SoupBinTCP session.
type Config struct {
	Username             fields.UserName
	Password             fields.Password
	SessionID            fields.SessionID
	StartSeq             fields.SequenceNumber
	MaxHbeatSendInterval time.Duration
	MaxRecvInterval      time.Duration
	IOTimeout            time.Duration
	DialTimeout          time.Duration
	PollTimeout          time.Duration
	MaxBodySize          int
}

// Client connects to a SoupBinTCP session by discovering its redundant venue
// set, ranking them with a loadbalance.Balancer, and failing over through
// them until one accepts the login.
type Client[SendP, RecvP message.Payload] struct {
	cfg       Config
	messenger *codec.CltMessenger[SendP, RecvP]
	reg       registry.Registry
	bal       loadbalance.Balancer
	pool      *transport.ConnPool

	deliverMws []middleware.DeliverMiddleware[RecvP]
	onDeliver  middleware.DeliverFunc[RecvP]

	mu     sync.Mutex
	conn   *transport.Connection
	proto  *protocol.CltAuto[SendP, RecvP]
	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewClient builds a client. onDeliver runs at the bottom of the deliver
// middleware chain for every sequenced payload received from the server.
func NewClient[SendP, RecvP message.Payload](cfg Config, reg registry.Registry, bal loadbalance.Balancer, decodeRecvBody func([]byte) (RecvP, error), onDeliver middleware.DeliverFunc[RecvP]) *Client[SendP, RecvP] {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = transport.DefaultPollTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = codec.DefaultMaxBodySize
	}
	return &Client[SendP, RecvP]{
		cfg:       cfg,
		messenger: codec.NewCltMessenger[SendP, RecvP](cfg.MaxBodySize, decodeRecvBody),
		reg:       reg,
		bal:       bal,
		pool:      transport.NewConnPool(cfg.DialTimeout, cfg.PollTimeout),
		onDeliver: onDeliver,
		stopCh:    make(chan struct{}),
	}
}

// UseDeliver registers a DeliverMiddleware, applied in the order added.
func (c *Client[SendP, RecvP]) UseDeliver(mw middleware.DeliverMiddleware[RecvP]) {
	c.deliverMws = append(c.deliverMws, mw)
}

// rankAddrs asks bal to order instances into a failover address list: it
// repeatedly picks from the shrinking remainder, turning a single-winner
// strategy into a full preference order for transport.ConnPool.DialFirst.
func rankAddrs(instances []registry.ServiceInstance, bal loadbalance.Balancer) []string {
	remaining := append([]registry.ServiceInstance(nil), instances...)
	addrs := make([]string, 0, len(instances))
	for len(remaining) > 0 {
		pick, err := bal.Pick(remaining)
		if err != nil {
			break
		}
		addrs = append(addrs, pick.Addr)
		for i, inst := range remaining {
			if inst.Addr == pick.Addr {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return addrs
}

// Connect discovers the venue set for sessionName and dials the first one
// that both accepts a TCP connection and completes the login handshake.
func (c *Client[SendP, RecvP]) Connect(sessionName string) error {
	instances, err := c.reg.Discover(sessionName)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		return fmt.Errorf("client: no venues registered for session %q", sessionName)
	}
	addrs := rankAddrs(instances, c.bal)

	proto := protocol.NewCltAuto(protocol.CltAutoConfig{
		Username:             c.cfg.Username,
		Password:             c.cfg.Password,
		SessionID:            c.cfg.SessionID,
		StartSeq:             c.cfg.StartSeq,
		MaxHbeatSendInterval: c.cfg.MaxHbeatSendInterval,
		MaxRecvInterval:      c.cfg.MaxRecvInterval,
		IOTimeout:            c.cfg.IOTimeout,
	}, c.messenger)

	conn, err := c.pool.DialFirst(addrs, func(pc protocol.Conn) error {
		return proto.OnConnect(pc)
	})
	if err != nil {
		return fmt.Errorf("client: all venues refused connection or login: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.proto = proto
	c.mu.Unlock()

	deliverChain := middleware.ChainDeliver(c.deliverMws...)(c.onDeliver)

	c.wg.Add(1)
	go c.readLoop(conn, proto, deliverChain)

	if hbeatInterval := proto.ConfHeartBeatInterval(); hbeatInterval > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop(conn, proto, hbeatInterval)
	}
	return nil
}

func (c *Client[SendP, RecvP]) heartbeatLoop(conn *transport.Connection, proto *protocol.CltAuto[SendP, RecvP], interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := proto.SendHeartBeat(conn); err != nil {
				return
			}
		}
	}
}

func (c *Client[SendP, RecvP]) readLoop(conn *transport.Connection, proto *protocol.CltAuto[SendP, RecvP], deliverChain middleware.DeliverFunc[RecvP]) {
	defer c.wg.Done()
	ctx := context.Background()
	sessionID := string(c.cfg.SessionID)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		f, status, err := conn.RecvBusyWaitTimeout(c.cfg.IOTimeout)
		if err != nil {
			return
		}
		if status == protocol.WouldBlock {
			if !proto.IsConnected() {
				return
			}
			continue
		}
		if f == nil {
			return
		}
		proto.OnRecv(f)

		msg, err := c.messenger.Deserialize(f)
		if err != nil {
			log.WithError(err).Warn("failed to decode server frame")
			continue
		}
		switch m := msg.(type) {
		case message.EndOfSession:
			return
		case message.SvcHeartbeat:
			// liveness only, nothing to deliver
		case message.SequencedData[RecvP]:
			if err := deliverChain(ctx, sessionID, 0, m.Data); err != nil {
				log.WithError(err).Warn("delivery callback failed")
			}
		default:
			log.Warnf("unexpected message type %T from server", m)
		}
	}
}

// Send serializes payload as an unsequenced payload and hands it to the
// connection, busy-waiting up to IOTimeout for it to clear.
func (c *Client[SendP, RecvP]) Send(payload SendP) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("client: not connected")
	}
	f, _, err := c.messenger.Serialize(message.UnsequencedData[SendP]{Data: payload})
	if err != nil {
		return err
	}
	status, err := conn.SendBusyWaitTimeout(f, c.cfg.IOTimeout)
	if err != nil {
		return err
	}
	if status == protocol.WouldBlock {
		return fmt.Errorf("client: send did not complete within %s", c.cfg.IOTimeout)
	}
	return nil
}

// IsConnected reports whether the active connection's liveness tracker
// still considers the session up.
func (c *Client[SendP, RecvP]) IsConnected() bool {
	c.mu.Lock()
	proto := c.proto
	c.mu.Unlock()
	return proto != nil && proto.IsConnected()
}

// Close sends LogoutRequest, stops the background goroutines, and closes
// the connection.
func (c *Client[SendP, RecvP]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	f, _, err := c.messenger.Serialize(message.LogoutRequest{})
	if err == nil {
		_, _ = conn.SendBusyWaitTimeout(f, c.cfg.IOTimeout)
	}
	close(c.stopCh)
	c.wg.Wait()
	return conn.Close()
}
