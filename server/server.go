// Package server implements the SoupBinTCP server side: accept connections,
// run the login handshake and replay through a protocol.SvcProtocol, deliver
// decoded payloads to the application, and publish sequenced payloads to
// whichever connection currently holds the session.
//
// Accept and connection lifecycle:
//
//	Accept conn → wrap as transport.Connection → connectChain(OnConnect)
//	  → evict any prior connection for this session → heartbeat goroutine
//	  → read loop: Recv → proto.OnRecv → Messenger.Deserialize → deliverChain
//	  → OnDisconnect → best-effort farewell frame → close
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/softstream-link/soupbintcp/codec"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/message/fields"
	"github.com/softstream-link/soupbintcp/middleware"
	"github.com/softstream-link/soupbintcp/protocol"
	"github.com/softstream-link/soupbintcp/registry"
	"github.com/softstream-link/soupbintcp/session"
	"github.com/softstream-link/soupbintcp/transport"
)

// Config holds everything needed to serve one SoupBinTCP session.
type Config struct {
	Username             fields.UserName
	Password             fields.Password
	SessionID            fields.SessionID
	MaxHbeatSendInterval time.Duration
	IOTimeout            time.Duration
	PollTimeout          time.Duration
	// MaxBodySize bounds a serialized payload body; 0 falls back to
	// codec.DefaultMaxBodySize.
	MaxBodySize int
	// AdvertiseAddr is the address registered in the venue registry, which
	// may differ from the listen address (":0" does not resolve externally).
	AdvertiseAddr string
}

// Server serves a single SoupBinTCP session to whichever client is currently
// logged in, replaying sequenced payloads to a reconnecting client from the
// session-wide store.
type Server[SendP, RecvP message.Payload] struct {
	cfg          Config
	messenger    *codec.SvcMessenger[SendP, RecvP]
	sessionState *session.SvcSendSessionState
	reg          registry.Registry

	connectMws []middleware.ConnectMiddleware
	deliverMws []middleware.DeliverMiddleware[RecvP]
	onDeliver  middleware.DeliverFunc[RecvP]

	listener net.Listener
	wg       sync.WaitGroup
	shutdown atomic.Bool

	mu         sync.Mutex
	activeConn *transport.Connection
}

// NewServer builds a server for one session. onDeliver is the application
// callback invoked for every unsequenced payload received from the client;
// it runs at the bottom of the deliver middleware chain.
func NewServer[SendP, RecvP message.Payload](cfg Config, decodeRecvBody func([]byte) (RecvP, error), onDeliver middleware.DeliverFunc[RecvP]) *Server[SendP, RecvP] {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = transport.DefaultPollTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = codec.DefaultMaxBodySize
	}
	return &Server[SendP, RecvP]{
		cfg:          cfg,
		messenger:    codec.NewSvcMessenger[SendP, RecvP](cfg.MaxBodySize, decodeRecvBody),
		sessionState: session.NewSvcSendSessionState(),
		onDeliver:    onDeliver,
	}
}

// UseConnect registers a ConnectMiddleware, applied in the order added.
func (s *Server[SendP, RecvP]) UseConnect(mw middleware.ConnectMiddleware) {
	s.connectMws = append(s.connectMws, mw)
}

// UseDeliver registers a DeliverMiddleware, applied in the order added.
func (s *Server[SendP, RecvP]) UseDeliver(mw middleware.DeliverMiddleware[RecvP]) {
	s.deliverMws = append(s.deliverMws, mw)
}

// ListenerAddr returns the address Serve is listening on, or "" if Serve has
// not yet bound a listener.
func (s *Server[SendP, RecvP]) ListenerAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HasActiveConnection reports whether a client is currently logged in.
func (s *Server[SendP, RecvP]) HasActiveConnection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConn != nil
}

// Serve listens on address, optionally registers the venue in reg, and runs
// the accept loop until Shutdown is called.
func (s *Server[SendP, RecvP]) Serve(network, address string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	if reg != nil {
		s.reg = reg
		inst := registry.ServiceInstance{Addr: s.cfg.AdvertiseAddr, SessionID: string(s.cfg.SessionID)}
		if err := s.reg.Register(string(s.cfg.SessionID), inst, 10); err != nil {
			log.WithError(err).Warn("failed to register venue instance")
		}
	}

	deliverChain := middleware.ChainDeliver(s.deliverMws...)(s.onDeliver)

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(netConn, deliverChain)
	}
}

func (s *Server[SendP, RecvP]) handleConn(netConn net.Conn, deliverChain middleware.DeliverFunc[RecvP]) {
	defer s.wg.Done()

	conn := transport.NewConnection(netConn, s.cfg.PollTimeout)
	proto := protocol.NewSvcAuto(protocol.SvcAutoConfig{
		Username:             s.cfg.Username,
		Password:             s.cfg.Password,
		SessionID:            s.cfg.SessionID,
		MaxHbeatSendInterval: s.cfg.MaxHbeatSendInterval,
		IOTimeout:            s.cfg.IOTimeout,
	}, s.messenger, s.sessionState)

	connectChain := middleware.ChainConnect(s.connectMws...)(func(ctx context.Context, c protocol.Conn) error {
		return proto.OnConnect(c)
	})
	if err := connectChain(context.Background(), conn); err != nil {
		log.WithError(err).WithField("connection_id", conn.ConnectionID()).Info("login handshake failed")
		conn.Close()
		return
	}

	s.mu.Lock()
	evicted := s.activeConn
	s.activeConn = conn
	s.mu.Unlock()
	if evicted != nil {
		evicted.Close()
	}

	stopHbeat := make(chan struct{})
	if hbeatInterval := proto.ConfHeartBeatInterval(); hbeatInterval > 0 {
		go s.heartbeatLoop(conn, proto, hbeatInterval, stopHbeat)
	}

	s.readLoop(conn, proto, deliverChain)
	close(stopHbeat)

	deadline, farewell := proto.OnDisconnect()
	if farewell != nil {
		_, _ = conn.SendBusyWaitTimeout(farewell, deadline)
	}
	conn.Close()

	s.mu.Lock()
	if s.activeConn == conn {
		s.activeConn = nil
	}
	s.mu.Unlock()
}

func (s *Server[SendP, RecvP]) heartbeatLoop(conn *transport.Connection, proto protocol.SvcProtocol, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := proto.SendHeartBeat(conn); err != nil {
				return
			}
		}
	}
}

func (s *Server[SendP, RecvP]) readLoop(conn *transport.Connection, proto *protocol.SvcAuto[SendP, RecvP], deliverChain middleware.DeliverFunc[RecvP]) {
	ctx := context.Background()
	sessionID := string(s.cfg.SessionID)
	for {
		f, status, err := conn.RecvBusyWaitTimeout(s.cfg.IOTimeout)
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

		msg, err := s.messenger.Deserialize(f)
		if err != nil {
			log.WithError(err).Warn("failed to decode client frame")
			continue
		}
		switch m := msg.(type) {
		case message.LogoutRequest:
			return
		case message.CltHeartbeat:
			// liveness only, nothing to deliver
		case message.UnsequencedData[RecvP]:
			if err := deliverChain(ctx, sessionID, 0, m.Data); err != nil {
				log.WithError(err).Warn("delivery callback failed")
			}
		default:
			log.Warnf("unexpected message type %T from client", m)
		}
	}
}

// Publish serializes payload as a sequenced payload, appends it to the
// session-wide store exactly once (invariant: sequenced_count increments
// once per publish, regardless of how many connections are live), and
// best-effort delivers it to the currently active connection. A client that
// misses it because no connection was active receives it on its next
// reconnect's replay.
func (s *Server[SendP, RecvP]) Publish(payload SendP) error {
	f, _, err := s.messenger.Serialize(message.SequencedData[SendP]{Data: payload})
	if err != nil {
		return err
	}
	s.sessionState.OnSent(message.TypeSequenced, f)

	s.mu.Lock()
	conn := s.activeConn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	status, err := conn.SendBusyWaitTimeout(f, s.cfg.IOTimeout)
	if err != nil {
		return err
	}
	if status == protocol.WouldBlock {
		return fmt.Errorf("server: publish did not send within %s", s.cfg.IOTimeout)
	}
	return nil
}

// Shutdown deregisters the venue, stops accepting new connections, and
// waits up to timeout for the active connection's handler to finish.
func (s *Server[SendP, RecvP]) Shutdown(timeout time.Duration) error {
	if s.reg != nil {
		if err := s.reg.Deregister(string(s.cfg.SessionID), s.cfg.AdvertiseAddr); err != nil {
			log.WithError(err).Warn("failed to deregister venue instance")
		}
	}

	s.shutdown.Store(true)
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for connections to finish")
	}
}
