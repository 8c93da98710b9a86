package test

import (
	"context"
	"testing"
	"time"

	"github.com/softstream-link/soupbintcp/client"
	"github.com/softstream-link/soupbintcp/loadbalance"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/message/fields"
	"github.com/softstream-link/soupbintcp/registry"
	"github.com/softstream-link/soupbintcp/server"
)

// mockRegistry serves a fixed, in-memory venue list without etcd, isolating
// the end-to-end test from a live etcd dependency.
type mockRegistry struct {
	instances map[string][]registry.ServiceInstance
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{instances: make(map[string][]registry.ServiceInstance)}
}

func (m *mockRegistry) Register(sessionName string, inst registry.ServiceInstance, ttl int64) error {
	m.instances[sessionName] = append(m.instances[sessionName], inst)
	return nil
}

func (m *mockRegistry) Deregister(sessionName string, addr string) error {
	insts := m.instances[sessionName]
	for i, inst := range insts {
		if inst.Addr == addr {
			m.instances[sessionName] = append(insts[:i], insts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockRegistry) Discover(sessionName string) ([]registry.ServiceInstance, error) {
	return m.instances[sessionName], nil
}

func (m *mockRegistry) Watch(sessionName string) <-chan []registry.ServiceInstance {
	ch := make(chan []registry.ServiceInstance)
	close(ch)
	return ch
}

func decodeRaw(b []byte) (message.RawPayload, error) { return message.RawPayload(b), nil }

func testCreds(t *testing.T) (fields.UserName, fields.Password, fields.SessionID) {
	t.Helper()
	user, err := fields.NewUserName("userid")
	if err != nil {
		t.Fatal(err)
	}
	pass, err := fields.NewPassword("passwd")
	if err != nil {
		t.Fatal(err)
	}
	sid, err := fields.NewSessionID("favsession")
	if err != nil {
		t.Fatal(err)
	}
	return user, pass, sid
}

func startServer(t *testing.T, user fields.UserName, pass fields.Password, sid fields.SessionID, addr string, onDeliver func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error) (*server.Server[message.RawPayload, message.RawPayload], string) {
	t.Helper()
	svr := server.NewServer[message.RawPayload, message.RawPayload](server.Config{
		Username:             user,
		Password:             pass,
		SessionID:            sid,
		MaxHbeatSendInterval: 2500 * time.Millisecond,
		IOTimeout:            time.Second,
		PollTimeout:          5 * time.Millisecond,
	}, decodeRaw, onDeliver)

	serveErr := make(chan error, 1)
	go func() { serveErr <- svr.Serve("tcp", addr, nil) }()

	deadline := time.Now().Add(time.Second)
	for {
		got := svr.ListenerAddr()
		if got != "" {
			return svr, got
		}
		select {
		case err := <-serveErr:
			t.Fatalf("serve exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for listener")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestFullRoundTripThroughRegistryAndBalancer drives the whole stack end to
// end: venue discovery, round-robin address ranking, login, a client
// send and a server publish, each delivered through the session's middleware
// chains.
func TestFullRoundTripThroughRegistryAndBalancer(t *testing.T) {
	user, pass, sid := testCreds(t)

	serverReceived := make(chan message.RawPayload, 1)
	svr, addr := startServer(t, user, pass, sid, "127.0.0.1:0", func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
		serverReceived <- payload
		return nil
	})
	defer svr.Shutdown(3 * time.Second)

	reg := newMockRegistry()
	if err := reg.Register("favsession", registry.ServiceInstance{Addr: addr, SessionID: "favsession", Weight: 10}, 10); err != nil {
		t.Fatalf("register: %v", err)
	}

	clientReceived := make(chan message.RawPayload, 1)
	clt := client.NewClient[message.RawPayload, message.RawPayload](client.Config{
		Username:             user,
		Password:             pass,
		SessionID:            sid,
		MaxHbeatSendInterval: 2500 * time.Millisecond,
		IOTimeout:            time.Second,
		DialTimeout:          time.Second,
		PollTimeout:          5 * time.Millisecond,
	}, reg, &loadbalance.RoundRobinBalancer{}, decodeRaw, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
		clientReceived <- payload
		return nil
	})
	if err := clt.Connect("favsession"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer clt.Close()

	if err := clt.Send(message.RawPayload("Arith.Add:3,5")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case got := <-serverReceived:
		if got != "Arith.Add:3,5" {
			t.Fatalf("server got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server delivery")
	}

	deadline := time.Now().Add(time.Second)
	for !svr.HasActiveConnection() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for active connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := svr.Publish(message.RawPayload("Arith.Add=8")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-clientReceived:
		if got != "Arith.Add=8" {
			t.Fatalf("client got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client delivery")
	}
}

// TestFailoverAcrossTwoVenues registers a dead venue that the round-robin
// ranking puts ahead of a live one (a fresh RoundRobinBalancer's first Pick
// takes index 1) and confirms the client's ranked failover dial still
// reaches the live server.
func TestFailoverAcrossTwoVenues(t *testing.T) {
	user, pass, sid := testCreds(t)
	svr, addr := startServer(t, user, pass, sid, "127.0.0.1:0", func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error { return nil })
	defer svr.Shutdown(3 * time.Second)

	reg := newMockRegistry()
	reg.instances["favsession"] = []registry.ServiceInstance{
		{Addr: addr, SessionID: "favsession"},
		{Addr: "127.0.0.1:1", SessionID: "favsession"},
	}

	clt := client.NewClient[message.RawPayload, message.RawPayload](client.Config{
		Username:             user,
		Password:             pass,
		SessionID:            sid,
		MaxHbeatSendInterval: 2500 * time.Millisecond,
		IOTimeout:            time.Second,
		DialTimeout:          100 * time.Millisecond,
		PollTimeout:          5 * time.Millisecond,
	}, reg, &loadbalance.RoundRobinBalancer{}, decodeRaw, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
		return nil
	})
	if err := clt.Connect("favsession"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer clt.Close()

	if !clt.IsConnected() {
		t.Fatal("expected client connected to the surviving venue")
	}
}

// TestReplayOnReconnectAcrossFullStack confirms a client that reconnects
// through the registry/balancer pipeline after a drop, requesting
// start_seq=2, is replayed exactly the sequenced payloads from #2 on, in
// order, with no gap or duplicate.
func TestReplayOnReconnectAcrossFullStack(t *testing.T) {
	user, pass, sid := testCreds(t)
	svr, addr := startServer(t, user, pass, sid, "127.0.0.1:0", func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error { return nil })
	defer svr.Shutdown(3 * time.Second)

	reg := newMockRegistry()
	reg.instances["favsession"] = []registry.ServiceInstance{{Addr: addr, SessionID: "favsession"}}

	received := make(chan message.RawPayload, 8)
	newClient := func(startSeq uint64, sink chan<- message.RawPayload) *client.Client[message.RawPayload, message.RawPayload] {
		return client.NewClient[message.RawPayload, message.RawPayload](client.Config{
			Username:             user,
			Password:             pass,
			SessionID:            sid,
			StartSeq:             fields.NewSequenceNumber(startSeq),
			MaxHbeatSendInterval: 2500 * time.Millisecond,
			IOTimeout:            time.Second,
			DialTimeout:          time.Second,
			PollTimeout:          5 * time.Millisecond,
		}, reg, &loadbalance.RoundRobinBalancer{}, decodeRaw, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
			sink <- payload
			return nil
		})
	}

	// clt1 may receive the publishes live; its deliveries go to a separate
	// channel so received holds only what clt2 is replayed.
	clt1 := newClient(1, make(chan message.RawPayload, 8))
	if err := clt1.Connect("favsession"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	for _, p := range []message.RawPayload{"a", "b", "c"} {
		if err := svr.Publish(p); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := clt1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	clt2 := newClient(2, received)
	if err := clt2.Connect("favsession"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer clt2.Close()

	got := make([]message.RawPayload, 0, 2)
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case p := <-received:
			got = append(got, p)
		case <-deadline:
			t.Fatalf("timed out after replaying %d payloads: %v", len(got), got)
		}
	}
	if got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected replay [b c], got %v", got)
	}
}
