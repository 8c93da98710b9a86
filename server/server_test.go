package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/softstream-link/soupbintcp/codec"
	"github.com/softstream-link/soupbintcp/frame"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/message/fields"
	"github.com/softstream-link/soupbintcp/middleware"
	"github.com/softstream-link/soupbintcp/protocol"
	"github.com/softstream-link/soupbintcp/transport"
)

func decodeRaw(b []byte) (message.RawPayload, error) { return message.RawPayload(b), nil }

func testCreds(t *testing.T) (fields.UserName, fields.Password, fields.SessionID) {
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

func newTestServer(t *testing.T, onDeliver middleware.DeliverFunc[message.RawPayload]) (*Server[message.RawPayload, message.RawPayload], net.Listener) {
	user, pass, sid := testCreds(t)
	srv := NewServer[message.RawPayload, message.RawPayload](Config{
		Username:             user,
		Password:             pass,
		SessionID:            sid,
		MaxHbeatSendInterval: 2500 * time.Millisecond,
		IOTimeout:            time.Second,
		PollTimeout:          5 * time.Millisecond,
	}, decodeRaw, onDeliver)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve("tcp", "127.0.0.1:0", nil) }()

	deadline := time.Now().Add(time.Second)
	for {
		srv.mu.Lock()
		listener := srv.listener
		srv.mu.Unlock()
		if listener != nil {
			return srv, listener
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

// dialAndLogin drives a hand-rolled client-side handshake against addr,
// bypassing package client so the server can be tested in isolation.
func dialAndLogin(t *testing.T, addr string, user fields.UserName, pass fields.Password, sid fields.SessionID, startSeq fields.SequenceNumber) (*transport.Connection, *codec.CltMessenger[message.RawPayload, message.RawPayload]) {
	t.Helper()
	conn, err := transport.Dial(addr, time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	cltMessenger := codec.NewCltMessenger[message.RawPayload, message.RawPayload](frame.MaxFrameSize, decodeRaw)

	login := message.LoginRequest{
		Username: user, Password: pass, SessionID: sid,
		SequenceNumber:     startSeq,
		HeartbeatTimeoutMs: fields.NewTimeoutMs(2500),
	}
	f, _, err := cltMessenger.Serialize(login)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.SendBusyWaitTimeout(f, time.Second); err != nil {
		t.Fatal(err)
	}

	replyFrame, status, err := conn.RecvBusyWaitTimeout(time.Second)
	if err != nil || status != protocol.Completed || replyFrame == nil {
		t.Fatalf("no login reply: status=%v err=%v", status, err)
	}
	reply, err := cltMessenger.Deserialize(replyFrame)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reply.(message.LoginAccepted); !ok {
		t.Fatalf("expected LoginAccepted, got %T", reply)
	}
	return conn, cltMessenger
}

func TestServerAcceptsLoginAndDeliversUnsequenced(t *testing.T) {
	received := make(chan message.RawPayload, 1)
	onDeliver := func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
		received <- payload
		return nil
	}
	srv, listener := newTestServer(t, onDeliver)
	defer srv.Shutdown(time.Second)

	user, pass, sid := testCreds(t)
	conn, cltMessenger := dialAndLogin(t, listener.Addr().String(), user, pass, sid, fields.ZeroSequenceNumber)
	defer conn.Close()

	f, _, err := cltMessenger.Serialize(message.UnsequencedData[message.RawPayload]{Data: message.RawPayload("hello")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.SendBusyWaitTimeout(f, time.Second); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Fatalf("got %q, want %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestServerPublishReachesActiveConnection(t *testing.T) {
	srv, listener := newTestServer(t, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error { return nil })
	defer srv.Shutdown(time.Second)

	user, pass, sid := testCreds(t)
	conn, cltMessenger := dialAndLogin(t, listener.Addr().String(), user, pass, sid, fields.ZeroSequenceNumber)
	defer conn.Close()

	// wait for the handshake goroutine to install conn as activeConn
	deadline := time.Now().Add(time.Second)
	for {
		srv.mu.Lock()
		active := srv.activeConn
		srv.mu.Unlock()
		if active != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for active connection")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := srv.Publish(message.RawPayload("market-update")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	f, status, err := conn.RecvBusyWaitTimeout(time.Second)
	if err != nil || status != protocol.Completed || f == nil {
		t.Fatalf("expected published frame, status=%v err=%v", status, err)
	}
	msg, err := cltMessenger.Deserialize(f)
	if err != nil {
		t.Fatal(err)
	}
	seq, ok := msg.(message.SequencedData[message.RawPayload])
	if !ok {
		t.Fatalf("expected SequencedData, got %T", msg)
	}
	if seq.Data != "market-update" {
		t.Fatalf("got %q, want %q", seq.Data, "market-update")
	}
}

func TestServerReplaysOnReconnect(t *testing.T) {
	srv, listener := newTestServer(t, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error { return nil })
	defer srv.Shutdown(time.Second)

	user, pass, sid := testCreds(t)
	conn1, _ := dialAndLogin(t, listener.Addr().String(), user, pass, sid, fields.ZeroSequenceNumber)

	for i := 0; i < 3; i++ {
		if err := srv.Publish(message.RawPayload("p")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	conn1.Close()

	// Reconnect starting from sequence 2: expect 2 replayed frames (#2, #3).
	conn2, _ := dialAndLogin(t, listener.Addr().String(), user, pass, sid, fields.NewSequenceNumber(2))
	defer conn2.Close()

	for i := 0; i < 2; i++ {
		f, status, err := conn2.RecvBusyWaitTimeout(time.Second)
		if err != nil || status != protocol.Completed || f == nil {
			t.Fatalf("expected replay frame %d, status=%v err=%v", i, status, err)
		}
		ty, _ := frame.PeekType(f)
		if ty != message.TypeSequenced {
			t.Fatalf("replay frame %d: expected sequenced type, got %c", i, ty)
		}
	}
	if _, status, _ := conn2.Recv(); status != protocol.WouldBlock {
		t.Fatalf("expected no further replay frames")
	}
}

func TestServerRejectsBadCredentials(t *testing.T) {
	srv, listener := newTestServer(t, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error { return nil })
	defer srv.Shutdown(time.Second)

	user, _, sid := testCreds(t)
	wrongPass, err := fields.NewPassword("wrong ")
	if err != nil {
		t.Fatal(err)
	}

	conn, err := transport.Dial(listener.Addr().String(), time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	cltMessenger := codec.NewCltMessenger[message.RawPayload, message.RawPayload](frame.MaxFrameSize, decodeRaw)

	login := message.LoginRequest{Username: user, Password: wrongPass, SessionID: sid, HeartbeatTimeoutMs: fields.NewTimeoutMs(2500)}
	f, _, err := cltMessenger.Serialize(login)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.SendBusyWaitTimeout(f, time.Second); err != nil {
		t.Fatal(err)
	}

	replyFrame, status, err := conn.RecvBusyWaitTimeout(time.Second)
	if err != nil || status != protocol.Completed || replyFrame == nil {
		t.Fatalf("expected login rejected frame, status=%v err=%v", status, err)
	}
	reply, err := cltMessenger.Deserialize(replyFrame)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reply.(message.LoginRejected); !ok {
		t.Fatalf("expected LoginRejected, got %T", reply)
	}
}

func TestServerShutdownWaitsForHandlers(t *testing.T) {
	srv, listener := newTestServer(t, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error { return nil })

	user, pass, sid := testCreds(t)
	conn, cltMessenger := dialAndLogin(t, listener.Addr().String(), user, pass, sid, fields.ZeroSequenceNumber)

	logoutFrame, _, err := cltMessenger.Serialize(message.LogoutRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.SendBusyWaitTimeout(logoutFrame, time.Second); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	if err := srv.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
