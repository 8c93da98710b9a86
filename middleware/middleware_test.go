package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/protocol"
)

func echoDeliver(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
	return nil
}

func slowDeliver(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestLoggingDeliverPassesThrough(t *testing.T) {
	handler := LoggingDeliverMiddleware[message.RawPayload]()(echoDeliver)
	if err := handler(context.Background(), "SESSION1", 1, "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestTimeoutDeliverPass(t *testing.T) {
	handler := TimeOutDeliverMiddleware[message.RawPayload](500 * time.Millisecond)(echoDeliver)
	if err := handler(context.Background(), "SESSION1", 1, "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestTimeoutDeliverExceeded(t *testing.T) {
	handler := TimeOutDeliverMiddleware[message.RawPayload](50 * time.Millisecond)(slowDeliver)
	err := handler(context.Background(), "SESSION1", 1, "hello")
	if !errors.Is(err, ErrDeliveryTimedOut) {
		t.Fatalf("expected ErrDeliveryTimedOut, got %v", err)
	}
}

type fakeConnID string

func (f fakeConnID) Send([]byte) (protocol.Status, error)                             { return protocol.Completed, nil }
func (f fakeConnID) SendBusyWaitTimeout([]byte, time.Duration) (protocol.Status, error) {
	return protocol.Completed, nil
}
func (f fakeConnID) ReSend([]byte) (protocol.Status, error) { return protocol.Completed, nil }
func (f fakeConnID) ReSendBusyWaitTimeout([]byte, time.Duration) (protocol.Status, error) {
	return protocol.Completed, nil
}
func (f fakeConnID) Recv() ([]byte, protocol.Status, error) { return nil, protocol.Completed, nil }
func (f fakeConnID) RecvBusyWaitTimeout(time.Duration) ([]byte, protocol.Status, error) {
	return nil, protocol.Completed, nil
}
func (f fakeConnID) ConnectionID() string { return string(f) }

func TestRateLimitConnect(t *testing.T) {
	handler := RateLimitConnectMiddleware(1, 2)(func(ctx context.Context, conn protocol.Conn) error {
		return nil
	})
	conn := fakeConnID("peer:1")

	for i := 0; i < 2; i++ {
		if err := handler(context.Background(), conn); err != nil {
			t.Fatalf("connection %d should pass, got error: %v", i, err)
		}
	}

	err := handler(context.Background(), conn)
	if !errors.Is(err, ErrConnectRateLimited) {
		t.Fatalf("connection 3 should be rate limited, got: %v", err)
	}
}

func TestChainDeliver(t *testing.T) {
	chained := ChainDeliver(LoggingDeliverMiddleware[message.RawPayload](), TimeOutDeliverMiddleware[message.RawPayload](500*time.Millisecond))
	handler := chained(echoDeliver)

	if err := handler(context.Background(), "SESSION1", 1, "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
