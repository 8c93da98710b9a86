// Package middleware implements the onion model middleware chain, applied
// to two distinct points in a SoupBinTCP session's lifecycle: delivery of
// one decoded payload to the application callback, and accepting a new
// connection's login attempt.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
//
// Each middleware can:
//   - Do pre-processing (before calling next)
//   - Call next(...) to pass to the next layer
//   - Do post-processing (after next returns)
//   - Short-circuit by returning early without calling next (e.g., rate limiting)
package middleware

import (
	"context"

	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/protocol"
)

// DeliverFunc is invoked once per payload handed to the application: each
// unsequenced payload the server decodes from its client, and each
// sequenced payload the client receives from the server. Both callers in
// this repository pass 0 for seq; neither tracks the sequence number of a
// delivered payload.
type DeliverFunc[P message.Payload] func(ctx context.Context, sessionID string, seq uint64, payload P) error

// DeliverMiddleware wraps a DeliverFunc with a layer of cross-cutting
// behavior.
type DeliverMiddleware[P message.Payload] func(next DeliverFunc[P]) DeliverFunc[P]

// ChainDeliver composes middlewares so the first in the list is the
// outermost layer (executed first on the way in, last on the way out).
func ChainDeliver[P message.Payload](mws ...DeliverMiddleware[P]) DeliverMiddleware[P] {
	return func(next DeliverFunc[P]) DeliverFunc[P] {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// ConnectFunc is invoked once per accepted connection, to run the login
// handshake (protocol.SvcProtocol.OnConnect) against it.
type ConnectFunc func(ctx context.Context, conn protocol.Conn) error

// ConnectMiddleware wraps a ConnectFunc, e.g. to throttle how fast a
// reconnect storm can re-trigger login attempts.
type ConnectMiddleware func(next ConnectFunc) ConnectFunc

// ChainConnect composes ConnectMiddleware the same way ChainDeliver does.
func ChainConnect(mws ...ConnectMiddleware) ConnectMiddleware {
	return func(next ConnectFunc) ConnectFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
