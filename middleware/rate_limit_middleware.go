package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/softstream-link/soupbintcp/protocol"
)

// ErrConnectRateLimited is returned when a login attempt is rejected
// because the reconnect rate limit has been exceeded.
var ErrConnectRateLimited = fmt.Errorf("middleware: connection rate limit exceeded")

// RateLimitConnectMiddleware throttles how fast a reconnect storm can
// re-trigger login attempts on the server, using a token bucket: tokens
// refill at r per second up to burst, and each accepted connection's
// handshake consumes one token.
//
// The limiter is created once, in the outer closure, and shared across
// every connection — not per connection, which would give every connection
// its own full bucket and defeat the point.
func RateLimitConnectMiddleware(r float64, burst int) ConnectMiddleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next ConnectFunc) ConnectFunc {
		return func(ctx context.Context, conn protocol.Conn) error {
			if !limiter.Allow() {
				return ErrConnectRateLimited
			}
			return next(ctx, conn)
		}
	}
}
