package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/softstream-link/soupbintcp/message"
)

// ErrDeliveryTimedOut is returned when the application callback does not
// return within the configured timeout.
var ErrDeliveryTimedOut = fmt.Errorf("middleware: payload delivery timed out")

// TimeOutDeliverMiddleware bounds how long the application callback may run
// for a single delivered payload.
//
// The callback goroutine is NOT cancelled when the timeout fires — it keeps
// running in the background. The timeout only controls when the caller
// gives up waiting; a callback that wants true cancellation must watch
// ctx.Done() itself.
func TimeOutDeliverMiddleware[P message.Payload](timeout time.Duration) DeliverMiddleware[P] {
	return func(next DeliverFunc[P]) DeliverFunc[P] {
		return func(ctx context.Context, sessionID string, seq uint64, payload P) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- next(ctx, sessionID, seq, payload)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ErrDeliveryTimedOut
			}
		}
	}
}
