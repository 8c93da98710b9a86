package middleware

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/protocol"
)

// LoggingDeliverMiddleware records the session, the seq argument, duration,
// and any error for each delivered payload.
func LoggingDeliverMiddleware[P message.Payload]() DeliverMiddleware[P] {
	return func(next DeliverFunc[P]) DeliverFunc[P] {
		return func(ctx context.Context, sessionID string, seq uint64, payload P) error {
			start := time.Now()
			err := next(ctx, sessionID, seq, payload)
			fields := log.Fields{
				"session_id": sessionID,
				"seq":        seq,
				"duration":   time.Since(start),
			}
			if err != nil {
				log.WithFields(fields).WithError(err).Warn("payload delivery failed")
			} else {
				log.WithFields(fields).Debug("payload delivered")
			}
			return err
		}
	}
}

// LoggingConnectMiddleware logs the outcome of every login attempt.
func LoggingConnectMiddleware() ConnectMiddleware {
	return func(next ConnectFunc) ConnectFunc {
		return func(ctx context.Context, conn protocol.Conn) error {
			start := time.Now()
			err := next(ctx, conn)
			fields := log.Fields{
				"connection_id": conn.ConnectionID(),
				"duration":      time.Since(start),
			}
			if err != nil {
				log.WithFields(fields).WithError(err).Warn("login handshake failed")
			} else {
				log.WithFields(fields).Info("login handshake succeeded")
			}
			return err
		}
	}
}
