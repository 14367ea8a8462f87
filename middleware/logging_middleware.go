package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"toposim/message"
)

// LoggingMiddleware records call duration and any error for each request
// that passes through the chain, via the global zerolog logger.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			start := time.Now()

			resp := next(ctx, req)
			duration := time.Since(start)

			if resp.Error != "" {
				log.Error().Dur("duration", duration).Str("error", resp.Error).Msg("handled request")
			} else {
				log.Info().Dur("duration", duration).Msg("handled request")
			}
			return resp
		}
	}
}
