package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RouteLogger logs each request exit with status, duration and trace ID.
// Entry is logged at debug so production logs carry one line per request.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		start := time.Now()
		log.Debug().Str("trace_id", traceID).Str("method", c.Method()).Str("path", c.Path()).Msg("Entering request")
		err := c.Next()
		ms := time.Since(start).Milliseconds()

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case err != nil || status >= 500:
			ev = log.Error().Err(err)
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev.Str("trace_id", traceID).Str("method", c.Method()).Str("path", c.Path()).Int("status", status).Int64("ms", ms).Msg("Exiting request")
		return err
	}
}
