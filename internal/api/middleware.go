package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500

	requestIDHeader = "X-Request-ID"
	eventsRoute     = "/api/v1/sessions/:id/events"
)

// ZerologLogger is a Gin middleware that tags each request with an id,
// echoed in X-Request-ID, and logs it once it completes. Event streams are
// logged when the client goes away, so their latency is the stream lifetime.
func ZerologLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		evt := eventForStatus(status).
			Str("request_id", requestID).
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.RequestURI()).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start))
		if id := c.Param("id"); id != "" {
			evt = evt.Str("session_id", id)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		if c.FullPath() == eventsRoute {
			evt.Msg("event stream closed")
			return
		}
		evt.Msg("http request completed")
	}
}

func eventForStatus(status int) *zerolog.Event {
	switch {
	case status >= statusErrorThreshold:
		return log.Error()
	case status >= statusWarnThreshold:
		return log.Warn()
	}
	return log.Info()
}
