package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Events streams a session's progress as server-sent events: first every
// event applied so far, then live events. The stream ends with a "done"
// event carrying the final snapshot once the session finishes.
func (a *API) Events(c *gin.Context) {
	sess, ok := a.lookup(c)
	if !ok {
		return
	}
	backlog, events, cancel := sess.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	for _, ev := range backlog {
		c.SSEvent(string(ev.Kind), ev)
	}
	c.Writer.Flush()

	requestDone := c.Request.Context().Done()
	for {
		select {
		case ev, open := <-events:
			if !open {
				c.SSEvent("done", sess.Snapshot())
				c.Writer.Flush()
				return
			}
			c.SSEvent(string(ev.Kind), ev)
			c.Writer.Flush()
		case <-requestDone:
			log.Debug().Str("session_id", sess.ID()).Msg("event stream client gone")
			return
		}
	}
}
