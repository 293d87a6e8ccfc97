package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"photoflow/internal/models"
)

type updateEvent struct {
	Type   string         `json:"type"`
	Photos []models.Photo `json:"photos"`
}

// Events is the push-mode driver: a server-sent event stream that runs one
// processing tick per interval for the lifetime of the connection and
// publishes the pending-photo snapshot after each. It ends when the client
// disconnects or two sends in a row fail.
func (h HandlerSet) Events(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	failures := 0

	publish := func() bool {
		photos, err := h.driver.Snapshot(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("event stream snapshot failed")
			return true
		}
		if photos == nil {
			photos = []models.Photo{}
		}
		payload, err := json.Marshal(updateEvent{Type: "update", Photos: photos})
		if err != nil {
			h.log.Error().Err(err).Msg("event stream encode failed")
			return true
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			failures++
			return failures < 2
		}
		c.Writer.Flush()
		failures = 0
		return true
	}

	// Initial snapshot so the client renders without waiting a full tick.
	if !publish() {
		return
	}

	ticker := time.NewTicker(h.cfg.Processing.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.driver.RunTick(ctx); err != nil {
				// The tick aborts but the photos stay pending; the
				// next tick picks them up again.
				h.log.Error().Err(err).Msg("event stream tick failed")
			}
			if !publish() {
				return
			}
		}
	}
}
