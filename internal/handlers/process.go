package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProcessTick is the manual trigger: it runs exactly one start-or-advance
// pass over all pending photos.
func (h HandlerSet) ProcessTick(c *gin.Context) {
	if err := h.driver.RunTick(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("processing tick failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process photos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
