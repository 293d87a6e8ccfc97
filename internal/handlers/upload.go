package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"photoflow/internal/service"
)

func (h HandlerSet) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	defer file.Close()

	result, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		File:    file,
		Header:  header,
		PhotoID: c.PostForm("id"),
	})
	if err != nil {
		var retryErr *service.RetryableError
		if errors.As(err, &retryErr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "failed to upload file",
				"retryCount": retryErr.RetryCount,
				"id":         retryErr.ID,
				"canRetry":   retryErr.CanRetry,
			})
			return
		}
		if errors.Is(err, service.ErrEmptyFile) ||
			errors.Is(err, service.ErrUnsupportedType) ||
			errors.Is(err, service.ErrUnknownPhoto) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
		return
	}

	c.JSON(http.StatusOK, result)
}
