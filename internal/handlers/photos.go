package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"photoflow/internal/models"
	"photoflow/internal/repository"
	"photoflow/internal/service"
)

// ListPhotos returns all photos, or a filtered view via ?status=.
// status=failed returns only failures with retry budget left, which is what
// the upload page needs to offer a retry.
func (h HandlerSet) ListPhotos(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		photos []models.Photo
		err    error
	)
	switch c.Query("status") {
	case "":
		photos, err = h.photos.List(ctx)
	case "processing":
		photos, err = h.photos.ListProcessing(ctx)
	case "done":
		photos, err = h.photos.ListDone(ctx)
	case "failed":
		photos, err = h.photos.ListFailedRetryable(ctx, h.cfg.Processing.MaxRetries)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("list photos failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch photos"})
		return
	}

	if photos == nil {
		photos = []models.Photo{}
	}
	c.JSON(http.StatusOK, photos)
}

func (h HandlerSet) GetPhoto(c *gin.Context) {
	photo, err := h.photos.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		h.log.Error().Err(err).Str("photo_id", c.Param("id")).Msg("get photo failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch photo"})
		return
	}

	c.JSON(http.StatusOK, photo)
}

func (h HandlerSet) DeletePhoto(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	photo, err := h.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		h.log.Error().Err(err).Str("photo_id", id).Msg("delete photo failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete photo"})
		return
	}

	if err := h.photos.Delete(ctx, []string{id}); err != nil {
		h.log.Error().Err(err).Str("photo_id", id).Msg("delete photo failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete photo"})
		return
	}

	if photo.URL != "" {
		if err := h.store.Remove(ctx, service.ObjectKey(photo.ID, photo.Name)); err != nil {
			// Row is already gone; report the orphaned blob and move on.
			h.log.Warn().Err(err).Str("photo_id", id).Msg("remove blob failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
