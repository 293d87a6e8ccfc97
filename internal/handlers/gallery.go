package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"photoflow/internal/models"
	"photoflow/internal/repository"
	"photoflow/internal/service"
)

func (h HandlerSet) ListGallery(c *gin.Context) {
	photos, err := h.photos.ListDone(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list gallery failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch gallery"})
		return
	}

	if photos == nil {
		photos = []models.Photo{}
	}
	c.JSON(http.StatusOK, photos)
}

type deleteGalleryRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h HandlerSet) DeleteGalleryPhotos(c *gin.Context) {
	var req deleteGalleryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()

	for _, id := range req.IDs {
		photo, err := h.photos.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrPhotoNotFound) {
				continue
			}
			h.log.Error().Err(err).Str("photo_id", id).Msg("bulk delete failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete photos"})
			return
		}
		if photo.URL != "" {
			if err := h.store.Remove(ctx, service.ObjectKey(photo.ID, photo.Name)); err != nil {
				h.log.Warn().Err(err).Str("photo_id", id).Msg("remove blob failed")
			}
		}
	}

	if err := h.photos.Delete(ctx, req.IDs); err != nil {
		h.log.Error().Err(err).Msg("bulk delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete photos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
