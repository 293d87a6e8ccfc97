package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photoflow/internal/config"
	"photoflow/internal/processing"
	"photoflow/internal/repository"
	"photoflow/internal/service"
	"photoflow/internal/storage"
)

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	photos  *repository.PhotoRepository
	store   *storage.ObjectStore
	uploads *service.UploadService
	driver  *processing.Driver
	db      *pgxpool.Pool
	cache   *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	photos *repository.PhotoRepository,
	store *storage.ObjectStore,
	uploads *service.UploadService,
	driver *processing.Driver,
	db *pgxpool.Pool,
	cache *redis.Client,
) HandlerSet {
	return HandlerSet{
		log:     log,
		cfg:     cfg,
		photos:  photos,
		store:   store,
		uploads: uploads,
		driver:  driver,
		db:      db,
		cache:   cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/upload", h.Upload)
	router.GET("/photos", h.ListPhotos)
	router.GET("/photos/:id", h.GetPhoto)
	router.DELETE("/photos/:id", h.DeletePhoto)
	router.GET("/gallery", h.ListGallery)
	router.DELETE("/gallery", h.DeleteGalleryPhotos)
	router.POST("/process", h.ProcessTick)
	router.GET("/events", h.Events)
}
