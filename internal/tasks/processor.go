package tasks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photoflow/internal/processing"
	"photoflow/internal/repository"
	"photoflow/internal/service"
	"photoflow/internal/storage"
)

// Processor executes the scheduler's recurring tasks.
type Processor struct {
	driver       *processing.Driver
	photos       *repository.PhotoRepository
	store        *storage.ObjectStore
	maxRetries   int
	cleanupAfter time.Duration
	logger       zerolog.Logger
}

func NewProcessor(driver *processing.Driver, photos *repository.PhotoRepository, store *storage.ObjectStore, maxRetries int, cleanupAfter time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		driver:       driver,
		photos:       photos,
		store:        store,
		maxRetries:   maxRetries,
		cleanupAfter: cleanupAfter,
		logger:       logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	taskType, _ := msg.Values["type"].(string)

	switch taskType {
	case "tick":
		return p.handleTick(ctx)
	case "cleanup":
		return p.handleCleanup(ctx)
	default:
		p.logger.Warn().Str("type", taskType).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleTick(ctx context.Context) error {
	return p.driver.RunTick(ctx)
}

// handleCleanup purges terminally failed photos older than the retention
// window, blobs included.
func (p *Processor) handleCleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-p.cleanupAfter)
	photos, err := p.photos.ListFailedBefore(ctx, p.maxRetries, cutoff)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return nil
	}

	ids := make([]string, 0, len(photos))
	for _, photo := range photos {
		if photo.URL != "" {
			if err := p.store.Remove(ctx, service.ObjectKey(photo.ID, photo.Name)); err != nil {
				p.logger.Warn().Err(err).Str("photo_id", photo.ID).Msg("cleanup blob failed")
			}
		}
		ids = append(ids, photo.ID)
	}

	if err := p.photos.Delete(ctx, ids); err != nil {
		return err
	}

	p.logger.Info().Int("count", len(ids)).Msg("purged terminal failures")
	return nil
}
