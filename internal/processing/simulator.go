package processing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"photoflow/internal/models"
	"photoflow/internal/repository"
)

// PhotoStore is the slice of the persistence layer the simulator needs.
// *repository.PhotoRepository satisfies it; GetByID returns
// repository.ErrPhotoNotFound for absent photos.
type PhotoStore interface {
	GetByID(ctx context.Context, id string) (models.Photo, error)
	ListProcessing(ctx context.Context) ([]models.Photo, error)
	Update(ctx context.Context, id string, upd models.PhotoUpdate) error
}

// Config tunes the simulated pipeline.
type Config struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	FailureRate float64
	MaxRetries  int
}

// Simulator owns the transient job map for simulated photo processing.
// The map is process-local: with multiple server instances each holds its
// own jobs, and a job lost on restart is rebuilt from the persisted photo
// with a fresh randomized timer. Single-instance deployments only.
type Simulator struct {
	store PhotoStore
	cfg   Config
	log   zerolog.Logger

	now func() time.Time
	rng *rand.Rand

	mu   sync.Mutex
	jobs map[string]*job
}

func NewSimulator(store PhotoStore, cfg Config, log zerolog.Logger) *Simulator {
	return &Simulator{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "simulator").Logger(),
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		jobs:  make(map[string]*job),
	}
}

// Start creates a job for a queued photo and persists the transition to
// processing. It is idempotent: a photo with a live job is left alone.
func (s *Simulator) Start(ctx context.Context, photoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx, photoID)
}

func (s *Simulator) startLocked(ctx context.Context, photoID string) error {
	if _, ok := s.jobs[photoID]; ok {
		return nil
	}

	now := s.now()
	spread := s.cfg.MaxDuration - s.cfg.MinDuration
	j := &job{
		startedAt: now,
		duration:  s.cfg.MinDuration + time.Duration(s.rng.Float64()*float64(spread)),
		willFail:  s.rng.Float64() < s.cfg.FailureRate,
	}
	j.appendLog(now, "Processing started")
	s.jobs[photoID] = j

	s.log.Debug().
		Str("photo_id", photoID).
		Dur("duration", j.duration).
		Bool("will_fail", j.willFail).
		Msg("job started")

	return s.store.Update(ctx, photoID, models.PhotoUpdate{
		Status:   ptr(models.PhotoStatusProcessing),
		Progress: ptr(0),
		Logs:     j.snapshotLogs(),
	})
}

// Advance moves one photo's simulated run forward and reports whether the
// photo still needs future ticks. A photo with no live job is rehydrated
// from the store if it is still queued or processing; anything else is a
// no-op. Store failures propagate to the caller.
func (s *Simulator) Advance(ctx context.Context, photoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[photoID]
	if !ok {
		photo, err := s.store.GetByID(ctx, photoID)
		if err != nil {
			if errors.Is(err, repository.ErrPhotoNotFound) {
				return false, nil
			}
			return false, err
		}
		if photo.Status == models.PhotoStatusQueued || photo.Status == models.PhotoStatusProcessing {
			if err := s.startLocked(ctx, photoID); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	}

	now := s.now()
	elapsed := now.Sub(j.startedAt)
	progress := Progress(elapsed, j.duration)

	if j.willFail && inFailureWindow(progress) {
		delete(s.jobs, photoID)

		photo, err := s.store.GetByID(ctx, photoID)
		if err != nil {
			return false, err
		}
		verdict := Evaluate(elapsed, j.duration, j.willFail, photo.RetryCount, s.cfg.MaxRetries)
		return s.failLocked(ctx, photoID, j, verdict, photo.RetryCount)
	}

	j.emitMilestone(now, progress)

	if progress >= 100 {
		delete(s.jobs, photoID)
		j.appendLog(now, "Processing completed successfully")

		s.log.Info().Str("photo_id", photoID).Msg("processing complete")

		err := s.store.Update(ctx, photoID, models.PhotoUpdate{
			Status:      ptr(models.PhotoStatusDone),
			Progress:    ptr(100),
			ProcessedAt: ptr(now),
			Logs:        j.snapshotLogs(),
		})
		return false, err
	}

	err := s.store.Update(ctx, photoID, models.PhotoUpdate{
		Status:   ptr(models.PhotoStatusProcessing),
		Progress: ptr(progress),
		Logs:     j.snapshotLogs(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// failLocked records a mid-flight failure, re-queueing the photo when retry
// budget remains and marking it terminal otherwise.
func (s *Simulator) failLocked(ctx context.Context, photoID string, j *job, verdict Verdict, retryCount int) (bool, error) {
	attempt := retryCount + 1
	now := s.now()
	j.appendLog(now, fmt.Sprintf("Processing failed: Unexpected error occurred (Attempt %d/%d)", attempt, s.cfg.MaxRetries))

	if verdict.Outcome == OutcomeRetry {
		j.appendLog(now, "Retrying processing...")

		s.log.Warn().
			Str("photo_id", photoID).
			Int("attempt", attempt).
			Msg("simulated failure, re-queueing")

		err := s.store.Update(ctx, photoID, models.PhotoUpdate{
			Status:     ptr(models.PhotoStatusQueued),
			Progress:   ptr(0),
			ClearError: true,
			Logs:       j.snapshotLogs(),
			RetryCount: ptr(attempt),
		})
		if err != nil {
			return false, err
		}
		if err := s.startLocked(ctx, photoID); err != nil {
			return false, err
		}
		return true, nil
	}

	s.log.Warn().
		Str("photo_id", photoID).
		Int("attempt", attempt).
		Msg("simulated failure, retries exhausted")

	err := s.store.Update(ctx, photoID, models.PhotoUpdate{
		Status:     ptr(models.PhotoStatusFailed),
		Progress:   ptr(verdict.Progress),
		Error:      ptr("Processing failed after multiple attempts"),
		Logs:       j.snapshotLogs(),
		RetryCount: ptr(attempt),
	})
	return false, err
}

func ptr[T any](v T) *T {
	return &v
}
