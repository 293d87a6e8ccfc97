package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler enqueues recurring tasks into the Redis stream drained by the
// in-process consumer: a processing tick each interval so photos keep
// advancing with no client connected, and a daily cleanup.
type Scheduler struct {
	cron   *cron.Cron
	queue  *redis.Client
	stream string
	log    zerolog.Logger
}

func NewScheduler(queue *redis.Client, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		queue:  queue,
		stream: stream,
		log:    log,
	}
}

func (s *Scheduler) Start(tickInterval time.Duration) error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", tickInterval), s.enqueueTick); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.enqueueCleanup); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits briefly for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueTick() {
	if err := s.enqueueTask(map[string]any{
		"type": "tick",
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue tick failed")
	}
}

func (s *Scheduler) enqueueCleanup() {
	if err := s.enqueueTask(map[string]any{
		"type": "cleanup",
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
	}
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.XAdd(context.Background(), &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 1000,
		Approx: true,
		Values: payload,
	}).Result()
	return err
}
