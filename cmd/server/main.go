package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"photoflow/internal/cache"
	"photoflow/internal/config"
	"photoflow/internal/database"
	"photoflow/internal/handlers"
	"photoflow/internal/jobs"
	"photoflow/internal/log"
	"photoflow/internal/processing"
	"photoflow/internal/queue"
	"photoflow/internal/repository"
	"photoflow/internal/server"
	"photoflow/internal/service"
	"photoflow/internal/storage"
	"photoflow/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	if err := database.EnsureSchema(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare schema")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	photoRepo := repository.NewPhotoRepository(dbPool)
	simulator := processing.NewSimulator(photoRepo, processing.Config{
		MinDuration: cfg.Processing.MinDuration,
		MaxDuration: cfg.Processing.MaxDuration,
		FailureRate: cfg.Processing.FailureRate,
		MaxRetries:  cfg.Processing.MaxRetries,
	}, logger)
	driver := processing.NewDriver(simulator, photoRepo, logger)
	uploads := service.NewUploadService(photoRepo, objectStore, simulator, cfg.Processing.MaxRetries, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, photoRepo, objectStore, uploads, driver, dbPool, redisClient)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	processor := tasks.NewProcessor(driver, photoRepo, objectStore, cfg.Processing.MaxRetries, cfg.Processing.CleanupAfter, logger)
	consumer := queue.NewConsumer(redisClient, cfg.Redis.Stream, cfg.Redis.Group, cfg.Redis.Consumer, logger, processor)
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	scheduler := jobs.NewScheduler(redisClient, cfg.Redis.Stream, logger)
	if err := scheduler.Start(cfg.Processing.TickInterval); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	scheduler.Stop()

	logger.Info().Msg("server exited cleanly")
}
