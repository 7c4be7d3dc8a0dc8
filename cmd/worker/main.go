// Command worker consumes recognition messages from Redis and records attendance.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"faceattend/internal/attendance"
	"faceattend/internal/config"
	"faceattend/internal/logging"
	"faceattend/internal/queue"
	"faceattend/internal/store"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.QueueBackend != "redis" {
		return errors.New("the standalone worker needs QUEUE_BACKEND=redis; the memory queue is consumed inside the api process")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis not reachable yet, consumer will retry", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, logger.Named("queue"))
	svc := attendance.NewService(attendance.NewRepository(db.Gorm), loc, logger.Named("attendance"))
	return attendance.NewWorker(svc, logger.Named("worker")).Run(ctx, q)
}
