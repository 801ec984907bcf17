package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskhall/engine/internal/queue/tasks"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/pkg/config"
	"github.com/taskhall/engine/pkg/database"
	"github.com/taskhall/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required by the worker")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Logger:      log.Sugar(),
	})
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	// Initialize DB and services for task handlers
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	ledgerSvc := services.NewLedgerService(db, userRepo, repository.NewLedgerRepository(db))
	surveySvc := services.NewSurveyService(db, repository.NewSurveyRepository(db), ledgerSvc, services.PublishCostPolicy{
		Percent: cfg.PublishCostPercent,
		Flat:    cfg.PublishCostFlat,
	})

	mux := asynq.NewServeMux()
	tasks.NewMaintenanceHandler(surveySvc, ledgerSvc).Register(mux)

	sched, err := startScheduler(client, cfg.ExpireInterval, cfg.AuditInterval)
	if err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	if err := sched.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", zap.Error(err))
	}
	// Allow in-flight tasks to finish gracefully
	srv.Shutdown()
}
