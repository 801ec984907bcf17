package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskhall/engine/internal/api"
	"github.com/taskhall/engine/internal/api/handlers"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/pkg/config"
	"github.com/taskhall/engine/pkg/database"
	"github.com/taskhall/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting survey marketplace API",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("db_driver", cfg.DatabaseDriver),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{Verbose: cfg.AppEnv == "development"})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal("auto migration failed", zap.Error(err))
		}
		log.Info("schema migrated")
	}

	// Token denylist: Redis when configured, process memory otherwise
	var denylist services.TokenDenylist
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		denylist = services.NewRedisDenylist(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, revoked tokens are kept in memory")
		denylist = services.NewMemoryDenylist()
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	fillRepo := repository.NewFillRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Initialize services
	ledgerSvc := services.NewLedgerService(db, userRepo, repository.NewLedgerRepository(db))
	authSvc := services.NewAuthService(db, userRepo, ledgerSvc, denylist, services.AuthOptions{
		Secret:      jwtSecret,
		TokenTTL:    cfg.TokenTTL,
		SignupBonus: cfg.SignupBonusPoints,
	})
	userSvc := services.NewUserService(userRepo, cfg.HonorThreshold)
	surveySvc := services.NewSurveyService(db, surveyRepo, ledgerSvc, services.PublishCostPolicy{
		Percent: cfg.PublishCostPercent,
		Flat:    cfg.PublishCostFlat,
	})
	fillSvc := services.NewFillService(db, fillRepo, surveyRepo, userRepo, ledgerSvc, services.FillPolicy{
		MaxDuration:     cfg.MaxFillDuration,
		CreditOnApprove: cfg.CreditOnApprove,
		CreditOnReject:  cfg.CreditOnReject,
	})
	profileSvc := services.NewProfileService(profileRepo)
	reportSvc := services.NewReportService(reportRepo, userRepo, surveyRepo)

	// Create router with dependencies
	router := api.NewRouter(api.Dependencies{
		Sessions:       authSvc,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustProxy:     cfg.TrustProxy,
		HealthHandler:  handlers.NewHealthHandler(db),
		AuthHandler:    handlers.NewAuthHandler(authSvc, cfg.HonorThreshold),
		UsersHandler:   handlers.NewUsersHandler(userSvc, profileSvc),
		SurveysHandler: handlers.NewSurveysHandler(surveySvc, fillSvc),
		FillsHandler:   handlers.NewFillsHandler(fillSvc),
		PointsHandler:  handlers.NewPointsHandler(ledgerSvc, userSvc),
		ReportsHandler: handlers.NewReportsHandler(reportSvc),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
