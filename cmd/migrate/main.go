package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/taskhall/engine/internal/repository"
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

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{Verbose: true})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
