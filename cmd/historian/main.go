// cmd/historian drains the session action journal from Redis into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/cache"
	"github.com/ARTFROST1/DuoLoveCursor/internal/config"
	"github.com/ARTFROST1/DuoLoveCursor/internal/database"
	"github.com/ARTFROST1/DuoLoveCursor/internal/historian"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.Level())
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	st := database.NewStore(pool)
	if err := st.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewQueue(rdb, cfg.HistorianQueueName),
		st,
		cfg.HistorianBatchSize,
		cfg.HistorianFlushInterval(),
		logger,
	)
	if err := svc.Run(ctx); err != nil {
		logger.Errorf("historian: %v", err)
		return
	}
	logger.Info("historian shutdown complete")
}
