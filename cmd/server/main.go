// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/auth"
	"github.com/ARTFROST1/DuoLoveCursor/internal/cache"
	"github.com/ARTFROST1/DuoLoveCursor/internal/config"
	"github.com/ARTFROST1/DuoLoveCursor/internal/database"
	"github.com/ARTFROST1/DuoLoveCursor/internal/game"
	"github.com/ARTFROST1/DuoLoveCursor/internal/handlers"
	"github.com/ARTFROST1/DuoLoveCursor/internal/middleware"
	"github.com/ARTFROST1/DuoLoveCursor/internal/room"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	var journal *cache.Journal
	if cfg.RedisAddr != "" {
		var rdb *redis.Client
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		journal = cache.NewJournal(rdb, cfg.HistorianQueueName, logger)
		logger.Infof("session journal enabled on %s", cfg.RedisAddr)
	}

	ttl, err := auth.ParseTokenTTL(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatalf("TOKEN_EXPIRE_TIME: %v", err)
	}
	var signer *auth.Signer
	if cfg.AuthPrivateKeyPath != "" {
		signer, err = auth.LoadSigner(cfg.AuthPrivateKeyPath, cfg.AuthPublicKeyPath, ttl)
	} else {
		logger.Warn("no auth key paths configured; generated an ephemeral signing key")
		signer, err = auth.NewSigner(ttl)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	mgr := room.NewManager(room.Config{
		Store:   st,
		Journal: journal,
		Logger:  logger,
		Timing:  cfg.Timing(),
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(
		handlers.SessionWSHandler(logger, mgr, signer),
	))
	mux.Handle("/healthz", middleware.LogMiddleware(logger)(
		handlers.HealthHandler(mgr),
	))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("room shutdown: %v", err)
	}
	journal.Close()
}

// openStore returns the configured store. The pool is nil for the memory driver.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.Store, *pgxpool.Pool, error) {
	if cfg.StoreDriver == config.DriverMemory {
		mem := store.NewMemory()
		mem.AddQuizQuestions(game.QuizLoveSlug, game.SeedQuestions()...)
		logger.Warn("using the in-memory store; nothing survives a restart")
		return mem, nil, nil
	}

	pool, err := database.ConnectDB(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, nil, err
	}
	st := database.NewStore(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Infof("connected to postgres at %s:%s/%s", cfg.PGHost, cfg.PGPort, cfg.PGDatabase)
	return st, pool, nil
}
