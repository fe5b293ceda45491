package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/bot"
	"github.com/wilesp/plumbflow-platform/internal/bot/scheduler"
	"github.com/wilesp/plumbflow-platform/internal/classifier"
	"github.com/wilesp/plumbflow-platform/internal/config"
	"github.com/wilesp/plumbflow-platform/internal/dispatch"
	"github.com/wilesp/plumbflow-platform/internal/geo"
	"github.com/wilesp/plumbflow-platform/internal/logger"
	"github.com/wilesp/plumbflow-platform/internal/matching"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
	"github.com/wilesp/plumbflow-platform/internal/storage/postgres"
	"github.com/wilesp/plumbflow-platform/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting plumbflow",
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("dispatch_interval", cfg.DispatchInterval),
		zap.Duration("offer_ttl", cfg.OfferTTL),
		zap.String("timezone", cfg.Timezone),
	)

	log.Info("connecting to PostgreSQL...")
	store, err := postgres.New(cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer store.Close()

	log.Info("connecting to Redis...")
	cache, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer cache.Close()

	log.Info("initializing Telegram bot...")
	tgBot, err := bot.New(cfg, store, cache, log)
	if err != nil {
		log.Fatal("failed to create bot", zap.Error(err))
	}

	distance := geo.PrefixEstimator{}
	calculator := pricing.New(distance, pricing.WithClock(func() time.Time {
		return time.Now().In(cfg.Location)
	}))

	svc := dispatch.New(
		store,
		tgBot.Notifier(),
		cache,
		cache,
		classifier.NewKeywordClassifier(),
		matching.New(distance),
		calculator,
		cfg,
		log,
	)

	tgBot.RegisterHandlers(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	sched := scheduler.New(svc, cfg.DispatchInterval, cfg.ExpiryInterval, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	log.Info("bot is running, press Ctrl+C to stop")

	if err := tgBot.Start(ctx); err != nil {
		log.Error("bot stopped with error", zap.Error(err))
	}

	log.Info("shutting down gracefully...")
	sched.Stop()

	log.Info("plumbflow stopped")
}
