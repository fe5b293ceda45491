package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/handlers"
	"github.com/wilesp/plumbflow-platform/internal/bot/middleware"
	"github.com/wilesp/plumbflow-platform/internal/config"
	"github.com/wilesp/plumbflow-platform/internal/dispatch"
	"github.com/wilesp/plumbflow-platform/internal/storage/postgres"
	"github.com/wilesp/plumbflow-platform/internal/storage/redis"
)

// Bot represents the plumbers' Telegram bot
type Bot struct {
	bot      *tele.Bot
	store    *postgres.Store
	cache    *redis.Cache
	notifier *Notifier
	config   *config.Config
	logger   *zap.Logger
}

// New connects to Telegram. Handlers are registered separately with
// RegisterHandlers once the dispatch service exists, since the service
// itself sends through the bot's Notifier.
func New(
	cfg *config.Config,
	store *postgres.Store,
	cache *redis.Cache,
	logger *zap.Logger,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		store:    store,
		cache:    cache,
		notifier: NewNotifier(b, cfg.Location, logger),
		config:   cfg,
		logger:   logger,
	}

	bot.setupMiddleware()

	logger.Info("bot initialized successfully")

	return bot, nil
}

func (b *Bot) setupMiddleware() {
	b.bot.Use(middleware.Recovery(b.logger))

	b.bot.Use(middleware.Logger(b.logger))

	b.bot.Use(middleware.RateLimit(b.cache, b.logger))
}

func (b *Bot) RegisterHandlers(svc *dispatch.Service) {
	ctx := &handlers.Context{
		Store:    b.store,
		Dispatch: svc,
		Config:   b.config,
		Logger:   b.logger,
	}

	b.bot.Handle("/start", handlers.HandleStart(ctx))
	b.bot.Handle("/help", handlers.HandleHelp(ctx))
	b.bot.Handle("/leads", handlers.HandleLeads(ctx))
	b.bot.Handle("/balance", handlers.HandleBalance(ctx))
	b.bot.Handle("/available", handlers.HandleAvailable(ctx))

	b.bot.Handle(tele.OnText, handlers.HandleText(ctx))

	b.bot.Handle(tele.OnCallback, handlers.HandleCallback(ctx))

	b.logger.Info("handlers registered")
}

// Notifier sends dispatch events to plumbers through this bot
func (b *Bot) Notifier() *Notifier {
	return b.notifier
}

// Start polls until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting bot...")

	go b.bot.Start()

	<-ctx.Done()

	b.logger.Info("stopping bot...")
	b.bot.Stop()

	return nil
}
