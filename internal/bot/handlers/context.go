package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
	"github.com/wilesp/plumbflow-platform/internal/config"
	"github.com/wilesp/plumbflow-platform/internal/dispatch"
	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/storage/postgres"
)

const requestTimeout = 10 * time.Second

// Context contains deps for all handlers
type Context struct {
	Store    *postgres.Store
	Dispatch *dispatch.Service
	Config   *config.Config
	Logger   *zap.Logger
}

// currentPlumber loads the sender's plumber profile. A nil plumber with a nil
// error means the unregistered notice was already sent.
func currentPlumber(ctx *Context, c tele.Context, dbCtx context.Context) (*models.Plumber, error) {
	userID := c.Sender().ID

	p, err := ctx.Store.GetPlumberByTelegramID(dbCtx, userID)
	if err != nil {
		ctx.Logger.Error("failed to get plumber",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	if p == nil {
		ctx.Logger.Info("message from unlinked account", zap.Int64("user_id", userID))
		return nil, c.Send(utils.FormatUnregisteredMessage(userID), tele.ModeMarkdownV2)
	}

	return p, nil
}
