package handlers

import (
	"context"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
)

// /start
func HandleStart(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx.Logger.Info("user started bot",
			zap.Int64("user_id", c.Sender().ID),
			zap.String("username", c.Sender().Username),
		)

		dbCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		p, err := currentPlumber(ctx, c, dbCtx)
		if err != nil {
			return c.Send("😔 Something went wrong. Please try again later.")
		}
		if p == nil {
			return nil
		}

		return c.Send(
			utils.FormatWelcomeMessage(p),
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
