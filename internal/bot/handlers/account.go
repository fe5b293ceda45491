package handlers

import (
	"context"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
)

const recentTransactions = 5

// /balance
func HandleBalance(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		dbCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		p, err := currentPlumber(ctx, c, dbCtx)
		if err != nil {
			return c.Send("😔 Could not load your balance. Please try again later.")
		}
		if p == nil {
			return nil
		}

		txs, err := ctx.Store.RecentTransactions(dbCtx, p.ID, recentTransactions)
		if err != nil {
			// the balance alone is still worth showing
			txs = nil
		}

		return c.Send(
			utils.FormatBalance(p, txs, ctx.Config.Location),
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}

// /available flips same-day availability
func HandleAvailable(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		dbCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		p, err := currentPlumber(ctx, c, dbCtx)
		if err != nil {
			return c.Send("😔 Could not update availability. Please try again later.")
		}
		if p == nil {
			return nil
		}

		available := !p.AvailableToday
		if err := ctx.Store.SetAvailableToday(dbCtx, c.Sender().ID, available); err != nil {
			return c.Send("😔 Could not update availability. Please try again later.")
		}

		ctx.Logger.Info("plumber availability toggled",
			zap.Int64("plumber_id", p.ID),
			zap.Bool("available", available),
		)

		return c.Send(
			utils.FormatAvailability(available),
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
