package handlers

import (
	"context"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
)

// /leads lists the offers waiting on the plumber
func HandleLeads(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		dbCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		p, err := currentPlumber(ctx, c, dbCtx)
		if err != nil {
			return c.Send("😔 Could not load your leads. Please try again later.")
		}
		if p == nil {
			return nil
		}

		offers, err := ctx.Store.OfferedLeads(dbCtx, p.ID)
		if err != nil {
			return c.Send("😔 Could not load your leads. Please try again later.")
		}

		if len(offers) == 0 {
			return c.Send(utils.FormatNoLeadsMessage(), utils.MainMenuKeyboard(), tele.ModeMarkdownV2)
		}

		for i := range offers {
			offer := &offers[i]
			offer.Plumber = *p

			quote, err := ctx.Dispatch.Quote(dbCtx, &offer.Lead)
			if err != nil {
				ctx.Logger.Warn("lead has no quote",
					zap.String("lead_id", offer.Lead.ID),
					zap.Error(err),
				)
			}

			if err := c.Send(
				utils.FormatLeadOffer(offer, quote, ctx.Config.Location),
				utils.LeadKeyboard(offer.Lead.ID),
				tele.ModeMarkdownV2,
			); err != nil {
				ctx.Logger.Error("failed to send lead",
					zap.String("lead_id", offer.Lead.ID),
					zap.Error(err),
				)
				return err
			}
		}

		return nil
	}
}
