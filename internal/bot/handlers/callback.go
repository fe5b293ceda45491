package handlers

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
	"github.com/wilesp/plumbflow-platform/internal/models"
)

// HandleCallback processes all callback queries from inline buttons
func HandleCallback(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			ctx.Logger.Warn("callback is nil")
			return nil
		}

		action, arg, ok := ParseCallback(cb.Data)
		if !ok {
			ctx.Logger.Warn("invalid callback format", zap.String("data", cb.Data))
			return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid request"})
		}

		ctx.Logger.Debug("routing callback",
			zap.String("action", action),
			zap.String("arg", arg),
			zap.Int64("user_id", c.Sender().ID),
		)

		switch action {
		case utils.ActionAccept:
			return handleAccept(ctx, c, arg)
		case utils.ActionDecline:
			return handleDecline(ctx, c, arg)
		default:
			ctx.Logger.Warn("unknown callback action",
				zap.String("action", action),
				zap.String("data", cb.Data),
			)
			return c.Respond(&tele.CallbackResponse{Text: "❓ Unknown action"})
		}
	}
}

// ParseCallback splits "action:arg" data, dropping the \f prefix telebot adds
func ParseCallback(data string) (action, arg string, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	// buttons built with a separate data payload arrive as "unique|data"
	data = strings.Replace(data, "|", ":", 1)

	action, arg, found := strings.Cut(data, ":")
	if !found || action == "" || arg == "" {
		return "", "", false
	}
	return action, arg, true
}

func handleAccept(ctx *Context, c tele.Context, leadID string) error {
	dbCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	acc, err := ctx.Dispatch.AcceptLead(dbCtx, leadID, c.Sender().ID)
	if err != nil {
		ctx.Logger.Info("lead acceptance refused",
			zap.String("lead_id", leadID),
			zap.Int64("user_id", c.Sender().ID),
			zap.Error(err),
		)
		return c.Respond(&tele.CallbackResponse{Text: refusal(err), ShowAlert: true})
	}

	// confirmation with customer details goes out through the notifier
	if err := c.Edit(
		"✅ Accepted\\. Customer details are on their way\\.",
		tele.ModeMarkdownV2,
	); err != nil {
		ctx.Logger.Warn("failed to edit message", zap.Error(err))
	}

	return c.Respond(&tele.CallbackResponse{
		Text: "✅ Accepted, " + utils.FormatMoney(acc.Charged) + " charged",
	})
}

func handleDecline(ctx *Context, c tele.Context, leadID string) error {
	dbCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := ctx.Dispatch.DeclineLead(dbCtx, leadID, c.Sender().ID); err != nil {
		ctx.Logger.Info("lead decline refused",
			zap.String("lead_id", leadID),
			zap.Int64("user_id", c.Sender().ID),
			zap.Error(err),
		)
		return c.Respond(&tele.CallbackResponse{Text: refusal(err), ShowAlert: true})
	}

	if err := c.Edit("❌ Declined\\. We will pass it on\\.", tele.ModeMarkdownV2); err != nil {
		ctx.Logger.Warn("failed to edit message", zap.Error(err))
	}

	return c.Respond(&tele.CallbackResponse{Text: "Declined"})
}

// refusal is the alert text for a failed accept or decline
func refusal(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientCredits):
		return "💳 Not enough credit for this lead. Please top up."
	case errors.Is(err, models.ErrLeadExpired):
		return "⌛ This offer has expired."
	case errors.Is(err, models.ErrLeadNotOffered):
		return "This lead is no longer open."
	case errors.Is(err, models.ErrWrongPlumber), errors.Is(err, models.ErrNotFound):
		return "This lead is not available to you."
	default:
		return "😔 Something went wrong. Please try again."
	}
}
