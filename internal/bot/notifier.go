package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

// ErrNoTelegram is returned for plumbers without a linked Telegram account
var ErrNoTelegram = errors.New("plumber has no telegram account")

// Sender is the part of *tele.Bot the notifier uses
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Notifier struct {
	sender Sender
	loc    *time.Location
	logger *zap.Logger
}

func NewNotifier(sender Sender, loc *time.Location, logger *zap.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{sender: sender, loc: loc, logger: logger}
}

func (n *Notifier) NotifyLeadOffer(ctx context.Context, offer *models.LeadOffer) error {
	var quote *pricing.Breakdown
	if len(offer.Lead.Breakdown) > 0 {
		var b pricing.Breakdown
		if err := json.Unmarshal(offer.Lead.Breakdown, &b); err == nil {
			quote = &b
		}
	}

	return n.send(ctx, &offer.Plumber,
		utils.FormatLeadOffer(offer, quote, n.loc),
		utils.LeadKeyboard(offer.Lead.ID),
	)
}

func (n *Notifier) NotifyAcceptance(ctx context.Context, acc *models.Acceptance) error {
	return n.send(ctx, &acc.Plumber, utils.FormatAcceptance(acc), nil)
}

func (n *Notifier) NotifyLowCredit(ctx context.Context, p *models.Plumber, balance float64) error {
	return n.send(ctx, p, utils.FormatLowCreditMessage(balance), nil)
}

func (n *Notifier) NotifyOfferExpired(ctx context.Context, offer *models.LeadOffer) error {
	return n.send(ctx, &offer.Plumber, utils.FormatOfferExpiredMessage(offer), nil)
}

func (n *Notifier) send(ctx context.Context, p *models.Plumber, text string, markup *tele.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.TelegramID == nil {
		return fmt.Errorf("plumber %d: %w", p.ID, ErrNoTelegram)
	}

	opts := []interface{}{tele.ModeMarkdownV2}
	if markup != nil {
		opts = append(opts, markup)
	}

	if _, err := n.sender.Send(&tele.User{ID: *p.TelegramID}, text, opts...); err != nil {
		return fmt.Errorf("send to plumber %d: %w", p.ID, err)
	}

	n.logger.Debug("notification sent", zap.Int64("plumber_id", p.ID))
	return nil
}
