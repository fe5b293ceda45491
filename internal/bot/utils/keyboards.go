package utils

import (
	tele "gopkg.in/telebot.v3"
)

const (
	BtnLeads     = "📋 Leads"
	BtnBalance   = "💳 Balance"
	BtnAvailable = "🟢 Availability"
	BtnHelp      = "❓ Help"

	ActionAccept  = "lead_accept"
	ActionDecline = "lead_decline"
)

func MainMenuKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}

	menu.Reply(
		menu.Row(menu.Text(BtnLeads), menu.Text(BtnBalance)),
		menu.Row(menu.Text(BtnAvailable), menu.Text(BtnHelp)),
	)

	return menu
}

// LeadKeyboard carries the lead id in the callback data, "lead_accept:<id>"
func LeadKeyboard(leadID string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	btnAccept := menu.Data("✅ Accept", ActionAccept+":"+leadID)
	btnDecline := menu.Data("❌ Decline", ActionDecline+":"+leadID)

	menu.Inline(menu.Row(btnAccept, btnDecline))

	return menu
}
