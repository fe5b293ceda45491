package handlers

import (
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
)

// HandleText routes main menu buttons
func HandleText(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		switch strings.TrimSpace(c.Text()) {
		case utils.BtnLeads:
			return HandleLeads(ctx)(c)
		case utils.BtnBalance:
			return HandleBalance(ctx)(c)
		case utils.BtnAvailable:
			return HandleAvailable(ctx)(c)
		case utils.BtnHelp:
			return HandleHelp(ctx)(c)
		default:
			return c.Reply("Please use the menu buttons or /help", utils.MainMenuKeyboard())
		}
	}
}
