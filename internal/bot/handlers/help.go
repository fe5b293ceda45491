package handlers

import (
	tele "gopkg.in/telebot.v3"

	"github.com/wilesp/plumbflow-platform/internal/bot/utils"
)

// /help
func HandleHelp(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Send(
			utils.FormatHelpMessage(),
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
