package handlers

import (
	tele "gopkg.in/telebot.v3"
)

// Fallback answers private-chat messages that matched nothing. Group chatter
// is ignored.
func Fallback() Handler {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil || chat.Type != tele.ChatPrivate {
			return nil
		}

		return c.Send(msgUnknownInput)
	}
}
