package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// sender is the single Bot API call the operator Notifier makes; tests
// replace it to capture outgoing alerts and digests.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// botAPISender delivers Notifier messages through a live bot.
type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(msg)
}
