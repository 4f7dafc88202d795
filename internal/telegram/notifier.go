package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

// Notifier sends operator messages to a single admin chat.
type Notifier struct {
	s      sender
	chatID int64
}

func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Notifier{s: botAPISender{api: api}, chatID: chatID}, nil
}

// Notify sends text, truncated to fit one message.
func (n *Notifier) Notify(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, truncate(text, maxMessageLen))
	msg.DisableWebPagePreview = true
	if _, err := n.s.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
