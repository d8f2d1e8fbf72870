package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/merridale/bookline/internal/domain"
)

// TelegramSender mirrors warnings, errors and reminders to a Telegram chat
// so they reach the operator even when the agent runs unattended.
type TelegramSender struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{api: api, chatID: chatID}, nil
}

func (s *TelegramSender) Send(n domain.Notification) error {
	text := fmt.Sprintf("%s %s", severityEmoji(n.Severity), n.Title)
	if n.Message != "" {
		text += "\n" + n.Message
	}
	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func severityEmoji(sev domain.Severity) string {
	switch sev {
	case domain.SeveritySuccess:
		return "✅"
	case domain.SeverityWarning:
		return "⚠️"
	case domain.SeverityError:
		return "❌"
	default:
		return "ℹ️"
	}
}
