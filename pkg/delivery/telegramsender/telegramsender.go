package telegramsender

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/crewbase/crewbase/pkg/delivery"
)

// TelegramSender delivers notifications to Telegram chats. Recipients are
// addressed by their contact address (the account email); the chats map
// translates each address to the chat id the bot may message.
type TelegramSender struct {
	bot   *tgbotapi.BotAPI
	chats map[string]int64
}

func New(token string, chats map[string]int64) (*TelegramSender, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, chats)
}

// NewWithEndpoint targets a non-default Bot API endpoint, for tests and
// self-hosted Bot API servers.
func NewWithEndpoint(token, endpoint string, chats map[string]int64) (*TelegramSender, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: bot, chats: chats}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, msg delivery.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, ok := s.chats[msg.To]
	if !ok {
		return fmt.Errorf("no telegram chat mapped for %q", msg.To)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return err
	}
	return nil
}
