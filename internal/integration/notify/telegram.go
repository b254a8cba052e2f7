// Package notify delivers flood alerts over external channels.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abelzeko/flood-bot/internal/engine"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts to Telegram chats. Recipients are chat IDs.
type Telegram struct {
	bot Sender
}

// NewTelegram creates a Telegram notifier using bot
func NewTelegram(bot Sender) *Telegram {
	return &Telegram{bot: bot}
}

// Send implements engine.Notifier
func (t *Telegram) Send(ctx context.Context, message string, recipients []string) []engine.Delivery {
	deliveries := make([]engine.Delivery, 0, len(recipients))
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			deliveries = append(deliveries, engine.Delivery{Recipient: r, Err: err})
			continue
		}

		chatID, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			deliveries = append(deliveries, engine.Delivery{Recipient: r, Err: fmt.Errorf("invalid chat id %q", r)})
			continue
		}

		_, err = t.bot.Send(tgbotapi.NewMessage(chatID, message))
		deliveries = append(deliveries, engine.Delivery{Recipient: r, Err: err})
	}
	return deliveries
}
