// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	useCase *usecases.StationUseCase
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(bot *tgbotapi.BotAPI, useCase *usecases.StationUseCase) *TelegramBot {
	return &TelegramBot{
		bot:     bot,
		useCase: useCase,
	}
}

// Start listens for and handles Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			log.Println("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			log.Printf("Received message from %s (ID: %d): %s",
				userName(update.Message),
				update.Message.Chat.ID,
				update.Message.Text)

			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage answers a Telegram message
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	msg := tgbotapi.NewMessage(message.Chat.ID, t.reply(ctx, message))

	log.Printf("Sending response to user %s", userName(message))
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// reply builds the response text for a message
func (t *TelegramBot) reply(ctx context.Context, message *tgbotapi.Message) string {
	if message.IsCommand() {
		return t.handleCommand(ctx, message)
	}
	return t.handleNonCommand(ctx, message)
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) string {
	switch message.Command() {
	case "start":
		log.Printf("Handling /start command for user %s", userName(message))
		return "Welcome to the Flood Bot! Use /status to see the river or /help for more information."

	case "help":
		return t.useCase.FormatHelp()

	case "status":
		log.Printf("Handling /status command for user %s", userName(message))
		s, err := t.useCase.Snapshot(ctx)
		if err != nil {
			log.Printf("Error loading station status: %v", err)
			return "Error fetching river status. Please try again later."
		}
		return t.useCase.FormatStatus(s)

	case "forecast":
		args := message.CommandArguments()
		log.Printf("Handling /forecast command with args '%s' for user %s", args, userName(message))
		return t.handleForecastCommand(ctx, args)

	case "subscribe":
		if err := t.useCase.Subscribe(ctx, message.Chat.ID, userName(message)); err != nil {
			log.Printf("Error subscribing chat %d: %v", message.Chat.ID, err)
			return "Could not subscribe this chat. Please try again later."
		}
		return "🚨 This chat will now receive flood alerts. Use /unsubscribe to stop."

	case "unsubscribe":
		removed, err := t.useCase.Unsubscribe(ctx, message.Chat.ID)
		if err != nil {
			log.Printf("Error unsubscribing chat %d: %v", message.Chat.ID, err)
			return "Could not unsubscribe this chat. Please try again later."
		}
		if !removed {
			return "This chat is not subscribed to flood alerts."
		}
		return "This chat will no longer receive flood alerts."

	default:
		log.Printf("Received unknown command /%s from user %s", message.Command(), userName(message))
		return "Unknown command. Use /help to see available commands."
	}
}

// handleForecastCommand processes the /forecast [mm/h] [hours] command
func (t *TelegramBot) handleForecastCommand(ctx context.Context, args string) string {
	in, err := parseForecastArgs(args)
	if err != nil {
		return "Please specify rainfall intensity in mm/h and duration in hours. Example: /forecast 12.5 3"
	}

	a, err := t.useCase.RunForecast(ctx, in)
	if err != nil {
		log.Printf("Rejected forecast %+v: %v", in, err)
		return "Intensity must be 0 or more and duration above 0 hours. Example: /forecast 12.5 3"
	}
	return t.useCase.FormatAssessment(a)
}

func parseForecastArgs(args string) (entities.ForecastInput, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return entities.ForecastInput{}, fmt.Errorf("expected 2 arguments, got %d", len(fields))
	}
	intensity, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil {
		return entities.ForecastInput{}, err
	}
	duration, err := strconv.ParseFloat(strings.ReplaceAll(fields[1], ",", "."), 64)
	if err != nil {
		return entities.ForecastInput{}, err
	}
	return entities.ForecastInput{IntensityMMPerHour: intensity, DurationHours: duration}, nil
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message) string {
	log.Printf("Received non-command message from user %s: %s", userName(message), message.Text)

	reply, err := t.useCase.HandleNaturalLanguageQuery(ctx, message.Text)
	if err != nil {
		log.Printf("Error handling query: %v", err)
		return "I don't understand. Use /help to see available commands."
	}
	return reply
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}
