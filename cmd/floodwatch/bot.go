package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/abelzeko/flood-bot/internal/api"
	"github.com/abelzeko/flood-bot/internal/integration/openai"
	"github.com/abelzeko/flood-bot/internal/repository"
	"github.com/abelzeko/flood-bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BotCmd struct{}

// Run serves the Telegram bot against the readings a monitor process stores.
func (b *BotCmd) Run(g *Globals) error {
	log.Println("Starting Flood Bot...")
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cfg.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := repository.NewSQLiteFloodRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	opts := []usecases.Option{
		usecases.WithLocation(cfg.StationLocation),
		usecases.WithDefaultForecast(cfg.DefaultForecast),
	}
	if cfg.OpenAIAPIKey != "" {
		svc, err := openai.NewOpenAIService(cfg.OpenAIAPIKey)
		if err != nil {
			return fmt.Errorf("failed to initialize OpenAI service: %w", err)
		}
		opts = append(opts, usecases.WithOpenAI(svc))
	} else {
		log.Println("OPENAI_API_KEY not set, free-text queries disabled")
	}
	useCase := usecases.NewStationUseCase(repo, cfg.Calibration, opts...)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	api.NewTelegramBot(bot, useCase).Start(ctx)
	return nil
}
