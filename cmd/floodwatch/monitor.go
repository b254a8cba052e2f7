package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/flood-bot/internal/api"
	"github.com/abelzeko/flood-bot/internal/config"
	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/integration"
	"github.com/abelzeko/flood-bot/internal/integration/notify"
	"github.com/abelzeko/flood-bot/internal/integration/openai"
	"github.com/abelzeko/flood-bot/internal/repository"
	"github.com/abelzeko/flood-bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

type MonitorCmd struct {
	Source  string `help:"Reading source: auto, serial or mqtt. Auto uses mqtt when MQTT_BROKER is set." enum:"auto,serial,mqtt" default:"auto"`
	WithBot bool   `help:"Also run the Telegram bot in this process."`
	NoHTTP  bool   `name:"no-http" help:"Do not start the HTTP server."`
}

func (m *MonitorCmd) Run(g *Globals) error {
	log.Println("Starting flood monitor...")
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := repository.NewSQLiteFloodRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	var bot *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
	}

	alerter := engine.NewAlerter(alertChannels(cfg, repo, bot),
		engine.WithCooldown(cfg.AlertCooldown),
		engine.WithPolicy(cfg.AlertPolicy),
	)

	opts := []usecases.Option{
		usecases.WithAlerter(alerter),
		usecases.WithLocation(cfg.StationLocation),
		usecases.WithDefaultForecast(cfg.DefaultForecast),
	}
	if cfg.BulletinURL != "" {
		opts = append(opts, usecases.WithBulletin(integration.NewBulletinScraper(cfg.BulletinURL)))
	}
	if m.WithBot && cfg.OpenAIAPIKey != "" {
		if svc, err := openai.NewOpenAIService(cfg.OpenAIAPIKey); err == nil {
			opts = append(opts, usecases.WithOpenAI(svc))
		}
	}
	useCase := usecases.NewStationUseCase(repo, cfg.Calibration, opts...)

	scheduler, err := schedule(ctx, cfg, useCase)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if !m.NoHTTP {
		server := api.NewHTTPServer(cfg.HTTPAddr, useCase)
		go func() {
			if err := server.Run(ctx); err != nil {
				log.Printf("HTTP server stopped: %v", err)
			}
		}()
	}

	if m.WithBot {
		if bot == nil {
			return errors.New("TELEGRAM_BOT_TOKEN is required for --with-bot")
		}
		go api.NewTelegramBot(bot, useCase).Start(ctx)
	}

	source := m.lineSource(cfg)
	err = source.Run(ctx, func(ctx context.Context, line string) {
		// Invalid lines are logged by the use case and never stop the loop.
		_ = useCase.HandleLine(ctx, line)
	})
	if errors.Is(err, context.Canceled) {
		log.Println("Flood monitor stopped")
		return nil
	}
	return err
}

func (m *MonitorCmd) lineSource(cfg *config.Config) integration.LineSource {
	useMQTT := cfg.MQTTEnabled()
	switch m.Source {
	case "serial":
		useMQTT = false
	case "mqtt":
		useMQTT = true
	}

	if useMQTT {
		log.Printf("Reading sensor lines from MQTT topic %s", cfg.MQTTTopic)
		return integration.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword)
	}
	log.Printf("Reading sensor lines from serial port %s", cfg.SerialPort)
	return integration.NewSerialSource(cfg.SerialPort, cfg.SerialBaud)
}

// alertChannels builds one channel per configured provider, each behind a
// circuit breaker. Without any provider alerts go to the log.
func alertChannels(cfg *config.Config, repo repository.FloodRepository, bot *tgbotapi.BotAPI) []engine.Channel {
	var channels []engine.Channel

	if cfg.TwilioEnabled() {
		sms := notify.NewSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		channels = append(channels, engine.Channel{
			Name:       "sms",
			Notifier:   notify.NewBreaker("twilio", sms, 3, time.Minute),
			Recipients: engine.StaticRecipients(cfg.EmergencyNumbers),
		})
		log.Printf("SMS alerts enabled for %d emergency numbers", len(cfg.EmergencyNumbers))
	} else {
		log.Println("Twilio is not configured, SMS alerts disabled")
	}

	if bot != nil {
		channels = append(channels, engine.Channel{
			Name:       "telegram",
			Notifier:   notify.NewBreaker("telegram", notify.NewTelegram(bot), 3, time.Minute),
			Recipients: usecases.SubscriberRecipients(repo),
		})
	}

	if len(channels) == 0 {
		channels = append(channels, engine.Channel{
			Name:       "log",
			Notifier:   notify.Log{},
			Recipients: engine.StaticRecipients{"console"},
		})
	}
	return channels
}

// schedule registers the bulletin refresh and reading retention jobs.
func schedule(ctx context.Context, cfg *config.Config, useCase *usecases.StationUseCase) (*cron.Cron, error) {
	c := cron.New()

	if cfg.BulletinURL != "" {
		refresh := func() {
			if _, err := useCase.RefreshForecastFromBulletin(ctx); err != nil {
				log.Printf("Scheduled bulletin refresh failed: %v", err)
			}
		}
		if _, err := c.AddFunc(cfg.BulletinSchedule, refresh); err != nil {
			return nil, fmt.Errorf("failed to set up bulletin job: %w", err)
		}
		// Run immediately on startup
		go refresh()
		log.Printf("Bulletin refresh scheduled with %q", cfg.BulletinSchedule)
	}

	_, err := c.AddFunc(cfg.PruneSchedule, func() {
		if _, err := useCase.PruneReadings(ctx, cfg.ReadingRetention); err != nil {
			log.Printf("Scheduled pruning failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up pruning job: %w", err)
	}

	return c, nil
}
