// Package config loads station settings from config.env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is the env file the station reads when none is given.
const DefaultEnvFile = "config.env"

// Config holds all station settings.
type Config struct {
	Calibration     engine.Calibration
	AlertCooldown   time.Duration
	AlertPolicy     engine.CooldownPolicy
	StationLocation string
	DefaultForecast entities.ForecastInput

	DBPath           string
	ReadingRetention time.Duration
	PruneSchedule    string

	SerialPort string
	SerialBaud int

	// MQTT is used instead of the serial port when a broker is set.
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	EmergencyNumbers []string

	TelegramBotToken string
	OpenAIAPIKey     string

	BulletinURL      string
	BulletinSchedule string

	HTTPAddr string
}

// TwilioEnabled reports whether SMS alerts can be sent.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// MQTTEnabled reports whether readings come from a broker instead of the serial port.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// Load reads path (if it exists) into the environment, then builds the
// config from environment variables. Variables already set win over the file.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cal := engine.DefaultCalibration()
	var err error
	if cal.SensorMaxHeight, err = parseFloat("SENSOR_MAX_HEIGHT_CM", cal.SensorMaxHeight); err != nil {
		return nil, err
	}
	if cal.NormalRiverHeight, err = parseFloat("NORMAL_RIVER_HEIGHT_CM", cal.NormalRiverHeight); err != nil {
		return nil, err
	}
	if cal.NormalFlowRate, err = parseFloat("NORMAL_FLOW_RATE_LPM", cal.NormalFlowRate); err != nil {
		return nil, err
	}
	if cal.AreaKM2, err = parseFloat("CATCHMENT_AREA_KM2", cal.AreaKM2); err != nil {
		return nil, err
	}
	if cal.ReservoirCapacity, err = parseFloat("RESERVOIR_CAPACITY_M3", cal.ReservoirCapacity); err != nil {
		return nil, err
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	cooldown, err := parseDuration("ALERT_COOLDOWN", engine.DefaultCooldown)
	if err != nil {
		return nil, err
	}
	policy, err := engine.ParseCooldownPolicy(os.Getenv("ALERT_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_POLICY: %w", err)
	}

	retention, err := parseDuration("READING_RETENTION", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	baud, err := parseInt("SERIAL_BAUD", 115200)
	if err != nil {
		return nil, err
	}

	forecast := entities.ForecastInput{DurationHours: 1}
	if forecast.IntensityMMPerHour, err = parseFloat("FORECAST_INTENSITY_MM_H", forecast.IntensityMMPerHour); err != nil {
		return nil, err
	}
	if forecast.DurationHours, err = parseFloat("FORECAST_DURATION_H", forecast.DurationHours); err != nil {
		return nil, err
	}
	if err := engine.ValidateForecast(forecast); err != nil {
		return nil, fmt.Errorf("invalid default forecast: %w", err)
	}

	cfg := &Config{
		Calibration:     cal,
		AlertCooldown:   cooldown,
		AlertPolicy:     policy,
		StationLocation: envOrDefault("STATION_LOCATION", "River Monitoring Station"),
		DefaultForecast: forecast,

		DBPath:           envOrDefault("DB_PATH", "data/flood.db"),
		ReadingRetention: retention,
		PruneSchedule:    envOrDefault("PRUNE_SCHEDULE", "30 3 * * *"),

		SerialPort: envOrDefault("SERIAL_PORT", "COM5"),
		SerialBaud: baud,

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    envOrDefault("MQTT_TOPIC", "floodwatch/sensor"),
		MQTTClientID: envOrDefault("MQTT_CLIENT_ID", "floodwatch"),
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		EmergencyNumbers: splitList(os.Getenv("EMERGENCY_NUMBERS")),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),

		BulletinURL:      os.Getenv("BULLETIN_URL"),
		BulletinSchedule: envOrDefault("BULLETIN_SCHEDULE", "0 * * * *"),

		HTTPAddr: envOrDefault("HTTP_ADDR", ":8080"),
	}

	if cfg.AlertCooldown < 0 {
		return nil, errors.New("ALERT_COOLDOWN must not be negative")
	}
	if cfg.SerialBaud <= 0 {
		return nil, fmt.Errorf("invalid SERIAL_BAUD: %d", cfg.SerialBaud)
	}
	if cfg.ReadingRetention <= 0 {
		return nil, errors.New("READING_RETENTION must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseFloat(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return v, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
