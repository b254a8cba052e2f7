package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, engine.DefaultCalibration(), cfg.Calibration)
	assert.Equal(t, 1800*time.Second, cfg.AlertCooldown)
	assert.Equal(t, engine.AdvanceOnAnySuccess, cfg.AlertPolicy)
	assert.Equal(t, "River Monitoring Station", cfg.StationLocation)
	assert.Equal(t, 0.0, cfg.DefaultForecast.IntensityMMPerHour)
	assert.Equal(t, 1.0, cfg.DefaultForecast.DurationHours)
	assert.Equal(t, "data/flood.db", cfg.DBPath)
	assert.Equal(t, "COM5", cfg.SerialPort)
	assert.Equal(t, 115200, cfg.SerialBaud)
	assert.Equal(t, "0 * * * *", cfg.BulletinSchedule)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.EmergencyNumbers)
	assert.False(t, cfg.TwilioEnabled())
	assert.False(t, cfg.MQTTEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SENSOR_MAX_HEIGHT_CM", "30")
	t.Setenv("NORMAL_RIVER_HEIGHT_CM", "12.5")
	t.Setenv("RESERVOIR_CAPACITY_M3", "80000")
	t.Setenv("ALERT_COOLDOWN", "10m")
	t.Setenv("ALERT_POLICY", "attempt")
	t.Setenv("SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("SERIAL_BAUD", "9600")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550000000")
	t.Setenv("EMERGENCY_NUMBERS", "+15551111111, +15552222222,,")
	t.Setenv("FORECAST_INTENSITY_MM_H", "4.5")
	t.Setenv("FORECAST_DURATION_H", "6")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Calibration.SensorMaxHeight)
	assert.Equal(t, 12.5, cfg.Calibration.NormalRiverHeight)
	assert.Equal(t, 80000.0, cfg.Calibration.ReservoirCapacity)
	assert.Equal(t, 10*time.Minute, cfg.AlertCooldown)
	assert.Equal(t, engine.AdvanceOnAttempt, cfg.AlertPolicy)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 9600, cfg.SerialBaud)
	assert.True(t, cfg.MQTTEnabled())
	assert.True(t, cfg.TwilioEnabled())
	assert.Equal(t, []string{"+15551111111", "+15552222222"}, cfg.EmergencyNumbers)
	assert.Equal(t, 4.5, cfg.DefaultForecast.IntensityMMPerHour)
	assert.Equal(t, 6.0, cfg.DefaultForecast.DurationHours)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	content := "STATION_LOCATION=Upper Weir\nHTTP_ADDR=:9191\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// Registered so the variables the file sets are restored after the test.
	t.Setenv("STATION_LOCATION", "")
	t.Setenv("HTTP_ADDR", ":7000")
	require.NoError(t, os.Unsetenv("STATION_LOCATION"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Upper Weir", cfg.StationLocation)
	// Environment wins over the file.
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"SENSOR_MAX_HEIGHT_CM":  "tall",
		"RESERVOIR_CAPACITY_M3": "-5",
		"ALERT_COOLDOWN":        "soon",
		"ALERT_POLICY":          "never",
		"SERIAL_BAUD":           "0",
		"FORECAST_DURATION_H":   "0",
		"READING_RETENTION":     "-1h",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
