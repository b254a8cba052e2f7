package main

import (
	"log"
	"os"

	"github.com/abelzeko/flood-bot/internal/config"
	"github.com/alecthomas/kong"
)

// Globals are flags shared by every command.
type Globals struct {
	EnvFile string `name:"env-file" help:"Env file loaded before reading the environment." default:"config.env" type:"path"`
	DB      string `help:"Override DB_PATH."`
}

// loadConfig reads the env file and environment, applying flag overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.EnvFile)
	if err != nil {
		return nil, err
	}
	if g.DB != "" {
		cfg.DBPath = g.DB
	}
	return cfg, nil
}

type CLI struct {
	Globals

	Monitor  MonitorCmd  `cmd:"" help:"Read the river sensor, raise flood alerts and serve status over HTTP."`
	Bot      BotCmd      `cmd:"" help:"Run the Telegram bot."`
	Forecast ForecastCmd `cmd:"" help:"Assess a rainfall forecast against the latest stored reading."`
	Parse    ParseCmd    `cmd:"" help:"Parse a raw sensor line and print the derived state."`
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("floodwatch"),
		kong.Description("River flood monitoring station."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
