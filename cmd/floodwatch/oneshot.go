package main

import (
	"context"
	"fmt"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/repository"
	"github.com/abelzeko/flood-bot/internal/usecases"
)

type ForecastCmd struct {
	Intensity float64 `arg:"" help:"Rainfall intensity in mm/h."`
	Duration  float64 `arg:"" help:"Rainfall duration in hours."`
}

func (f *ForecastCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	repo, err := repository.NewSQLiteFloodRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	useCase := usecases.NewStationUseCase(repo, cfg.Calibration, usecases.WithLocation(cfg.StationLocation))
	a, err := useCase.RunForecast(context.Background(), entities.ForecastInput{
		IntensityMMPerHour: f.Intensity,
		DurationHours:      f.Duration,
	})
	if err != nil {
		return err
	}

	s, err := useCase.Snapshot(context.Background())
	if err != nil {
		return err
	}
	if !s.HasReading {
		fmt.Println("No stored reading, assuming zero flow.")
	}
	fmt.Println(useCase.FormatAssessment(a))
	return nil
}

type ParseCmd struct {
	Line string `arg:"" help:"Raw sensor line, e.g. \"7.5,1.2\"."`
}

func (p *ParseCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	reading, err := engine.ParseReading(p.Line)
	if err != nil {
		return err
	}
	state, err := engine.DeriveState(reading, cfg.Calibration)
	if err != nil {
		return err
	}

	fmt.Printf("River Height: %.1f cm\nFlow Rate: %.2f L/min\nStatus: %s\n",
		state.Height, state.FlowRate, engine.Classify(state, cfg.Calibration).Label())
	return nil
}
