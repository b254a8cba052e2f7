// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/integration/openai"
	"github.com/abelzeko/flood-bot/internal/metrics"
	"github.com/abelzeko/flood-bot/internal/repository"
	"github.com/jonboulle/clockwork"
)

// ErrNoBulletin is returned when no rainfall bulletin source is configured
// or the bulletin holds no usable outlook.
var ErrNoBulletin = errors.New("no rainfall outlook available")

// BulletinSource supplies published rainfall outlooks
type BulletinSource interface {
	FetchOutlook(ctx context.Context) ([]entities.RainfallOutlook, error)
}

// Snapshot is the station state as shown to operators
type Snapshot struct {
	State       entities.RiverState
	Status      engine.Status
	HasReading  bool
	LastReading time.Time
	Forecast    entities.ForecastInput
	Assessment  *engine.Assessment
	LastAlert   time.Time
}

// StationUseCase connects sensor readings, forecasts and alerts
type StationUseCase struct {
	repo     repository.FloodRepository
	cal      engine.Calibration
	location string
	alerter  *engine.Alerter
	bulletin BulletinSource
	openAI   openai.OpenAIService
	clock    clockwork.Clock

	mu          sync.RWMutex
	state       entities.RiverState
	hasReading  bool
	lastReading time.Time
	forecast    entities.ForecastInput
	assessment  *engine.Assessment
}

// Option configures a StationUseCase
type Option func(*StationUseCase)

// WithAlerter enables alert dispatch. The cooldown is restored from the alert log.
func WithAlerter(a *engine.Alerter) Option {
	return func(uc *StationUseCase) { uc.alerter = a }
}

// WithBulletin sets the rainfall bulletin source
func WithBulletin(b BulletinSource) Option {
	return func(uc *StationUseCase) { uc.bulletin = b }
}

// WithOpenAI enables free-text queries
func WithOpenAI(s openai.OpenAIService) Option {
	return func(uc *StationUseCase) { uc.openAI = s }
}

// WithLocation sets the station name used in alerts
func WithLocation(location string) Option {
	return func(uc *StationUseCase) { uc.location = location }
}

// WithDefaultForecast sets the forecast used before any is requested
func WithDefaultForecast(in entities.ForecastInput) Option {
	return func(uc *StationUseCase) { uc.forecast = in }
}

// WithClock replaces the real clock
func WithClock(c clockwork.Clock) Option {
	return func(uc *StationUseCase) { uc.clock = c }
}

// NewStationUseCase creates a new station use case
func NewStationUseCase(repo repository.FloodRepository, cal engine.Calibration, opts ...Option) *StationUseCase {
	uc := &StationUseCase{
		repo:     repo,
		cal:      cal,
		location: "River Monitoring Station",
		clock:    clockwork.NewRealClock(),
		forecast: entities.ForecastInput{IntensityMMPerHour: 0, DurationHours: 1},
	}
	for _, opt := range opts {
		opt(uc)
	}

	if uc.alerter != nil {
		last, err := repo.LastAlertTime()
		if err != nil {
			log.Printf("Error loading last alert time: %v", err)
		} else if !last.IsZero() {
			uc.alerter.Restore(last)
			log.Printf("Restored alert cooldown from %s", last.Format(time.RFC3339))
		}
	}
	return uc
}

// HandleLine processes one raw sensor line. An invalid line leaves the
// current state untouched and is returned as an error wrapping
// engine.ErrInvalidReading; the caller keeps polling.
func (uc *StationUseCase) HandleLine(ctx context.Context, line string) error {
	reading, err := engine.ParseReading(line)
	if err != nil {
		return uc.rejectLine(line, err)
	}
	state, err := engine.DeriveState(reading, uc.cal)
	if err != nil {
		return uc.rejectLine(line, err)
	}
	metrics.ReadingsTotal.WithLabelValues("valid").Inc()

	now := uc.clock.Now()
	status := engine.Classify(state, uc.cal)

	// State and assessment change under one lock with the forecast they used.
	uc.mu.Lock()
	uc.state = state
	uc.hasReading = true
	uc.lastReading = now
	// The assessment follows every reading, as the flow rate feeds the projection.
	a, assessErr := engine.Assess(state, uc.forecast, uc.cal)
	if assessErr == nil {
		uc.setAssessmentLocked(a)
	}
	uc.mu.Unlock()

	metrics.RiverHeight.Set(state.Height)
	metrics.FlowRate.Set(state.FlowRate)
	metrics.StatusRank.Set(float64(status.Rank()))
	log.Printf("Processed reading: height=%.1fcm flow=%.2fL/min status=%s", state.Height, state.FlowRate, status.Label())
	if assessErr != nil {
		log.Printf("Error recomputing assessment: %v", assessErr)
	}

	if _, err := uc.repo.SaveReading(entities.ReadingRecord{
		Reading:   reading,
		State:     state,
		Status:    status.Label(),
		Timestamp: now,
	}); err != nil {
		log.Printf("Error saving reading: %v", err)
	}

	if uc.alerter != nil && status.AlertEligible() {
		uc.dispatchAlert(ctx, status, state)
	}
	return nil
}

func (uc *StationUseCase) rejectLine(line string, err error) error {
	metrics.ReadingsTotal.WithLabelValues("invalid").Inc()
	log.Printf("Ignoring invalid reading %q: %v", line, err)
	return err
}

func (uc *StationUseCase) dispatchAlert(ctx context.Context, status engine.Status, state entities.RiverState) {
	message := engine.FormatAlertMessage(status, state, uc.location)
	out := uc.alerter.Notify(ctx, status, message)

	metrics.AlertsTotal.WithLabelValues(out.Outcome.String()).Inc()
	for _, d := range out.Deliveries {
		result := "ok"
		if d.Err != nil {
			result = "error"
		}
		metrics.DeliveriesTotal.WithLabelValues(d.Channel, result).Inc()
	}

	// Only alerts that opened a cooldown window go to the log, so the
	// window can be restored after a restart.
	if len(out.Deliveries) == 0 || !uc.alerter.LastAlert().Equal(out.At) {
		return
	}
	if err := uc.repo.RecordAlert(entities.AlertRecord{
		Status:    status.Label(),
		Message:   message,
		Delivered: out.Delivered(),
		Failed:    out.Failed(),
		SentAt:    out.At,
	}); err != nil {
		log.Printf("Error recording alert: %v", err)
	}
}

// setAssessmentLocked must be called with uc.mu held.
func (uc *StationUseCase) setAssessmentLocked(a engine.Assessment) {
	prev := uc.assessment
	uc.assessment = &a

	metrics.RemainingCapacity.Set(a.Projection.RemainingCapacity)
	if a.Projection.TimeToFill.NoInflow {
		metrics.TimeToFillHours.Set(-1)
	} else {
		metrics.TimeToFillHours.Set(a.Projection.TimeToFill.Hours)
	}

	if prev == nil || prev.Risk != a.Risk {
		log.Printf("Flood risk is now %s", a.Risk.Label())
	}
}

// RunForecast makes in the active forecast and assesses it against the
// live flow rate. Invalid input leaves the previous forecast in place.
func (uc *StationUseCase) RunForecast(ctx context.Context, in entities.ForecastInput) (engine.Assessment, error) {
	if err := engine.ValidateForecast(in); err != nil {
		metrics.ForecastErrors.WithLabelValues("request").Inc()
		return engine.Assessment{}, err
	}
	uc.refresh()

	uc.mu.Lock()
	a, err := engine.Assess(uc.state, in, uc.cal)
	if err == nil {
		uc.forecast = in
		uc.setAssessmentLocked(a)
	}
	uc.mu.Unlock()
	if err != nil {
		return engine.Assessment{}, err
	}

	log.Printf("Forecast set to %.1fmm/h for %.1fh", in.IntensityMMPerHour, in.DurationHours)
	return a, nil
}

// RefreshForecastFromBulletin runs the first outlook of the rainfall bulletin as the active forecast
func (uc *StationUseCase) RefreshForecastFromBulletin(ctx context.Context) (engine.Assessment, error) {
	if uc.bulletin == nil {
		return engine.Assessment{}, ErrNoBulletin
	}

	outlook, err := uc.bulletin.FetchOutlook(ctx)
	if err != nil {
		metrics.ForecastErrors.WithLabelValues("bulletin").Inc()
		return engine.Assessment{}, fmt.Errorf("failed to fetch rainfall bulletin: %w", err)
	}
	if len(outlook) == 0 {
		metrics.ForecastErrors.WithLabelValues("bulletin").Inc()
		return engine.Assessment{}, ErrNoBulletin
	}

	next := outlook[0]
	log.Printf("Using bulletin outlook %q issued %s", next.Period, next.IssuedAt.Format(time.RFC3339))
	a, err := uc.RunForecast(ctx, next.Input())
	if err != nil {
		metrics.ForecastErrors.WithLabelValues("bulletin").Inc()
		return engine.Assessment{}, err
	}
	return a, nil
}

// Snapshot returns the current station state. A newer reading in the
// repository, written by another process, replaces the in-memory state.
func (uc *StationUseCase) Snapshot(ctx context.Context) (Snapshot, error) {
	uc.refresh()

	uc.mu.RLock()
	s := Snapshot{
		State:       uc.state,
		HasReading:  uc.hasReading,
		LastReading: uc.lastReading,
		Forecast:    uc.forecast,
	}
	if uc.assessment != nil {
		a := *uc.assessment
		s.Assessment = &a
	}
	uc.mu.RUnlock()

	if s.HasReading {
		s.Status = engine.Classify(s.State, uc.cal)
	}

	if uc.alerter != nil {
		s.LastAlert = uc.alerter.LastAlert()
	} else {
		last, err := uc.repo.LastAlertTime()
		if err != nil {
			return s, err
		}
		s.LastAlert = last
	}
	return s, nil
}

func (uc *StationUseCase) refresh() {
	rec, err := uc.repo.LatestReading()
	if err != nil {
		log.Printf("Error loading latest reading: %v", err)
		return
	}
	if rec == nil {
		return
	}

	uc.mu.Lock()
	if !rec.Timestamp.After(uc.lastReading) {
		uc.mu.Unlock()
		return
	}
	uc.state = rec.State
	uc.hasReading = true
	uc.lastReading = rec.Timestamp
	if a, err := engine.Assess(rec.State, uc.forecast, uc.cal); err == nil {
		uc.setAssessmentLocked(a)
	}
	uc.mu.Unlock()
}

// PruneReadings deletes readings older than retention
func (uc *StationUseCase) PruneReadings(ctx context.Context, retention time.Duration) (int64, error) {
	return uc.repo.PruneReadings(uc.clock.Now().Add(-retention))
}

// RecentReadings returns up to limit stored readings, newest first
func (uc *StationUseCase) RecentReadings(ctx context.Context, limit int) ([]entities.ReadingRecord, error) {
	return uc.repo.RecentReadings(limit)
}
