package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/integration/openai"
	"github.com/abelzeko/flood-bot/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, message string, recipients []string) []engine.Delivery {
	ds := make([]engine.Delivery, 0, len(recipients))
	for _, to := range recipients {
		if r.err == nil {
			r.messages = append(r.messages, message)
		}
		ds = append(ds, engine.Delivery{Recipient: to, Err: r.err})
	}
	return ds
}

type stubBulletin struct {
	outlook []entities.RainfallOutlook
	err     error
}

func (s stubBulletin) FetchOutlook(context.Context) ([]entities.RainfallOutlook, error) {
	return s.outlook, s.err
}

type stubAgent struct {
	resp *openai.AgentResponse
	err  error
}

func (s stubAgent) InterpretUserQuery(context.Context, string) (*openai.AgentResponse, error) {
	return s.resp, s.err
}

func newTestRepo(t *testing.T) *repository.SQLiteFloodRepository {
	t.Helper()
	repo, err := repository.NewSQLiteFloodRepository(filepath.Join(t.TempDir(), "flood.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fixture struct {
	uc       *StationUseCase
	repo     *repository.SQLiteFloodRepository
	notifier *recordingNotifier
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	repo := newTestRepo(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	alerter := engine.NewAlerter([]engine.Channel{
		{Name: "sms", Notifier: notifier, Recipients: engine.StaticRecipients{"+15551111111"}},
	}, engine.WithClock(clock))

	opts = append([]Option{WithAlerter(alerter), WithClock(clock)}, opts...)
	return fixture{
		uc:       NewStationUseCase(repo, engine.DefaultCalibration(), opts...),
		repo:     repo,
		notifier: notifier,
		clock:    clock,
	}
}

func TestHandleLine_UpdatesStateAndStoresReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleLine(ctx, "15,0.5\n"))

	s, err := f.uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, s.HasReading)
	assert.Equal(t, 5.0, s.State.Height)
	assert.Equal(t, 0.5, s.State.FlowRate)
	assert.Equal(t, engine.StatusNormal, s.Status)
	require.NotNil(t, s.Assessment)
	assert.Equal(t, engine.RiskLow, s.Assessment.Risk)

	latest, err := f.repo.LatestReading()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "Normal Conditions", latest.Status)
	assert.Empty(t, f.notifier.messages)
}

func TestHandleLine_InvalidKeepsPreviousState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleLine(ctx, "12,1"))
	for _, line := range []string{"garbage", "1,2,3", "25,1", "5,-1"} {
		err := f.uc.HandleLine(ctx, line)
		assert.ErrorIs(t, err, engine.ErrInvalidReading, line)
	}

	s, err := f.uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8.0, s.State.Height)
	assert.Equal(t, 1.0, s.State.FlowRate)

	recent, err := f.repo.RecentReadings(10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestHandleLine_AlertsWithCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// height 15cm, flow 3 L/min: severe flood
	require.NoError(t, f.uc.HandleLine(ctx, "5,3"))
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, "SEVERE FLOOD ALERT!\nRiver Height: 15.0cm\nFlow Rate: 3.0L/min\nLocation: River Monitoring Station",
		f.notifier.messages[0])

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.uc.HandleLine(ctx, "4,1"))
	assert.Len(t, f.notifier.messages, 1)

	f.clock.Advance(25 * time.Minute)
	require.NoError(t, f.uc.HandleLine(ctx, "4,1"))
	require.Len(t, f.notifier.messages, 2)
	assert.Contains(t, f.notifier.messages[1], "FLOOD WARNING!")

	last, err := f.repo.LastAlertTime()
	require.NoError(t, err)
	assert.True(t, last.Equal(f.clock.Now()))
}

func TestHandleLine_HighFlowDoesNotAlert(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.uc.HandleLine(context.Background(), "15,5"))
	assert.Empty(t, f.notifier.messages)
}

func TestNewStationUseCase_RestoresCooldown(t *testing.T) {
	repo := newTestRepo(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.RecordAlert(entities.AlertRecord{
		Status: "SEVERE FLOOD ALERT",
		SentAt: clock.Now().Add(-5 * time.Minute),
	}))

	notifier := &recordingNotifier{}
	alerter := engine.NewAlerter([]engine.Channel{
		{Name: "sms", Notifier: notifier, Recipients: engine.StaticRecipients{"+1"}},
	}, engine.WithClock(clock))
	uc := NewStationUseCase(repo, engine.DefaultCalibration(), WithAlerter(alerter), WithClock(clock))

	require.NoError(t, uc.HandleLine(context.Background(), "5,3"))
	assert.Empty(t, notifier.messages)
}

func TestHandleLine_FailedDispatchIsNotLogged(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("twilio down")

	require.NoError(t, f.uc.HandleLine(context.Background(), "5,3"))

	last, err := f.repo.LastAlertTime()
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestRunForecast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.uc.HandleLine(ctx, "8,0"))

	a, err := f.uc.RunForecast(ctx, entities.ForecastInput{IntensityMMPerHour: 10, DurationHours: 2})
	require.NoError(t, err)
	assert.InDelta(t, 30000, a.Projection.RemainingCapacity, 1e-9)
	assert.InDelta(t, 3, a.Projection.TimeToFill.Hours, 1e-9)
	assert.Equal(t, engine.UrgencyUrgent, a.Urgency)
	assert.Equal(t, engine.StatusFloodWarning, a.Status)
	assert.Equal(t, engine.RiskModerate, a.Risk)

	// The active forecast is reassessed on the next reading.
	require.NoError(t, f.uc.HandleLine(ctx, "15,0"))
	s, err := f.uc.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Assessment)
	assert.Equal(t, 10.0, s.Assessment.Forecast.IntensityMMPerHour)
	assert.Equal(t, engine.RiskLow, s.Assessment.Risk)
}

func TestRunForecast_InvalidKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RunForecast(ctx, entities.ForecastInput{IntensityMMPerHour: 10, DurationHours: 2})
	require.NoError(t, err)

	_, err = f.uc.RunForecast(ctx, entities.ForecastInput{IntensityMMPerHour: 10, DurationHours: 0})
	assert.ErrorIs(t, err, engine.ErrInvalidForecast)
	_, err = f.uc.RunForecast(ctx, entities.ForecastInput{IntensityMMPerHour: -1, DurationHours: 1})
	assert.ErrorIs(t, err, engine.ErrInvalidForecast)

	s, err := f.uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.ForecastInput{IntensityMMPerHour: 10, DurationHours: 2}, s.Forecast)
	require.NotNil(t, s.Assessment)
	assert.Equal(t, 2.0, s.Assessment.Forecast.DurationHours)
}

// forecastingNotifier requests a new forecast while the alert is in flight.
type forecastingNotifier struct {
	uc     *StationUseCase
	in     entities.ForecastInput
	called bool
	err    error
}

func (n *forecastingNotifier) Send(ctx context.Context, _ string, recipients []string) []engine.Delivery {
	n.called = true
	_, n.err = n.uc.RunForecast(ctx, n.in)
	ds := make([]engine.Delivery, 0, len(recipients))
	for _, to := range recipients {
		ds = append(ds, engine.Delivery{Recipient: to})
	}
	return ds
}

func TestHandleLine_KeepsForecastRequestedDuringAlert(t *testing.T) {
	repo := newTestRepo(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	notifier := &forecastingNotifier{in: entities.ForecastInput{IntensityMMPerHour: 10, DurationHours: 2}}
	alerter := engine.NewAlerter([]engine.Channel{
		{Name: "sms", Notifier: notifier, Recipients: engine.StaticRecipients{"+15551111111"}},
	}, engine.WithClock(clock))
	uc := NewStationUseCase(repo, engine.DefaultCalibration(), WithAlerter(alerter), WithClock(clock))
	notifier.uc = uc
	ctx := context.Background()

	require.NoError(t, uc.HandleLine(ctx, "5,3"))
	require.True(t, notifier.called)
	require.NoError(t, notifier.err)

	s, err := uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, notifier.in, s.Forecast)
	require.NotNil(t, s.Assessment)
	assert.Equal(t, notifier.in, s.Assessment.Forecast)
	assert.InDelta(t, 30000, s.Assessment.Projection.RemainingCapacity, 1e-9)
}

func TestRefreshForecastFromBulletin(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, WithBulletin(stubBulletin{outlook: []entities.RainfallOutlook{
		{Period: "Tonight", IntensityMMPerHour: 1000, DurationHours: 1},
		{Period: "Tomorrow", IntensityMMPerHour: 1, DurationHours: 1},
	}}))
	a, err := f.uc.RefreshForecastFromBulletin(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.RiskCritical, a.Risk)

	f = newFixture(t)
	_, err = f.uc.RefreshForecastFromBulletin(ctx)
	assert.ErrorIs(t, err, ErrNoBulletin)

	f = newFixture(t, WithBulletin(stubBulletin{}))
	_, err = f.uc.RefreshForecastFromBulletin(ctx)
	assert.ErrorIs(t, err, ErrNoBulletin)

	f = newFixture(t, WithBulletin(stubBulletin{err: errors.New("timeout")}))
	_, err = f.uc.RefreshForecastFromBulletin(ctx)
	assert.Error(t, err)
}

func TestSnapshot_PicksUpReadingsFromOtherProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.SaveReading(entities.ReadingRecord{
		Reading:   entities.SensorReading{Distance: 6, FlowRate: 2.5},
		State:     entities.RiverState{Height: 14, FlowRate: 2.5},
		Status:    "SEVERE FLOOD ALERT",
		Timestamp: f.clock.Now(),
	})
	require.NoError(t, err)

	s, err := f.uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, s.HasReading)
	assert.Equal(t, 14.0, s.State.Height)
	assert.Equal(t, engine.StatusSevereFlood, s.Status)
	require.NotNil(t, s.Assessment)
}

func TestSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.Subscribe(ctx, 42, "ana"))
	require.NoError(t, f.uc.Subscribe(ctx, 7, "marko"))

	ids, err := SubscriberRecipients(f.repo).Recipients(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"42", "7"}, ids)

	removed, err := f.uc.Unsubscribe(ctx, 42)
	require.NoError(t, err)
	assert.True(t, removed)

	subs, err := f.uc.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(7), subs[0].ChatID)
}

func TestPruneReadings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleLine(ctx, "10,1"))
	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.uc.HandleLine(ctx, "10,1"))

	n, err := f.uc.PruneReadings(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
