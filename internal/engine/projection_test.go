package engine

import (
	"math"
	"testing"

	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_RainOnly(t *testing.T) {
	cal := DefaultCalibration()

	p, err := Project(entities.ForecastInput{IntensityMMPerHour: 10, DurationHours: 2}, 0, cal)
	require.NoError(t, err)

	assert.InDelta(t, 20000, p.IncomingVolume, 1e-9)
	assert.InDelta(t, 30000, p.RemainingCapacity, 1e-9)
	assert.InDelta(t, 10000, p.TotalInflowPerHour, 1e-9)
	assert.False(t, p.TimeToFill.NoInflow)
	assert.InDelta(t, 3, p.TimeToFill.Hours, 1e-9)
	assert.Equal(t, UrgencyUrgent, p.TimeToFill.Urgency())
}

func TestProject_NoInflow(t *testing.T) {
	cal := DefaultCalibration()

	p, err := Project(entities.ForecastInput{IntensityMMPerHour: 0, DurationHours: 1}, 0, cal)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, p.RemainingCapacity)
	assert.Equal(t, 0.0, p.TotalInflowPerHour)
	assert.True(t, p.TimeToFill.NoInflow)
	assert.False(t, p.TimeToFill.Overflowed())
	assert.Equal(t, UrgencyNormal, p.TimeToFill.Urgency())
	assert.Equal(t, "N/A (no inflow)", p.TimeToFill.String())
}

func TestProject_FlowRateOnly(t *testing.T) {
	cal := DefaultCalibration()

	// 1000 L/min is 60 m³/h.
	p, err := Project(entities.ForecastInput{IntensityMMPerHour: 0, DurationHours: 1}, 1000, cal)
	require.NoError(t, err)

	assert.InDelta(t, 60, p.FlowVolumePerHour, 1e-9)
	assert.InDelta(t, 50000.0/60, p.TimeToFill.Hours, 1e-9)
	assert.Equal(t, UrgencyNormal, p.TimeToFill.Urgency())
}

func TestProject_Overflowed(t *testing.T) {
	cal := DefaultCalibration()

	p, err := Project(entities.ForecastInput{IntensityMMPerHour: 1000, DurationHours: 1}, 0, cal)
	require.NoError(t, err)

	assert.Less(t, p.RemainingCapacity, 0.0)
	assert.True(t, p.TimeToFill.Overflowed())
	assert.Equal(t, "Area Already Filled", p.TimeToFill.String())
}

func TestProject_InvalidInput(t *testing.T) {
	cal := DefaultCalibration()

	inputs := []entities.ForecastInput{
		{IntensityMMPerHour: 10, DurationHours: 0},
		{IntensityMMPerHour: 10, DurationHours: -2},
		{IntensityMMPerHour: -1, DurationHours: 1},
	}
	for _, in := range inputs {
		_, err := Project(in, 0, cal)
		assert.ErrorIs(t, err, ErrInvalidForecast, "%+v", in)
	}
}

func TestTimeToFill_Urgency(t *testing.T) {
	assert.Equal(t, UrgencyUrgent, TimeToFill{Hours: 0}.Urgency())
	assert.Equal(t, UrgencyUrgent, TimeToFill{Hours: 23.99}.Urgency())
	assert.Equal(t, UrgencyWarning, TimeToFill{Hours: 24}.Urgency())
	assert.Equal(t, UrgencyWarning, TimeToFill{Hours: 71.9}.Urgency())
	assert.Equal(t, UrgencyNormal, TimeToFill{Hours: 72}.Urgency())
}

func TestTimeToFill_String(t *testing.T) {
	assert.Equal(t, "3h 0m", TimeToFill{Hours: 3}.String())
	assert.Equal(t, "1h 30m", TimeToFill{Hours: 1.5}.String())
	assert.Equal(t, "45m", TimeToFill{Hours: 0.75}.String())
	assert.Equal(t, "1d 2h 30m", TimeToFill{Hours: 26.5}.String())
	assert.Equal(t, "1000d 0h 0m", TimeToFill{Hours: 24000}.String())
}

func TestTimeToFill_StringCapsHugeProjection(t *testing.T) {
	cal := DefaultCalibration()

	// A tiny but valid flow rate with no rain projects an astronomical fill time.
	reading, err := ParseReading("5,1e-200")
	require.NoError(t, err)
	p, err := Project(entities.ForecastInput{IntensityMMPerHour: 0, DurationHours: 1}, reading.FlowRate, cal)
	require.NoError(t, err)

	assert.Greater(t, p.TimeToFill.Hours, 1e200)
	assert.Equal(t, "2147483647+ days", p.TimeToFill.String())
	assert.Equal(t, UrgencyNormal, p.TimeToFill.Urgency())
	assert.Equal(t, "2147483647+ days", TimeToFill{Hours: 24 * float64(math.MaxInt32)}.String())
}
