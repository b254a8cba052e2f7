package engine

import (
	"testing"

	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	r, err := ParseReading("12.5,3.25\r\n")
	require.NoError(t, err)
	assert.Equal(t, entities.SensorReading{Distance: 12.5, FlowRate: 3.25}, r)

	r, err = ParseReading("  8 , 0 ")
	require.NoError(t, err)
	assert.Equal(t, 8.0, r.Distance)
	assert.Equal(t, 0.0, r.FlowRate)
}

func TestParseReading_Rejects(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"12.5",
		"12.5,3,1",
		"12.5,",
		",3",
		"abc,3",
		"12,xyz",
		"NaN,1",
		"1,Inf",
		"5,-0.5",
	}

	for _, line := range lines {
		_, err := ParseReading(line)
		assert.ErrorIs(t, err, ErrInvalidReading, "line %q", line)
	}
}

func TestConvert(t *testing.T) {
	state := Convert(entities.SensorReading{Distance: 7, FlowRate: 1.5}, 20)
	assert.Equal(t, 13.0, state.Height)
	assert.Equal(t, 1.5, state.FlowRate)

	// Convert itself never clamps.
	state = Convert(entities.SensorReading{Distance: 25}, 20)
	assert.Equal(t, -5.0, state.Height)
}

func TestDeriveState(t *testing.T) {
	cal := DefaultCalibration()

	for _, distance := range []float64{0, 0.5, 10, 19.9, 20} {
		state, err := DeriveState(entities.SensorReading{Distance: distance, FlowRate: 2}, cal)
		require.NoError(t, err)
		assert.Equal(t, cal.SensorMaxHeight-distance, state.Height)
		assert.Equal(t, 2.0, state.FlowRate)
	}

	_, err := DeriveState(entities.SensorReading{Distance: 20.1, FlowRate: 2}, cal)
	assert.ErrorIs(t, err, ErrInvalidReading)
}

func TestCalibrationValidate(t *testing.T) {
	require.NoError(t, DefaultCalibration().Validate())

	cal := DefaultCalibration()
	cal.ReservoirCapacity = 0
	assert.ErrorIs(t, cal.Validate(), ErrInvalidCalibration)

	cal = DefaultCalibration()
	cal.NormalRiverHeight = 25
	assert.ErrorIs(t, cal.Validate(), ErrInvalidCalibration)
}
