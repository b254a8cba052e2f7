package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abelzeko/flood-bot/internal/entities"
)

// ParseReading parses a "distance,flowRate" sensor line.
// Anything other than exactly two finite decimal fields is rejected;
// missing fields are never guessed.
func ParseReading(line string) (entities.SensorReading, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return entities.SensorReading{}, fmt.Errorf("%w: empty line", ErrInvalidReading)
	}

	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return entities.SensorReading{}, fmt.Errorf("%w: expected 2 values, got %d in %q", ErrInvalidReading, len(parts), line)
	}

	distance, err := parseField(parts[0], "distance")
	if err != nil {
		return entities.SensorReading{}, err
	}
	flowRate, err := parseField(parts[1], "flow rate")
	if err != nil {
		return entities.SensorReading{}, err
	}
	if flowRate < 0 {
		return entities.SensorReading{}, fmt.Errorf("%w: negative flow rate %v", ErrInvalidReading, flowRate)
	}

	return entities.SensorReading{Distance: distance, FlowRate: flowRate}, nil
}

func parseField(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidReading, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidReading, name, raw)
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("%w: %s %q is not finite", ErrInvalidReading, name, raw)
	}
	return v, nil
}

// Convert turns a reading into river state. It does not clamp: a distance
// beyond the sensor mount yields a negative height.
func Convert(r entities.SensorReading, sensorMaxHeight float64) entities.RiverState {
	return entities.RiverState{
		Height:   sensorMaxHeight - r.Distance,
		FlowRate: r.FlowRate,
	}
}

// DeriveState converts a reading and rejects the physically impossible
// negative heights Convert lets through.
func DeriveState(r entities.SensorReading, cal Calibration) (entities.RiverState, error) {
	state := Convert(r, cal.SensorMaxHeight)
	if state.Height < 0 {
		return entities.RiverState{}, fmt.Errorf("%w: distance %.1fcm exceeds sensor height %.1fcm",
			ErrInvalidReading, r.Distance, cal.SensorMaxHeight)
	}
	return state, nil
}
