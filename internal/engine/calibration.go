// Package engine implements the flood-risk estimation engine: sensor readings
// are converted to river state, classified into a flood status, projected
// against the reservoir capacity and, when flooding, turned into alerts.
//
// Everything except the Alerter is a pure function of its arguments. The
// calibration is passed in explicitly so that several stations (or tests)
// can run side by side with different constants.
package engine

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidReading marks a sensor line that is malformed or physically impossible.
	ErrInvalidReading = errors.New("invalid reading")
	// ErrInvalidForecast marks rainfall parameters that cannot be projected.
	ErrInvalidForecast = errors.New("invalid forecast input")
	// ErrDispatchFailed marks a notification that did not reach its recipient.
	ErrDispatchFailed = errors.New("notification dispatch failed")
	// ErrInvalidCalibration marks station constants that make no physical sense.
	ErrInvalidCalibration = errors.New("invalid calibration")
)

// Calibration holds the fixed constants of a monitoring station.
type Calibration struct {
	SensorMaxHeight   float64 // Distance from the sensor mount to the riverbed in cm
	NormalRiverHeight float64 // Normal river height in cm
	NormalFlowRate    float64 // Normal flow rate in L/min
	AreaKM2           float64 // Catchment area in km²
	ReservoirCapacity float64 // Reservoir capacity in m³
}

// DefaultCalibration returns the constants of the reference river station.
func DefaultCalibration() Calibration {
	return Calibration{
		SensorMaxHeight:   20.0,
		NormalRiverHeight: 10.0,
		NormalFlowRate:    1.0,
		AreaKM2:           1.0,
		ReservoirCapacity: 50000.0,
	}
}

// Validate checks that every constant is finite and positive and that the
// normal river height lies below the sensor mount.
func (c Calibration) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"sensor max height", c.SensorMaxHeight},
		{"normal river height", c.NormalRiverHeight},
		{"normal flow rate", c.NormalFlowRate},
		{"catchment area", c.AreaKM2},
		{"reservoir capacity", c.ReservoirCapacity},
	}
	for _, f := range fields {
		if !isFinite(f.value) || f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidCalibration, f.name, f.value)
		}
	}
	if c.NormalRiverHeight >= c.SensorMaxHeight {
		return fmt.Errorf("%w: normal river height %.1fcm must be below sensor height %.1fcm",
			ErrInvalidCalibration, c.NormalRiverHeight, c.SensorMaxHeight)
	}
	return nil
}

// lowCapacityThreshold is the remaining capacity under which the reservoir counts as nearly full.
func (c Calibration) lowCapacityThreshold() float64 {
	return c.ReservoirCapacity * 0.2
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
