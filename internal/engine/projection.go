package engine

import (
	"fmt"
	"math"

	"github.com/abelzeko/flood-bot/internal/entities"
)

// ValidateForecast rejects negative intensity and non-positive duration.
// Values are never clamped.
func ValidateForecast(in entities.ForecastInput) error {
	if !isFinite(in.IntensityMMPerHour) || in.IntensityMMPerHour < 0 {
		return fmt.Errorf("%w: intensity must be non-negative, got %v", ErrInvalidForecast, in.IntensityMMPerHour)
	}
	if !isFinite(in.DurationHours) || in.DurationHours <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidForecast, in.DurationHours)
	}
	return nil
}

// TimeToFill is the projected number of hours until the reservoir is full.
// NoInflow marks the case where nothing flows in and it never fills.
type TimeToFill struct {
	Hours    float64
	NoInflow bool
}

// Overflowed reports a negative projection: capacity is already exceeded.
func (t TimeToFill) Overflowed() bool {
	return !t.NoInflow && t.Hours < 0
}

// maxDisplayDays caps the rendered day count.
const maxDisplayDays = math.MaxInt32

// String renders the projection the way the station display shows it.
func (t TimeToFill) String() string {
	if t.NoInflow {
		return "N/A (no inflow)"
	}
	if t.Hours < 0 {
		return "Area Already Filled"
	}

	if t.Hours/24 >= maxDisplayDays {
		return fmt.Sprintf("%d+ days", maxDisplayDays)
	}

	days := int(t.Hours / 24)
	hours := int(math.Mod(t.Hours, 24))
	minutes := int(math.Mod(t.Hours*60, 60))

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Projection is the reservoir balance for one forecast.
type Projection struct {
	IncomingVolume        float64 // m³ of rain over the forecast duration
	RemainingCapacity     float64 // m³ left after the rain; negative when exceeded
	FlowVolumePerHour     float64 // m³/h from the live flow rate
	RainfallVolumePerHour float64 // m³/h from the forecast rain
	TotalInflowPerHour    float64
	TimeToFill            TimeToFill
}

// Project computes the capacity projection for a forecast at the given live flow rate.
func Project(in entities.ForecastInput, flowRate float64, cal Calibration) (Projection, error) {
	if err := ValidateForecast(in); err != nil {
		return Projection{}, err
	}

	var p Projection
	// mm of rain over km² -> m³
	p.IncomingVolume = (in.IntensityMMPerHour / 1000) * cal.AreaKM2 * 1e6 * in.DurationHours
	p.RemainingCapacity = cal.ReservoirCapacity - p.IncomingVolume

	// L/min -> m³/h
	p.FlowVolumePerHour = flowRate * 60 / 1000
	p.RainfallVolumePerHour = (in.IntensityMMPerHour / 1000) * cal.AreaKM2 * 1e6
	p.TotalInflowPerHour = p.FlowVolumePerHour + p.RainfallVolumePerHour

	if p.TotalInflowPerHour > 0 {
		p.TimeToFill = TimeToFill{Hours: p.RemainingCapacity / p.TotalInflowPerHour}
	} else {
		p.TimeToFill = TimeToFill{NoInflow: true}
	}

	return p, nil
}
