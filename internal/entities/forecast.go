package entities

import "time"

// ForecastInput holds the rainfall parameters a projection is computed for
type ForecastInput struct {
	IntensityMMPerHour float64 // Rainfall intensity in mm/h
	DurationHours      float64 // How long the rainfall lasts in hours
}

// RainfallOutlook is one row of a published rainfall bulletin
type RainfallOutlook struct {
	Period             string
	IntensityMMPerHour float64
	DurationHours      float64
	IssuedAt           time.Time
}

// Input converts the outlook into forecast parameters
func (o RainfallOutlook) Input() ForecastInput {
	return ForecastInput{
		IntensityMMPerHour: o.IntensityMMPerHour,
		DurationHours:      o.DurationHours,
	}
}
