// Package entities contains the core domain objects for the flood-bot application
package entities

import (
	"time"
)

// SensorReading is one line received from the overhead river sensor
type SensorReading struct {
	Distance float64 // Distance from the sensor to the water surface in cm
	FlowRate float64 // Flow rate in L/min
}

// RiverState is the physical state derived from the latest valid reading
type RiverState struct {
	Height   float64 // Water height above the riverbed in cm
	FlowRate float64 // Flow rate in L/min
}

// ReadingRecord is a stored reading together with what was derived from it
type ReadingRecord struct {
	ID        int64
	Reading   SensorReading
	State     RiverState
	Status    string    // Status label at the time of the reading
	Timestamp time.Time // When the reading was received
}
