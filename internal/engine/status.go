package engine

import "github.com/abelzeko/flood-bot/internal/entities"

// Status is the live flood classification of the river.
type Status int

const (
	StatusNormal Status = iota
	StatusHighFlowWarning
	StatusFloodWarning
	StatusSevereFlood
)

// Label returns the text shown to operators.
func (s Status) Label() string {
	switch s {
	case StatusSevereFlood:
		return "SEVERE FLOOD ALERT"
	case StatusFloodWarning:
		return "FLOOD WARNING"
	case StatusHighFlowWarning:
		return "HIGH FLOW WARNING"
	default:
		return "Normal Conditions"
	}
}

func (s Status) String() string {
	return s.Label()
}

// Rank orders statuses by severity. High flow and flood warning share a
// rank because neither is more severe than the other.
func (s Status) Rank() int {
	switch s {
	case StatusSevereFlood:
		return 2
	case StatusFloodWarning, StatusHighFlowWarning:
		return 1
	default:
		return 0
	}
}

// Flooding reports whether the river is above its normal height.
func (s Status) Flooding() bool {
	return s == StatusFloodWarning || s == StatusSevereFlood
}

// AlertEligible reports whether the status should notify recipients.
func (s Status) AlertEligible() bool {
	return s.Flooding()
}

// Classify maps river state onto a status using the normal height and twice
// the normal flow rate as thresholds.
func Classify(state entities.RiverState, cal Calibration) Status {
	highWater := state.Height > cal.NormalRiverHeight
	highFlow := state.FlowRate > cal.NormalFlowRate*2

	switch {
	case highWater && highFlow:
		return StatusSevereFlood
	case highWater:
		return StatusFloodWarning
	case highFlow:
		return StatusHighFlowWarning
	default:
		return StatusNormal
	}
}
