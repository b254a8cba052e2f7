package engine

import "github.com/abelzeko/flood-bot/internal/entities"

// RiskLevel combines the live status with the capacity projection.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskCaution
	RiskModerate
	RiskHigh
	RiskCritical
)

// Label returns the risk text shown to operators.
func (r RiskLevel) Label() string {
	switch r {
	case RiskCritical:
		return "CRITICAL - Dam Capacity Exceeded"
	case RiskHigh:
		return "HIGH RISK - Flood Conditions with Low Capacity"
	case RiskModerate:
		return "MODERATE RISK - Flood Conditions"
	case RiskCaution:
		return "CAUTION - Low Dam Capacity"
	default:
		return "LOW RISK - Normal Conditions"
	}
}

func (r RiskLevel) String() string {
	return r.Label()
}

// Synthesize derives the risk level. Exceeded capacity is critical whatever
// the river is doing.
func Synthesize(status Status, p Projection, cal Calibration) RiskLevel {
	if p.RemainingCapacity < 0 {
		return RiskCritical
	}

	lowCapacity := p.RemainingCapacity < cal.lowCapacityThreshold()
	switch {
	case status.Flooding() && lowCapacity:
		return RiskHigh
	case status.Flooding():
		return RiskModerate
	case lowCapacity:
		return RiskCaution
	default:
		return RiskLow
	}
}

// Urgency buckets the time to fill for display.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyWarning
	UrgencyUrgent
)

func (u Urgency) String() string {
	switch u {
	case UrgencyUrgent:
		return "URGENT"
	case UrgencyWarning:
		return "WARNING"
	default:
		return "NORMAL"
	}
}

// Urgency is urgent under a day, a warning under three days and normal
// otherwise. Without inflow the reservoir never fills.
func (t TimeToFill) Urgency() Urgency {
	switch {
	case t.NoInflow:
		return UrgencyNormal
	case t.Hours < 24:
		return UrgencyUrgent
	case t.Hours < 72:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// Assessment is the full result of a forecast request.
type Assessment struct {
	State      entities.RiverState
	Forecast   entities.ForecastInput
	Status     Status
	Projection Projection
	Risk       RiskLevel
	Urgency    Urgency
}

// Assess classifies the state and projects the forecast against it.
func Assess(state entities.RiverState, in entities.ForecastInput, cal Calibration) (Assessment, error) {
	p, err := Project(in, state.FlowRate, cal)
	if err != nil {
		return Assessment{}, err
	}

	status := Classify(state, cal)
	return Assessment{
		State:      state,
		Forecast:   in,
		Status:     status,
		Projection: p,
		Risk:       Synthesize(status, p, cal),
		Urgency:    p.TimeToFill.Urgency(),
	}, nil
}
