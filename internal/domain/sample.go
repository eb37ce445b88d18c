package domain

import "strings"

// State is the brew phase reported by the controller, decoded once at parse time.
type State int

const (
	StateOther State = iota
	StatePreinfusion
	StateBrewing
)

// ParseState maps a controller state name onto a State. Matching is case-insensitive.
func ParseState(name string) State {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "brewing":
		return StateBrewing
	case "preinfusion":
		return StatePreinfusion
	default:
		return StateOther
	}
}

func (s State) String() string {
	switch s {
	case StateBrewing:
		return "brewing"
	case StatePreinfusion:
		return "preinfusion"
	default:
		return "other"
	}
}

// Sample is one decoded telemetry frame. It is passed by value and never mutated
// after the parser builds it.
type Sample struct {
	Seq              uint64  `json:"seq"`
	StateName        string  `json:"state_name"`
	State            State   `json:"-"`
	Description      string  `json:"description"`
	WeightGrams      float64 `json:"weight_grams"`
	PressureBars     float64 `json:"pressure_bars"`
	DutyCyclePercent float64 `json:"duty_cycle_percent"`
	FlowRateGPS      float64 `json:"flow_rate_gps"`
	BrewTempC        float64 `json:"brew_temp_c"`
}

// Value returns the reading selected by m.
func (s Sample) Value(m Metric) float64 {
	switch m {
	case MetricWeight:
		return s.WeightGrams
	case MetricPressure:
		return s.PressureBars
	case MetricDutyCycle:
		return s.DutyCyclePercent
	case MetricFlowRate:
		return s.FlowRateGPS
	case MetricTemperature:
		return s.BrewTempC
	default:
		return 0
	}
}
