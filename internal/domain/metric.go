package domain

import "fmt"

// Metric selects one numeric series out of a Sample.
type Metric int

const (
	MetricWeight Metric = iota
	MetricPressure
	MetricDutyCycle
	MetricFlowRate
	MetricTemperature
)

// Metrics lists every series in wire order.
var Metrics = []Metric{
	MetricWeight,
	MetricPressure,
	MetricDutyCycle,
	MetricFlowRate,
	MetricTemperature,
}

var metricNames = map[Metric]string{
	MetricWeight:      "weight_grams",
	MetricPressure:    "pressure_bars",
	MetricDutyCycle:   "duty_cycle_percent",
	MetricFlowRate:    "flow_rate_gps",
	MetricTemperature: "brew_temp_c",
}

func (m Metric) String() string {
	if name, ok := metricNames[m]; ok {
		return name
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// ParseMetric resolves a metric by its wire name.
func ParseMetric(name string) (Metric, error) {
	for m, n := range metricNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}
