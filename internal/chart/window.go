package chart

import (
	"github.com/ghalamif/BrewFlow/internal/domain"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// DefaultWindowCap is the number of samples visible on one chart.
const DefaultWindowCap = 50

// Window returns the newest cap values, oldest first. Shorter input is returned
// whole. The result never aliases values.
func Window(values []float64, cap int) []float64 {
	if cap <= 0 || len(values) == 0 {
		return []float64{}
	}
	start := 0
	if len(values) > cap {
		start = len(values) - cap
	}
	out := make([]float64, len(values)-start)
	copy(out, values[start:])
	return out
}

// SeriesWindow is Window applied to one metric of a session.
func SeriesWindow(s *session.BrewSession, m domain.Metric, cap int) []float64 {
	if s == nil || s.Len() == 0 {
		return []float64{}
	}
	return Window(s.Series(m), cap)
}
