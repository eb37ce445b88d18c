package chart

import (
	"fmt"

	"github.com/ghalamif/BrewFlow/internal/domain"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// Renderer pairs a PathBuilder with per-metric ceilings and a window cap.
type Renderer struct {
	builder  *PathBuilder
	cap      int
	ceilings map[domain.Metric]float64
}

// NewRenderer validates every ceiling up front so Chart never hits a scale error
// once data is flowing.
func NewRenderer(builder *PathBuilder, cap int, ceilings map[domain.Metric]float64) (*Renderer, error) {
	if builder == nil {
		return nil, &ConfigError{Field: "builder", Reason: "is required"}
	}
	if cap <= 0 {
		return nil, &ConfigError{Field: "window_cap", Reason: "must be > 0"}
	}
	own := make(map[domain.Metric]float64, len(domain.Metrics))
	for _, m := range domain.Metrics {
		v, ok := ceilings[m]
		if !ok {
			return nil, &ConfigError{Field: "ceilings." + m.String(), Reason: "is required"}
		}
		if v <= 0 {
			return nil, &ConfigError{Field: "ceilings." + m.String(), Reason: fmt.Sprintf("must be > 0, got %v", v)}
		}
		own[m] = v
	}
	return &Renderer{builder: builder, cap: cap, ceilings: own}, nil
}

func (r *Renderer) Cap() int { return r.cap }

// Surface is the drawing surface every chart is built for.
func (r *Renderer) Surface() Surface { return r.builder.Surface() }

// Ceiling returns the fixed y ceiling for m.
func (r *Renderer) Ceiling(m domain.Metric) float64 { return r.ceilings[m] }

// Series returns the visible window of m. A non-positive cap uses the default.
func (r *Renderer) Series(s *session.BrewSession, m domain.Metric, cap int) []float64 {
	if cap <= 0 {
		cap = r.cap
	}
	return SeriesWindow(s, m, cap)
}

// Chart builds the geometry for the visible window of m.
func (r *Renderer) Chart(s *session.BrewSession, m domain.Metric) (Geometry, error) {
	yMax, ok := r.ceilings[m]
	if !ok {
		return Geometry{}, fmt.Errorf("chart: no ceiling for %s", m)
	}
	return r.builder.Build(SeriesWindow(s, m, r.cap), yMax)
}

// Charts builds geometry for every metric.
func (r *Renderer) Charts(s *session.BrewSession) map[domain.Metric]Geometry {
	out := make(map[domain.Metric]Geometry, len(domain.Metrics))
	for _, m := range domain.Metrics {
		g, err := r.Chart(s, m)
		if err != nil {
			continue
		}
		out[m] = g
	}
	return out
}
