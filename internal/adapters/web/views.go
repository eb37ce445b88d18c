package web

import (
	"github.com/ghalamif/BrewFlow/internal/app/connection"
	"github.com/ghalamif/BrewFlow/internal/chart"
	"github.com/ghalamif/BrewFlow/internal/domain"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// SessionView is the legend-level summary of a brew session.
type SessionView struct {
	ID           uint64             `json:"id"`
	StartedAtSeq uint64             `json:"started_at_seq"`
	Samples      int                `json:"samples"`
	Description  string             `json:"description"`
	Max          map[string]float64 `json:"max"`
	Last         *domain.Sample     `json:"last,omitempty"`
}

func NewSessionView(s *session.BrewSession) SessionView {
	v := SessionView{
		ID:           s.ID(),
		StartedAtSeq: s.StartedAtSeq(),
		Samples:      s.Len(),
		Description:  s.Description(),
		Max:          make(map[string]float64, len(domain.Metrics)),
	}
	for _, m := range domain.Metrics {
		if max, ok := s.Max(m); ok {
			v.Max[m.String()] = max
		}
	}
	if last, ok := s.Last(); ok {
		v.Last = &last
	}
	return v
}

// ChartView is one metric's drawable geometry.
type ChartView struct {
	Metric   string          `json:"metric"`
	Ceiling  float64         `json:"ceiling"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	Points   []chart.Point   `json:"points"`
	Segments []chart.Segment `json:"segments"`
	Path     string          `json:"path"`
}

func NewChartView(r *chart.Renderer, m domain.Metric, g chart.Geometry) ChartView {
	surface := r.Surface()
	points, segments := g.Points, g.Segments
	if points == nil {
		points = []chart.Point{}
	}
	if segments == nil {
		segments = []chart.Segment{}
	}
	return ChartView{
		Metric:   m.String(),
		Ceiling:  r.Ceiling(m),
		Width:    surface.Width,
		Height:   surface.Height,
		Points:   points,
		Segments: segments,
		Path:     g.SVGPath(),
	}
}

// SnapshotMessage is pushed to websocket clients for every published snapshot.
type SnapshotMessage struct {
	Type       string               `json:"type"`
	Session    SessionView          `json:"session"`
	Connection connection.State     `json:"connection"`
	Charts     map[string]ChartView `json:"charts"`
}

func newSnapshotMessage(r *chart.Renderer, s *session.BrewSession, state connection.State) SnapshotMessage {
	charts := r.Charts(s)
	msg := SnapshotMessage{
		Type:       "snapshot",
		Session:    NewSessionView(s),
		Connection: state,
		Charts:     make(map[string]ChartView, len(charts)),
	}
	for m, g := range charts {
		msg.Charts[m.String()] = NewChartView(r, m, g)
	}
	return msg
}
