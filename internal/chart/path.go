// Package chart turns a growing sample series into bounded, drawable geometry.
package chart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultXStepsPerScreen is the number of horizontal steps that span the surface.
const DefaultXStepsPerScreen = 40

// ErrInvalidScale is returned for a non-positive y ceiling.
var ErrInvalidScale = errors.New("chart: y_max must be > 0")

// ConfigError reports an invalid chart setting found at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("chart config: %s %s", e.Field, e.Reason)
}

// Surface is the drawing area in renderer units. Y grows downward.
type Surface struct {
	Width  float64
	Height float64
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is one cubic curve from the previous anchor to To.
type Segment struct {
	C1 Point `json:"c1"`
	C2 Point `json:"c2"`
	To Point `json:"to"`
}

// Geometry is a path: a move to Points[0] followed by Segments, one per
// remaining anchor. It is built once and not modified afterwards.
type Geometry struct {
	Points   []Point   `json:"points"`
	Segments []Segment `json:"segments"`
}

// Empty reports whether there is nothing to draw.
func (g Geometry) Empty() bool { return len(g.Points) == 0 }

// Last returns the newest anchor.
func (g Geometry) Last() (Point, bool) {
	if len(g.Points) == 0 {
		return Point{}, false
	}
	return g.Points[len(g.Points)-1], true
}

// SVGPath renders the geometry as SVG path data.
func (g Geometry) SVGPath() string {
	if g.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("M")
	writePoint(&b, g.Points[0])
	for _, s := range g.Segments {
		b.WriteString(" C")
		writePoint(&b, s.C1)
		b.WriteByte(' ')
		writePoint(&b, s.C2)
		b.WriteByte(' ')
		writePoint(&b, s.To)
	}
	return b.String()
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
}

// PathOption customizes a PathBuilder.
type PathOption func(*PathBuilder)

// WithClampOverflow pins values outside [0, yMax] to the surface edge instead of
// letting them draw off-surface.
func WithClampOverflow(clamp bool) PathOption {
	return func(p *PathBuilder) {
		p.clamp = clamp
	}
}

// PathBuilder maps a series onto a fixed surface with the newest value on the
// right edge. It holds no mutable state and is safe for concurrent use.
type PathBuilder struct {
	surface Surface
	xSteps  int
	clamp   bool
}

func NewPathBuilder(surface Surface, xStepsPerScreen int, opts ...PathOption) (*PathBuilder, error) {
	if surface.Width <= 0 {
		return nil, &ConfigError{Field: "width", Reason: "must be > 0"}
	}
	if surface.Height <= 0 {
		return nil, &ConfigError{Field: "height", Reason: "must be > 0"}
	}
	if xStepsPerScreen <= 0 {
		return nil, &ConfigError{Field: "x_steps_per_screen", Reason: "must be > 0"}
	}
	p := &PathBuilder{surface: surface, xSteps: xStepsPerScreen}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *PathBuilder) Surface() Surface { return p.surface }

// Build converts values (oldest first) into a smoothed path scaled against the
// fixed ceiling yMax. A zero baseline point is prepended so the curve rises from
// the x axis. Empty input produces empty geometry.
func (p *PathBuilder) Build(values []float64, yMax float64) (Geometry, error) {
	if yMax <= 0 {
		return Geometry{}, ErrInvalidScale
	}
	n := len(values)
	if n == 0 {
		return Geometry{}, nil
	}

	xStep := p.surface.Width / float64(p.xSteps)
	yScale := p.surface.Height / yMax

	points := make([]Point, n+1)
	for i := 0; i <= n; i++ {
		v := 0.0
		if i > 0 {
			v = values[i-1]
		}
		if p.clamp {
			v = clamp(v, 0, yMax)
		}
		points[i] = Point{
			X: p.surface.Width - xStep*float64(n-i),
			Y: p.surface.Height - v*yScale,
		}
	}

	segments := make([]Segment, n)
	for i := 1; i <= n; i++ {
		prev, cur := points[i-1], points[i]
		midX := (prev.X + cur.X) / 2
		segments[i-1] = Segment{
			C1: Point{X: midX, Y: prev.Y},
			C2: Point{X: midX, Y: cur.Y},
			To: cur,
		}
	}

	return Geometry{Points: points, Segments: segments}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
