// Package ink accumulates raw coordinate samples into strokes and strokes
// into an ink session awaiting recognition.
package ink

import (
	"errors"
	"fmt"
)

// ErrMalformedStroke is returned when the coordinate arrays of a stroke
// don't line up.
var ErrMalformedStroke = errors.New("malformed stroke")

// Point is a single sample. T is a timestamp in milliseconds and is only
// meaningful when the owning stroke is timed.
type Point struct {
	X float32
	Y float32
	T int64
}

// Stroke is an ordered, non-empty sequence of points. Either every point
// carries a timestamp or none does.
type Stroke struct {
	points []Point
	timed  bool
}

// Points returns a copy of the stroke's points.
func (s Stroke) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

func (s Stroke) Len() int {
	return len(s.points)
}

// Timed reports whether the points carry timestamps.
func (s Stroke) Timed() bool {
	return s.timed
}

// Ink is a point-in-time snapshot of a session.
type Ink struct {
	strokes []Stroke
}

// New builds an Ink out of already validated strokes.
func New(strokes ...Stroke) Ink {
	return Ink{strokes: append([]Stroke(nil), strokes...)}
}

// Strokes returns the strokes of the snapshot. Strokes are immutable, so
// only the slice is copied.
func (i Ink) Strokes() []Stroke {
	out := make([]Stroke, len(i.strokes))
	copy(out, i.strokes)
	return out
}

func (i Ink) Len() int {
	return len(i.strokes)
}

func (i Ink) Empty() bool {
	return len(i.strokes) == 0
}

// NewStroke builds one stroke from parallel arrays. ts may be nil.
func NewStroke(xs, ys []float32, ts []int64) (Stroke, error) {
	if err := validate(xs, ys, ts); err != nil {
		return Stroke{}, err
	}

	var b builder
	b.fill(xs, ys, ts)
	return b.build(ts != nil), nil
}

func validate(xs, ys []float32, ts []int64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: x has %d values, y has %d", ErrMalformedStroke, len(xs), len(ys))
	}
	if ts != nil && len(ts) != len(xs) {
		return fmt.Errorf("%w: x has %d values, t has %d", ErrMalformedStroke, len(xs), len(ts))
	}
	if len(xs) == 0 {
		return fmt.Errorf("%w: stroke has no points", ErrMalformedStroke)
	}
	return nil
}

type builder struct {
	points []Point
}

func (b *builder) fill(xs, ys []float32, ts []int64) {
	for i := range xs {
		p := Point{X: xs[i], Y: ys[i]}
		if ts != nil {
			p.T = ts[i]
		}
		b.points = append(b.points, p)
	}
}

func (b *builder) build(timed bool) Stroke {
	s := Stroke{points: b.points, timed: timed}
	b.points = nil
	return s
}
