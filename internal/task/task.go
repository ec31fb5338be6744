// Package task defines the task record indexed and allocated by the engine.
package task

import "github.com/robolibs/consens/internal/geo"

// Bounding box padding applied when a task is created.
const (
	pointPadding    = 5.0 // metres around a point task
	geometryPadding = 1.0 // metres around a head/tail envelope
)

// Task is either a point task (single position) or a geometric task with a
// head and tail (a row, a swath). Position of a geometric task is the midpoint.
// Tasks are value types; the spatial index holds the authoritative copy.
type Task struct {
	ID string

	Position    geo.Point
	Head        geo.Point
	Tail        geo.Point
	HasGeometry bool

	Duration  float64 // expected execution time, seconds
	Completed bool

	BBox geo.BoundingBox
}

func NewPoint(id string, position geo.Point, duration float64) Task {
	return Task{
		ID:       id,
		Position: position,
		Duration: duration,
		BBox:     geo.BoxFromPoint(position, pointPadding),
	}
}

func NewGeometric(id string, head, tail geo.Point, duration float64) Task {
	return Task{
		ID:          id,
		Position:    geo.Point{X: (head.X + tail.X) / 2, Y: (head.Y + tail.Y) / 2},
		Head:        head,
		Tail:        tail,
		HasGeometry: true,
		Duration:    duration,
		BBox:        geo.BoxFromPoints(head, tail, geometryPadding),
	}
}

// Length is zero for point tasks.
func (t Task) Length() float64 {
	if !t.HasGeometry {
		return 0
	}
	return t.Head.DistanceTo(t.Tail)
}

// EndPoint is where an agent stands after executing the task: the tail for
// geometric tasks, the position otherwise.
func (t Task) EndPoint() geo.Point {
	if t.HasGeometry {
		return t.Tail
	}
	return t.Position
}
